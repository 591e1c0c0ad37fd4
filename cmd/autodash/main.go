package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/autodash/simulator/internal/api"
	"github.com/autodash/simulator/internal/cache"
	"github.com/autodash/simulator/internal/clock"
	"github.com/autodash/simulator/internal/config"
	"github.com/autodash/simulator/internal/dispatcher"
	"github.com/autodash/simulator/internal/geo"
	"github.com/autodash/simulator/internal/handlers"
	"github.com/autodash/simulator/internal/influx"
	"github.com/autodash/simulator/internal/logging"
	"github.com/autodash/simulator/internal/monitor"
	"github.com/autodash/simulator/internal/notify"
	intOtel "github.com/autodash/simulator/internal/otel"
	"github.com/autodash/simulator/internal/parser"
	"github.com/autodash/simulator/internal/session"
	"github.com/autodash/simulator/internal/storage"
	"github.com/autodash/simulator/internal/worker"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

// BuildDate and Version can be set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

const appName = "autodash"

func main() {
	args := os.Args[1:]
	cmd := "run"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = run(args)
	case "export":
		err = runExport(args, os.Stdout)
	case "version":
		fmt.Printf("%s %s (built %s)\n", appName, Version, BuildDate)
	default:
		err = fmt.Errorf("unknown command %q (want run, export or version)", cmd)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds everything run wires together.
type app struct {
	logger     *slog.Logger
	slog       *logging.SlogManager
	otel       *intOtel.Provider
	sessions   *session.Context
	dispatcher *dispatcher.Dispatcher
	backend    storage.Backend
	influx     *influx.Manager
	notifier   *notify.PushoverFacade
	worker     *worker.Manager
	clock      *clock.Clock
	monitor    *monitor.Service
	logFile    *os.File
	otelFile   *os.File
}

func run(args []string) error {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	configDir := fs.String("config", ".", "directory containing "+config.FileName)
	tag := fs.String("tag", "", "tag stamped on the recorded session (overrides defaultTag)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	configErr := config.Load(*configDir)
	if *tag == "" {
		*tag = config.GetString("defaultTag")
	}

	start := time.Now()
	a, err := setup(start, *tag)
	if err != nil {
		return err
	}
	if configErr != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", configErr)
	} else {
		a.logger.Info("Loaded config", "dir", *configDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := a.worker.StartSession(); err != nil {
		a.logger.Error("Failed to start session", "error", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.clock.Run(ctx); err != nil {
			a.logger.Error("Clock stopped", "error", err)
		}
	}()

	if a.monitor != nil {
		if err := a.monitor.Start(ctx); err != nil {
			a.logger.Warn("Failed to start status monitor", "error", err)
		}
	}

	// stdin closing does not stop the simulation, only a signal does
	go func() {
		p := parser.NewParser(a.logger)
		if err := p.Run(ctx, os.Stdin, a.dispatcher.Dispatch); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("Command input stopped", "error", err)
		}
	}()

	<-ctx.Done()
	a.logger.Info("Shutting down...")
	wg.Wait()
	a.shutdown()
	return nil
}

func setup(start time.Time, tag string) (*app, error) {
	a := &app{sessions: session.NewContext()}
	simCfg := config.GetSimConfig()

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create logs dir: %w", err)
	}
	logPath := logging.LogFilePath(logsDir, appName, start)
	var err error
	a.logFile, err = os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		otelPath := filepath.Join(logsDir, fmt.Sprintf("%s.%s.otel.jsonl", appName, start.Format("20060102_150405")))
		if a.otelFile, err = os.Create(otelPath); err != nil {
			return nil, fmt.Errorf("failed to create OTel log file: %w", err)
		}
	}
	a.otel, err = intOtel.New(intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		ServiceVersion: Version,
		VehicleName:    simCfg.VehicleName,
		BatchTimeout:   otelCfg.BatchTimeout,
		LogWriter:      writerOrNil(a.otelFile),
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up OpenTelemetry: %w", err)
	}

	opts := logging.Options{
		File:     io.MultiWriter(os.Stdout, a.logFile),
		Level:    config.GetString("logLevel"),
		Provider: a.otel.LoggerProvider(),
		Service:  otelCfg.ServiceName,
		Context: logging.SimContext(a.sessions.ID, func() uint64 {
			if a.clock == nil {
				return 0
			}
			return a.clock.Ticks()
		}),
	}
	if config.GetBool("graylog.enabled") {
		gw, err := logging.NewGraylogWriter(config.GetString("graylog.address"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "graylog disabled:", err)
		} else {
			opts.Graylog = gw
		}
	}
	a.slog = logging.NewSlogManager()
	a.slog.Setup(opts)
	a.logger = a.slog.Logger()
	a.logger.Info("Starting up", "version", Version, "build", BuildDate, "log", logPath)

	a.dispatcher, err = dispatcher.New(logging.NewDispatcherLogger(a.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	geoCfg := config.GetGeoConfig()
	projector := geo.NewProjector(geoCfg.OriginLon, geoCfg.OriginLat, geoCfg.MetersPerUnit)

	a.backend, err = createStorageBackend(config.GetStorageConfig(), a.logger, projector, start)
	if err != nil {
		return nil, err
	}
	if err := a.backend.Init(); err != nil {
		a.logger.Error("Failed to initialize storage backend, recording disabled", "error", err)
		a.backend = storage.Nop{}
	}

	deps := worker.Dependencies{
		Session:      a.sessions,
		WarningCache: cache.NewWarningCache(),
		Logger:       a.logger,
		Info: worker.SessionInfo{
			VehicleName:  simCfg.VehicleName,
			TickInterval: simCfg.TickInterval,
			Version:      Version,
			Tag:          tag,
		},
	}

	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		zl := zerolog.New(a.logFile).With().Timestamp().Str("component", "influx").Logger()
		backup := filepath.Join(logsDir, fmt.Sprintf("influx_backup_%s.log.gz", start.Format("20060102_150405")))
		m := influx.NewManager(zl, influxCfg, backup)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := m.Connect(ctx)
		cancel()
		if err != nil {
			a.logger.Warn("InfluxDB unavailable", "error", err)
		} else {
			a.influx = m
			deps.Influx = m
			deps.InfluxBucket = m.TelemetryBucket()
		}
	}

	if a.notifier = notify.New(config.GetNotifyConfig(), a.logger); a.notifier != nil {
		deps.Notifier = a.notifier
	}

	a.worker = worker.NewManager(deps, a.backend)
	a.worker.RegisterHandlers(a.dispatcher)

	a.clock, err = clock.New(clock.Config{
		Interval:    simCfg.TickInterval,
		HistorySize: simCfg.HistorySize,
		Seed:        simCfg.Seed,
	},
		clock.WithPublisher(a.dispatcher),
		clock.WithLogger(a.logger),
		clock.WithSessionID(a.sessions.ID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create clock: %w", err)
	}

	handlers.NewService(handlers.Dependencies{
		Controller: a.clock,
		Logger:     a.logger,
		DumpOut:    os.Stdout,
	}).Register(a.dispatcher)
	a.logger.Debug("Registered commands", "commands", a.dispatcher.Commands())

	if monCfg := config.GetMonitorConfig(); monCfg.Enabled {
		mdeps := monitor.Dependencies{
			Clock:      a.clock,
			Dispatcher: a.dispatcher,
			SessionID:  a.sessions.ID,
			StatusDir:  monCfg.StatusDir,
			Interval:   monCfg.Interval,
			Logger:     a.logger,
		}
		if stats, ok := a.backend.(monitor.WriteStats); ok {
			mdeps.Storage = stats
		}
		if a.influx != nil {
			mdeps.Influx = a.influx
			mdeps.InfluxBucket = influx.PerformanceBucket
			mdeps.PerformancePoint = influx.PerformancePoint
		}
		a.monitor = monitor.NewService(mdeps)
	}

	return a, nil
}

// shutdown drains recording, closes the session and uploads the export.
func (a *app) shutdown() {
	if a.monitor != nil {
		a.monitor.Stop()
	}

	// buffered snapshots and warnings are written before the session closes
	a.dispatcher.Close()

	if _, ok := a.sessions.Current(); ok {
		if _, err := a.worker.EndSession(); err != nil {
			a.logger.Error("Failed to end session", "error", err)
		}
	}
	if err := a.backend.Close(); err != nil {
		a.logger.Error("Failed to close storage backend", "error", err)
	}

	if up, ok := a.backend.(storage.Uploadable); ok {
		a.upload(up)
	}

	if a.influx != nil {
		if err := a.influx.Close(); err != nil {
			a.logger.Error("Failed to close InfluxDB", "error", err)
		}
	}
	a.notifier.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.slog.Flush(ctx); err != nil {
		a.logger.Warn("Failed to flush logs", "error", err)
	}
	if err := a.otel.Shutdown(ctx); err != nil {
		a.logger.Warn("Failed to shut down OpenTelemetry", "error", err)
	}
	a.logger.Info("Shutdown complete")

	if a.otelFile != nil {
		a.otelFile.Close()
	}
	a.logFile.Close()
}

func (a *app) upload(up storage.Uploadable) {
	path := up.GetExportedFilePath()
	if path == "" {
		return
	}
	client := api.New(config.GetString("api.serverUrl"), config.GetString("api.apiKey"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := client.Healthcheck(ctx); err != nil {
		a.logger.Warn("Dashboard server unreachable, export kept locally", "path", path, "error", err)
		return
	}
	if err := client.Upload(ctx, path, up.GetExportMetadata()); err != nil {
		a.logger.Error("Failed to upload session", "path", path, "error", err)
		return
	}
	a.logger.Info("Session uploaded", "path", path)
}

func writerOrNil(f *os.File) io.Writer {
	if f == nil {
		return nil
	}
	return f
}
