// Package monitor periodically records the recorder's own health: a
// status.json for the operator and PerformanceSample rows for the database.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/autodash/simulator/internal/model"
	"github.com/autodash/simulator/pkg/core"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"gorm.io/gorm"
)

// StatusFileName is written inside the status directory.
const StatusFileName = "status.json"

// TickCounter is satisfied by the simulation clock.
type TickCounter interface {
	Ticks() uint64
}

// QueueReporter is satisfied by the dispatcher.
type QueueReporter interface {
	QueueLengths() map[string]int
}

// WriteStats is satisfied by the gorm-backed storage backends.
type WriteStats interface {
	QueueLengths() model.WriteQueueLengths
	LastWriteDuration() time.Duration
	DB() *gorm.DB
}

// PointWriter is satisfied by the influx manager.
type PointWriter interface {
	WritePoint(bucket string, point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Clock      TickCounter
	Dispatcher QueueReporter
	Storage    WriteStats // optional
	Influx     PointWriter
	// InfluxBucket receives performance points when Influx is set.
	InfluxBucket string
	// PerformancePoint builds the influx point for a sample.
	PerformancePoint func(*model.PerformanceSample) *influxdb2_write.Point
	SessionID        func() string
	StatusDir        string
	Interval         time.Duration
	Logger           *slog.Logger
	Now              func() time.Time
}

// Status is the content of status.json.
type Status struct {
	Time              time.Time               `json:"time"`
	SessionID         string                  `json:"sessionId"`
	Ticks             uint64                  `json:"ticks"`
	DispatcherQueues  map[string]int          `json:"dispatcherQueues"`
	WriteQueues       model.WriteQueueLengths `json:"writeQueues"`
	LastWriteDuration string                  `json:"lastWriteDuration"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	log       *slog.Logger
	isRunning bool
	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = 5 * time.Second
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.SessionID == nil {
		deps.SessionID = func() string { return "" }
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		deps: deps,
		log:  log.With("component", "monitor"),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current program status and the matching sample.
func (s *Service) GetProgramStatus() (Status, model.PerformanceSample) {
	now := s.deps.Now()
	status := Status{
		Time:             now,
		SessionID:        s.deps.SessionID(),
		DispatcherQueues: map[string]int{},
	}
	if s.deps.Clock != nil {
		status.Ticks = s.deps.Clock.Ticks()
	}
	if s.deps.Dispatcher != nil {
		status.DispatcherQueues = s.deps.Dispatcher.QueueLengths()
	}

	var lastWrite time.Duration
	if s.deps.Storage != nil {
		status.WriteQueues = s.deps.Storage.QueueLengths()
		lastWrite = s.deps.Storage.LastWriteDuration()
	}
	status.LastWriteDuration = lastWrite.String()

	perf := model.PerformanceSample{
		Time:      now,
		SessionID: status.SessionID,
		Tick:      status.Ticks,
		BufferLengths: model.BufferLengths{
			Snapshots: clampUint16(status.DispatcherQueues[core.CmdRecordSnapshot]),
			Warnings:  clampUint16(status.DispatcherQueues[core.CmdRecordWarning]),
		},
		WriteQueueLengths:   status.WriteQueues,
		LastWriteDurationMs: float32(lastWrite.Microseconds()) / 1000,
	}
	return status, perf
}

func clampUint16(n int) uint16 {
	return uint16(min(max(n, 0), 65535))
}

// WriteStatus replaces status.json with the given status.
func WriteStatus(dir string, status Status) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create status dir: %w", err)
	}
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	tmp := filepath.Join(dir, StatusFileName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return os.Rename(tmp, filepath.Join(dir, StatusFileName))
}

// Sample takes one status reading, writes status.json and persists the sample.
// Samples are skipped until a session is active.
func (s *Service) Sample() error {
	status, perf := s.GetProgramStatus()
	if status.SessionID == "" {
		return nil
	}

	var errs []error
	if s.deps.StatusDir != "" {
		if err := WriteStatus(s.deps.StatusDir, status); err != nil {
			errs = append(errs, err)
		}
	}
	if s.deps.Storage != nil {
		if db := s.deps.Storage.DB(); db != nil {
			if err := db.Create(&perf).Error; err != nil {
				errs = append(errs, fmt.Errorf("write performance sample: %w", err))
			}
		}
	}
	if s.deps.Influx != nil && s.deps.PerformancePoint != nil {
		if err := s.deps.Influx.WritePoint(s.deps.InfluxBucket, s.deps.PerformancePoint(&perf)); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("monitor sample: %v", errs)
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.isRunning = true
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.log.Debug("Starting status monitor", "interval", s.deps.Interval)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Sample(); err != nil {
					s.log.Error("Error sampling status", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
