// Package config loads autodash.cfg.json through viper and exposes typed views of it.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "autodash.cfg.json"

// SimConfig holds simulation clock settings.
type SimConfig struct {
	TickInterval time.Duration
	Seed         int64
	HistorySize  int
	VehicleName  string
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings for the in-memory SQLite backend.
type SQLiteConfig struct {
	DumpInterval time.Duration
	OutputDir    string
}

// WebSocketConfig holds settings for the streaming backend.
type WebSocketConfig struct {
	URL        string
	Secret     string
	AckTimeout time.Duration
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Type      string
	Memory    MemoryConfig
	SQLite    SQLiteConfig
	WebSocket WebSocketConfig
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// InfluxConfig holds InfluxDB settings.
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
}

// NotifyConfig holds push notification settings.
type NotifyConfig struct {
	Enabled bool
	Token   string
	User    string
}

// MonitorConfig holds status reporting settings.
type MonitorConfig struct {
	Enabled   bool
	Interval  time.Duration
	StatusDir string
}

// GeoConfig anchors map coordinates to the earth.
type GeoConfig struct {
	OriginLon float64
	OriginLat float64
	// MetersPerUnit scales map units (0..100) to metres.
	MetersPerUnit float64
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// SetDefaults registers every default value. Load calls it; the CLI calls it
// alone when running without a config file.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./autodashlogs")
	viper.SetDefault("defaultTag", "")

	viper.SetDefault("sim.tickInterval", "250ms")
	viper.SetDefault("sim.seed", 0)
	viper.SetDefault("sim.historySize", 120)
	viper.SetDefault("sim.vehicleName", "AD-1")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "autodash")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./sessions")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.outputDir", "./sessions")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/api/v1/stream")
	viper.SetDefault("storage.websocket.secret", "")
	viper.SetDefault("storage.websocket.ackTimeout", "10s")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "autodash")
	viper.SetDefault("influx.bucket", "telemetry")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "autodash")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("notify.pushover.enabled", false)
	viper.SetDefault("notify.pushover.token", "")
	viper.SetDefault("notify.pushover.user", "")

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "5s")
	viper.SetDefault("monitor.statusDir", "./autodashlogs")

	viper.SetDefault("geo.originLon", 13.4050)
	viper.SetDefault("geo.originLat", 52.5200)
	viper.SetDefault("geo.metersPerUnit", 10.0)
}

// GetSimConfig returns the simulation clock settings.
func GetSimConfig() SimConfig {
	return SimConfig{
		TickInterval: viper.GetDuration("sim.tickInterval"),
		Seed:         viper.GetInt64("sim.seed"),
		HistorySize:  viper.GetInt("sim.historySize"),
		VehicleName:  viper.GetString("sim.vehicleName"),
	}
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			OutputDir:    viper.GetString("storage.sqlite.outputDir"),
		},
		WebSocket: WebSocketConfig{
			URL:        viper.GetString("storage.websocket.url"),
			Secret:     viper.GetString("storage.websocket.secret"),
			AckTimeout: viper.GetDuration("storage.websocket.ackTimeout"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetNotifyConfig returns the Pushover settings.
func GetNotifyConfig() NotifyConfig {
	return NotifyConfig{
		Enabled: viper.GetBool("notify.pushover.enabled"),
		Token:   viper.GetString("notify.pushover.token"),
		User:    viper.GetString("notify.pushover.user"),
	}
}

// GetMonitorConfig returns the status loop settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:   viper.GetBool("monitor.enabled"),
		Interval:  viper.GetDuration("monitor.interval"),
		StatusDir: viper.GetString("monitor.statusDir"),
	}
}

// GetGeoConfig returns the map anchor.
func GetGeoConfig() GeoConfig {
	return GeoConfig{
		OriginLon:     viper.GetFloat64("geo.originLon"),
		OriginLat:     viper.GetFloat64("geo.originLat"),
		MetersPerUnit: viper.GetFloat64("geo.metersPerUnit"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
