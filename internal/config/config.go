package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// DefaultSerializability is the allocation policy of tables created
	// without one: "table", "document" or "wallclock".
	DefaultSerializability string        `json:"defaultSerializability" yaml:"defaultSerializability"`
	AllowAutoCreateTables  bool          `json:"allowAutoCreateTables" yaml:"allowAutoCreateTables"`
	TableNameRegex         string        `json:"tableNameRegex" yaml:"tableNameRegex"`
	MaxPageSize            int           `json:"maxPageSize" yaml:"maxPageSize"`
	Vacuum                 VacuumConfig  `json:"vacuum" yaml:"vacuum"`
	Log                    LogConfig     `json:"log" yaml:"log"`
	Tracing                TracingConfig `json:"tracing" yaml:"tracing"`
	Metrics                MetricsConfig `json:"metrics" yaml:"metrics"`
}

// VacuumConfig tunes the background compactor.
type VacuumConfig struct {
	BatchSize       int   `json:"batchSize" yaml:"batchSize"`
	SettleDelayMs   int64 `json:"settleDelayMs" yaml:"settleDelayMs"`
	PollIntervalMs  int64 `json:"pollIntervalMs" yaml:"pollIntervalMs"`
	LeaseMs         int64 `json:"leaseMs" yaml:"leaseMs"`
	RetryAfterMs    int64 `json:"retryAfterMs" yaml:"retryAfterMs"`
	SweepIntervalMs int64 `json:"sweepIntervalMs" yaml:"sweepIntervalMs"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// TracingConfig selects the OTLP exporter. Protocol is "grpc" or "http".
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`
	Protocol    string  `json:"protocol" yaml:"protocol"`
	SampleRatio float64 `json:"sampleRatio" yaml:"sampleRatio"`
}

type MetricsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DefaultSerializability: "wallclock",
		AllowAutoCreateTables:  true,
		TableNameRegex:         "[A-Za-z0-9_.-]{1,128}",
		MaxPageSize:            1000,
		Vacuum: VacuumConfig{
			BatchSize:       100,
			SettleDelayMs:   100,
			PollIntervalMs:  200,
			LeaseMs:         30_000,
			RetryAfterMs:    1_000,
			SweepIntervalMs: 1_000,
		},
		Log:     LogConfig{Level: "info", Format: "json"},
		Tracing: TracingConfig{Protocol: "grpc", Endpoint: "localhost:4317", SampleRatio: 1},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	switch c.DefaultSerializability {
	case "table", "document", "wallclock":
	default:
		return fmt.Errorf("defaultSerializability: unknown policy %q", c.DefaultSerializability)
	}
	if _, err := regexp.Compile(c.TableNameRegex); err != nil {
		return fmt.Errorf("tableNameRegex: %w", err)
	}
	if c.MaxPageSize <= 0 {
		return fmt.Errorf("maxPageSize must be positive")
	}
	if c.Vacuum.BatchSize <= 0 {
		return fmt.Errorf("vacuum.batchSize must be positive")
	}
	return nil
}

const dataDirName = "tablehistory"

// DefaultDataDir is where the store lives when no data dir is configured:
// under $XDG_DATA_HOME when set, otherwise in the per-user data directory of
// the platform. Without a home directory it is ./data.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./data"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", dataDirName)
	case "windows":
		if local := os.Getenv("LocalAppData"); local != "" {
			return filepath.Join(local, dataDirName)
		}
		return filepath.Join(home, "AppData", "Local", dataDirName)
	}
	return filepath.Join(home, ".local", "share", dataDirName)
}
