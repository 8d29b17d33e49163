package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if !cfg.AllowAutoCreateTables {
		t.Fatalf("default allow auto create should be true")
	}
	if cfg.DefaultSerializability != "wallclock" {
		t.Fatalf("default serializability = %q", cfg.DefaultSerializability)
	}
	if cfg.Vacuum.BatchSize != 100 || cfg.Vacuum.SettleDelayMs != 100 {
		t.Fatalf("vacuum defaults: %+v", cfg.Vacuum)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	file := filepath.Join(t.TempDir(), "th.json")
	data := []byte(`{"allowAutoCreateTables":false,"defaultSerializability":"table","vacuum":{"batchSize":32}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AllowAutoCreateTables {
		t.Fatalf("expected false")
	}
	if cfg.DefaultSerializability != "table" {
		t.Fatalf("expected table")
	}
	if cfg.Vacuum.BatchSize != 32 {
		t.Fatalf("expected 32")
	}
	// untouched fields keep their defaults
	if cfg.Vacuum.SettleDelayMs != 100 {
		t.Fatalf("settle delay default lost")
	}
}

func TestLoadYAML(t *testing.T) {
	file := filepath.Join(t.TempDir(), "th.yaml")
	data := []byte("maxPageSize: 50\nlog:\n  level: debug\ntracing:\n  enabled: true\n  protocol: http\n")
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxPageSize != 50 || cfg.Log.Level != "debug" {
		t.Fatalf("yaml fields: %+v", cfg)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Protocol != "http" || cfg.Tracing.Endpoint != "localhost:4317" {
		t.Fatalf("tracing: %+v", cfg.Tracing)
	}
}

func TestLoadInvalid(t *testing.T) {
	file := filepath.Join(t.TempDir(), "th.json")
	if err := os.WriteFile(file, []byte("{"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(file); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.DefaultSerializability = "eventually"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("unknown policy accepted")
	}
	cfg = Default()
	cfg.TableNameRegex = "("
	if err := cfg.Validate(); err == nil {
		t.Fatalf("bad regex accepted")
	}
	cfg = Default()
	cfg.MaxPageSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("zero page size accepted")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("TH_ALLOW_AUTO_CREATE_TABLES", "false")
	t.Setenv("TH_DEFAULT_SERIALIZABILITY", "document")
	t.Setenv("TH_VACUUM_BATCH_SIZE", "24")
	t.Setenv("TH_VACUUM_SETTLE_DELAY_MS", "5")
	t.Setenv("TH_LOG_LEVEL", "warn")
	t.Setenv("TH_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("TH_MAX_PAGE_SIZE", "not-a-number")
	FromEnv(&cfg)
	if cfg.AllowAutoCreateTables {
		t.Fatalf("env override bool")
	}
	if cfg.DefaultSerializability != "document" {
		t.Fatalf("env override policy")
	}
	if cfg.Vacuum.BatchSize != 24 || cfg.Vacuum.SettleDelayMs != 5 {
		t.Fatalf("env override vacuum: %+v", cfg.Vacuum)
	}
	if cfg.Log.Level != "warn" || cfg.Tracing.SampleRatio != 0.25 {
		t.Fatalf("env override log/tracing")
	}
	if cfg.MaxPageSize != 1000 {
		t.Fatalf("malformed value should be ignored")
	}
}

func TestDefaultDataDirPrefersXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", filepath.Join("srv", "xdg"))
	if got, want := DefaultDataDir(), filepath.Join("srv", "xdg", "tablehistory"); got != want {
		t.Fatalf("DefaultDataDir() = %q, want %q", got, want)
	}
}

func TestDefaultDataDirUnderHome(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("home layout differs per platform")
	}
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", "/home/ops")
	if got, want := DefaultDataDir(), "/home/ops/.local/share/tablehistory"; got != want {
		t.Fatalf("DefaultDataDir() = %q, want %q", got, want)
	}
}

func TestDefaultDataDirWithoutHome(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "plan9" {
		t.Skip("home comes from other variables here")
	}
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", "")
	if got := DefaultDataDir(); got != "./data" {
		t.Fatalf("DefaultDataDir() = %q, want ./data", got)
	}
}
