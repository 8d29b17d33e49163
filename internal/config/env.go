package config

import (
	"os"
	"strconv"
)

// FromEnv overlays TH_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("TH_DEFAULT_SERIALIZABILITY"); v != "" {
		cfg.DefaultSerializability = v
	}
	envBool("TH_ALLOW_AUTO_CREATE_TABLES", &cfg.AllowAutoCreateTables)
	if v := os.Getenv("TH_TABLE_NAME_REGEX"); v != "" {
		cfg.TableNameRegex = v
	}
	if v := os.Getenv("TH_MAX_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxPageSize = n
		}
	}
	if v := os.Getenv("TH_VACUUM_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vacuum.BatchSize = n
		}
	}
	envInt64("TH_VACUUM_SETTLE_DELAY_MS", &cfg.Vacuum.SettleDelayMs)
	envInt64("TH_VACUUM_POLL_INTERVAL_MS", &cfg.Vacuum.PollIntervalMs)
	envInt64("TH_VACUUM_LEASE_MS", &cfg.Vacuum.LeaseMs)
	envInt64("TH_VACUUM_RETRY_AFTER_MS", &cfg.Vacuum.RetryAfterMs)
	envInt64("TH_VACUUM_SWEEP_INTERVAL_MS", &cfg.Vacuum.SweepIntervalMs)
	if v := os.Getenv("TH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TH_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	envBool("TH_TRACING_ENABLED", &cfg.Tracing.Enabled)
	if v := os.Getenv("TH_TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}
	if v := os.Getenv("TH_TRACING_PROTOCOL"); v != "" {
		cfg.Tracing.Protocol = v
	}
	if v := os.Getenv("TH_TRACING_SAMPLE_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Tracing.SampleRatio = f
		}
	}
	envBool("TH_METRICS_ENABLED", &cfg.Metrics.Enabled)
}

func envBool(name string, dst *bool) {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envInt64(name string, dst *int64) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}
