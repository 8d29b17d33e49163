// Package config provides loading and environment overlay for the history
// store configuration. It exposes a Default() baseline, file loading (JSON or
// YAML by extension) and a TH_* environment overlay.
//
// Example:
//
//	cfg, err := config.Load("/etc/tablehistory.yaml")
//	if err != nil {
//	    return err
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	rt, _ := runtime.Open(runtime.Options{DataDir: config.DefaultDataDir(), Config: cfg})
//	defer rt.Close()
package config
