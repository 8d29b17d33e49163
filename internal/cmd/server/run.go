package serverrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	cfgpkg "github.com/rzbill/tablehistory/internal/config"
	"github.com/rzbill/tablehistory/internal/metrics"
	"github.com/rzbill/tablehistory/internal/runtime"
	grpcserver "github.com/rzbill/tablehistory/internal/server/grpc"
	httpserver "github.com/rzbill/tablehistory/internal/server/http"
	pebblestore "github.com/rzbill/tablehistory/internal/storage/pebble"
	"github.com/rzbill/tablehistory/internal/tracing"
	logpkg "github.com/rzbill/tablehistory/pkg/log"
)

type Options struct {
	DataDir       string
	GRPCAddr      string
	HTTPAddr      string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
}

// ParseFsyncMode maps the --fsync flag value to a store mode.
func ParseFsyncMode(s string) (pebblestore.FsyncMode, error) {
	switch s {
	case "", "always":
		return pebblestore.FsyncModeAlways, nil
	case "interval":
		return pebblestore.FsyncModeInterval, nil
	case "never":
		return pebblestore.FsyncModeNever, nil
	default:
		return pebblestore.FsyncModeUnspecified, fmt.Errorf("invalid fsync mode %q; use always|interval|never", s)
	}
}

// NewLogger builds the process logger from the log section of cfg, falling
// back to info-level text output when the section is invalid.
func NewLogger(cfg cfgpkg.LogConfig) logpkg.Logger {
	l, err := logpkg.ApplyConfig(&logpkg.Config{Level: cfg.Level, Format: cfg.Format})
	if err == nil {
		return l
	}
	l = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	l.Warn("invalid log config, using defaults", logpkg.Err(err))
	return l
}

// Run starts the compactor plus the gRPC and HTTP servers and blocks until
// ctx is cancelled or one of the servers fails.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}

	logger := NewLogger(opts.Config.Log)
	// Pebble logs through the standard library logger.
	logpkg.RedirectStdLog(logger)

	shutdownTracing, err := tracing.Init(sctx, opts.Config.Tracing, logger)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer shutdownTracing()

	var hook pebblestore.MetricsHook
	if opts.Config.Metrics.Enabled {
		hook = metrics.StorageHook{}
	}
	rt, err := runtime.Open(runtime.Options{
		DataDir:       filepath.Join(opts.DataDir, "store"),
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Config:        opts.Config,
		Logger:        logger,
		Metrics:       hook,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("starting tablehistory server",
		logpkg.Str("data_dir", opts.DataDir),
		logpkg.Str("grpc", opts.GRPCAddr),
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("default_serializability", opts.Config.DefaultSerializability),
	)
	rt.StartBackground()

	gsrv := grpcserver.New(rt)
	hsrv := httpserver.New(rt)

	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error {
		if err := gsrv.ListenAndServe(gctx, opts.GRPCAddr); err != nil {
			return fmt.Errorf("grpc: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := hsrv.ListenAndServe(gctx, opts.HTTPAddr); err != nil {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	err = g.Wait()

	// Servers stop before the runtime closes the store.
	gsrv.Close()
	hsrv.Close()
	if err != nil {
		logger.Error("server stopped with error", logpkg.Err(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
