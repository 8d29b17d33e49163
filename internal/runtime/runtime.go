package runtime

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/rzbill/tablehistory/internal/compactor"
	cfgpkg "github.com/rzbill/tablehistory/internal/config"
	"github.com/rzbill/tablehistory/internal/history"
	pebblestore "github.com/rzbill/tablehistory/internal/storage/pebble"
	"github.com/rzbill/tablehistory/internal/tables"
	"github.com/rzbill/tablehistory/internal/workqueue"
	"github.com/rzbill/tablehistory/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	Logger        log.Logger
	// Metrics observes storage activity. Optional.
	Metrics pebblestore.MetricsHook
}

// Runtime wires storage, config, the table registry and the compactor for a
// single-node instance.
type Runtime struct {
	db     *pebblestore.DB
	config cfgpkg.Config
	logger log.Logger
	nameRe *regexp.Regexp

	mu   sync.Mutex
	logs map[string]*history.Log

	queue     *workqueue.Queue
	compactor *compactor.Worker
	started   bool
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	nameRe, err := regexp.Compile("^(?:" + opts.Config.TableNameRegex + ")$")
	if err != nil {
		return nil, fmt.Errorf("config: tableNameRegex: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger(log.WithLevel(log.InfoLevel))
	}
	db, err := pebblestore.Open(pebblestore.Options{DataDir: opts.DataDir, Fsync: opts.Fsync, FsyncInterval: opts.FsyncInterval, Metrics: opts.Metrics})
	if err != nil {
		return nil, err
	}
	q, err := workqueue.OpenQueue(db, compactor.QueueName)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open vacuum queue: %w", err)
	}
	rt := &Runtime{
		db:     db,
		config: opts.Config,
		logger: logger,
		nameRe: nameRe,
		logs:   make(map[string]*history.Log),
		queue:  q,
	}
	vc := opts.Config.Vacuum
	rt.compactor = compactor.New(q, rt.OpenLog, compactor.Options{
		BatchSize:     vc.BatchSize,
		SettleDelay:   time.Duration(vc.SettleDelayMs) * time.Millisecond,
		PollInterval:  time.Duration(vc.PollIntervalMs) * time.Millisecond,
		Lease:         time.Duration(vc.LeaseMs) * time.Millisecond,
		RetryAfter:    time.Duration(vc.RetryAfterMs) * time.Millisecond,
		SweepInterval: time.Duration(vc.SweepIntervalMs) * time.Millisecond,
	}, logger)
	return rt, nil
}

// StartBackground starts the compactor.
func (r *Runtime) StartBackground() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.compactor.Start()
}

// Close stops background work and closes underlying resources.
func (r *Runtime) Close() error {
	r.mu.Lock()
	started := r.started
	r.started = false
	r.mu.Unlock()
	if started {
		r.compactor.Stop()
	}
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Table resolves a table, creating it with the configured default policy
// when auto-creation is enabled.
func (r *Runtime) Table(name string) (tables.Meta, error) {
	if err := r.validName(name); err != nil {
		return tables.Meta{}, err
	}
	m, err := tables.Get(r.db, name)
	if err == nil || !errors.Is(err, tables.ErrNotFound) || !r.config.AllowAutoCreateTables {
		return m, err
	}
	m, created, err := tables.EnsureTable(r.db, name, history.Policy(r.config.DefaultSerializability))
	if err == nil && created {
		r.logger.Info("table auto-created", log.Str("table", name), log.Str("serializability", string(m.Serializability)))
	}
	return m, err
}

// LookupTable resolves an existing table without creating it.
func (r *Runtime) LookupTable(name string) (tables.Meta, error) {
	if err := r.validName(name); err != nil {
		return tables.Meta{}, err
	}
	return tables.Get(r.db, name)
}

// CreateTable registers a table. An existing table is returned unchanged.
func (r *Runtime) CreateTable(name string, policy history.Policy) (tables.Meta, bool, error) {
	if err := r.validName(name); err != nil {
		return tables.Meta{}, false, err
	}
	if policy == "" {
		policy = history.Policy(r.config.DefaultSerializability)
	}
	return tables.EnsureTable(r.db, name, policy)
}

// ListTables returns all registered tables.
func (r *Runtime) ListTables() ([]tables.Meta, error) { return tables.List(r.db) }

func (r *Runtime) validName(name string) error {
	if !r.nameRe.MatchString(name) {
		return fmt.Errorf("%w: table name %q does not match %s", history.ErrInvalidArgument, name, r.config.TableNameRegex)
	}
	return nil
}

// OpenLog returns the shared revision log of table. Writers of one table must
// go through the same *history.Log for its locks to order them.
func (r *Runtime) OpenLog(table string) (*history.Log, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.logs[table]; ok {
		return l, nil
	}
	l, err := history.OpenLog(r.db, table)
	if err != nil {
		return nil, err
	}
	r.logs[table] = l
	return l, nil
}

// Compactor returns the background compaction worker.
func (r *Runtime) Compactor() *compactor.Worker { return r.compactor }

// Queue returns the compaction job queue.
func (r *Runtime) Queue() *workqueue.Queue { return r.queue }

// DB exposes the underlying DB for advanced operations (internal use only).
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the runtime logger.
func (r *Runtime) Logger() log.Logger { return r.logger }
