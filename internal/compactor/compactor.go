package compactor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rzbill/tablehistory/internal/history"
	"github.com/rzbill/tablehistory/internal/metrics"
	"github.com/rzbill/tablehistory/internal/workqueue"
	"github.com/rzbill/tablehistory/pkg/log"
)

// QueueName is the work queue that carries compaction jobs.
const QueueName = "vacuum"

const jobHeader = "vacuum.v1"

// Job is the persisted state of one compaction run between batches.
type Job struct {
	Table       string `json:"table"`
	MinTsToKeep int64  `json:"minTsToKeep"`
	Cursor      string `json:"cursor,omitempty"`
	RunID       string `json:"runId"`
	// Batches counts batches already committed by this run.
	Batches int `json:"batches"`
}

// LogResolver returns the revision log of a table.
type LogResolver func(table string) (*history.Log, error)

// Options tunes the worker. Zero values take defaults.
type Options struct {
	BatchSize     int
	SettleDelay   time.Duration
	PollInterval  time.Duration
	Lease         time.Duration
	RetryAfter    time.Duration
	SweepInterval time.Duration
	// MaxJobsPerPoll bounds the jobs leased on one poll.
	MaxJobsPerPoll int
}

func (o *Options) withDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = history.DefaultVacuumBatch
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 200 * time.Millisecond
	}
	if o.Lease <= 0 {
		o.Lease = 30 * time.Second
	}
	if o.RetryAfter <= 0 {
		o.RetryAfter = time.Second
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = time.Second
	}
	if o.MaxJobsPerPoll <= 0 {
		o.MaxJobsPerPoll = 16
	}
}

// Worker runs compaction jobs from the queue, one batch per delivery.
type Worker struct {
	q      *workqueue.Queue
	logs   LogResolver
	opts   Options
	logger log.Logger
	tracer trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a worker over q. Call Start to run it in the background.
func New(q *workqueue.Queue, logs LogResolver, opts Options, logger log.Logger) *Worker {
	opts.withDefaults()
	if logger == nil {
		logger = log.NewLogger(log.WithLevel(log.InfoLevel))
	}
	return &Worker{
		q:      q,
		logs:   logs,
		opts:   opts,
		logger: logger.WithComponent("compactor"),
		tracer: otel.Tracer("tablehistory/compactor"),
	}
}

// Schedule enqueues a compaction run of table toward minTsToKeep. The first
// batch runs after the settle delay so in-flight writers can finish.
func (w *Worker) Schedule(ctx context.Context, table string, minTsToKeep int64, nowMs int64) (Job, error) {
	if table == "" {
		return Job{}, fmt.Errorf("%w: empty table", history.ErrInvalidArgument)
	}
	job := Job{Table: table, MinTsToKeep: minTsToKeep, RunID: uuid.NewString()}
	payload, err := json.Marshal(job)
	if err != nil {
		return Job{}, err
	}
	if _, err := w.q.Enqueue(ctx, []byte(jobHeader), payload, w.opts.SettleDelay.Milliseconds(), nowMs); err != nil {
		return Job{}, fmt.Errorf("enqueue vacuum job: %w", err)
	}
	w.logger.Info("vacuum scheduled",
		log.Str("table", table),
		log.Int64("min_ts_to_keep", minTsToKeep),
		log.Str("run_id", job.RunID),
	)
	return job, nil
}

// Start begins polling the queue and reclaiming expired leases.
func (w *Worker) Start() {
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.q.StartSweeper(w.opts.SweepInterval, 0)
	w.wg.Add(1)
	go w.run()
}

// Stop stops polling and waits for the current batch to finish.
func (w *Worker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
	w.q.StopSweeper()
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	w.logger.Info("compactor started", log.Str("poll_interval", w.opts.PollInterval.String()))
	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("compactor stopped")
			return
		case <-ticker.C:
			// keep going while continuations are immediately due
			for {
				n, err := w.RunDue(w.ctx, time.Now().UnixMilli())
				if err != nil && w.ctx.Err() == nil {
					w.logger.Error("compactor poll failed", log.Err(err))
				}
				if n == 0 || err != nil {
					break
				}
			}
		}
	}
}

// RunDue leases the jobs due at nowMs and runs one batch of each. It returns
// the number of jobs handled.
func (w *Worker) RunDue(ctx context.Context, nowMs int64) (int, error) {
	msgs, err := w.q.Dequeue(ctx, w.opts.MaxJobsPerPoll, w.opts.Lease.Milliseconds(), nowMs)
	if err != nil {
		return 0, fmt.Errorf("dequeue vacuum jobs: %w", err)
	}
	for _, m := range msgs {
		if err := w.process(ctx, m, nowMs); err != nil {
			metrics.VacuumBatches.WithLabelValues("failed").Inc()
			w.logger.Warn("vacuum batch failed, retrying",
				log.Uint64("job_seq", m.Seq),
				log.Int("attempts", int(m.Attempts)+1),
				log.Err(err),
			)
			if ferr := w.q.Fail(ctx, m, w.opts.RetryAfter.Milliseconds(), nowMs); ferr != nil {
				return len(msgs), errors.Join(err, ferr)
			}
		}
	}
	return len(msgs), nil
}

// Drain runs due jobs at nowMs until none are left. Jobs that keep failing
// are retried after RetryAfter, past nowMs, so Drain terminates.
func (w *Worker) Drain(ctx context.Context, nowMs int64) error {
	for {
		n, err := w.RunDue(ctx, nowMs)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

func (w *Worker) process(ctx context.Context, m workqueue.LeasedMessage, nowMs int64) error {
	if string(m.Header) != jobHeader {
		w.logger.Error("dropping unknown job", log.Str("header", string(m.Header)), log.Uint64("job_seq", m.Seq))
		return w.q.Complete(ctx, m)
	}
	var job Job
	if err := json.Unmarshal(m.Payload, &job); err != nil {
		w.logger.Error("dropping malformed vacuum job", log.Uint64("job_seq", m.Seq), log.Err(err))
		return w.q.Complete(ctx, m)
	}

	ctx, span := w.tracer.Start(ctx, "compactor.VacuumBatch", trace.WithAttributes(
		attribute.String("table", job.Table),
		attribute.Int64("min_ts_to_keep", job.MinTsToKeep),
		attribute.String("run_id", job.RunID),
		attribute.Int("batch", job.Batches),
	))
	defer span.End()

	l, err := w.logs(job.Table)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("open table %q: %w", job.Table, err)
	}

	stage := func(b *pebble.Batch, res history.VacuumResult) error {
		if !res.Done {
			next := job
			next.Cursor = res.NextCursor
			next.Batches++
			payload, err := json.Marshal(next)
			if err != nil {
				return err
			}
			if _, err := w.q.StageEnqueue(b, []byte(jobHeader), payload, 0, nowMs); err != nil {
				return err
			}
		}
		return w.q.StageComplete(b, m)
	}
	res, err := l.VacuumBatch(ctx, job.MinTsToKeep, job.Cursor, w.opts.BatchSize, stage)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetAttributes(
		attribute.Int("processed", res.Processed),
		attribute.Int("deleted", res.Deleted),
		attribute.Int64("watermark", res.Watermark),
		attribute.Bool("done", res.Done),
	)
	metrics.VacuumBatches.WithLabelValues("committed").Inc()
	metrics.VacuumDeleted.Add(float64(res.Deleted))
	metrics.Watermark.WithLabelValues(job.Table).Set(float64(res.Watermark))

	fields := []log.Field{
		log.Str("table", job.Table),
		log.Str("run_id", job.RunID),
		log.Int("batch", job.Batches),
		log.Int("processed", res.Processed),
		log.Int("deleted", res.Deleted),
		log.Int64("watermark", res.Watermark),
	}
	if res.Done {
		w.logger.Info("vacuum complete", fields...)
	} else {
		w.logger.Debug("vacuum batch committed", fields...)
	}
	return nil
}
