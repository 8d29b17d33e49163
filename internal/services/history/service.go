package historysvc

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rzbill/tablehistory/internal/history"
	"github.com/rzbill/tablehistory/internal/metrics"
	"github.com/rzbill/tablehistory/internal/runtime"
	"github.com/rzbill/tablehistory/internal/tables"
	logpkg "github.com/rzbill/tablehistory/pkg/log"
)

// Service exposes the revision log of every table to the transports. It
// resolves tables, applies their default policy, compiles filters and clamps
// page sizes.
type Service struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
	tracer trace.Tracer
}

// New returns a Service using the runtime logger.
func New(rt *runtime.Runtime) *Service {
	return NewWithLogger(rt, rt.Logger())
}

// NewWithLogger returns a Service using the provided logger.
func NewWithLogger(rt *runtime.Runtime, logger logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Service{rt: rt, logger: logger.WithComponent("history"), tracer: otel.Tracer("tablehistory/history")}
}

func (s *Service) startSpan(ctx context.Context, name, table string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(append(attrs, attribute.String("table", table))...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) openLog(table string, create bool) (tables.Meta, *history.Log, error) {
	var (
		meta tables.Meta
		err  error
	)
	if create {
		meta, err = s.rt.Table(table)
	} else {
		meta, err = s.rt.LookupTable(table)
	}
	if err != nil {
		return tables.Meta{}, nil, err
	}
	l, err := s.rt.OpenLog(meta.Name)
	if err != nil {
		return tables.Meta{}, nil, err
	}
	return meta, l, nil
}

func (s *Service) clamp(n int) int {
	if max := s.rt.Config().MaxPageSize; max > 0 && n > max {
		return max
	}
	return n
}

func boundTs(ts *int64) int64 {
	if ts == nil {
		return math.MaxInt64
	}
	return *ts
}

// Update records a revision and returns its timestamp.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (ts int64, err error) {
	ctx, span := s.startSpan(ctx, "history.Update", req.Table, attribute.String("key", req.Key), attribute.Bool("deleted", req.Doc == nil))
	defer func() { endSpan(span, err) }()

	if req.Doc != nil && !json.Valid(req.Doc) {
		return 0, fmt.Errorf("%w: document is not valid JSON", history.ErrInvalidArgument)
	}
	meta, l, err := s.openLog(req.Table, true)
	if err != nil {
		return 0, err
	}
	policy := meta.Serializability
	if req.Serializability != "" {
		if policy, err = history.ParsePolicy(req.Serializability); err != nil {
			return 0, err
		}
	}
	ts, err = l.Update(ctx, req.Key, req.Doc, policy, req.Attribution)
	if err != nil {
		return 0, err
	}
	kind := "update"
	if req.Doc == nil {
		kind = "delete"
	}
	metrics.RevisionsWritten.WithLabelValues(meta.Name, kind).Inc()
	span.SetAttributes(attribute.Int64("ts", ts))
	s.logger.Debug("revision recorded",
		logpkg.Str("table", meta.Name),
		logpkg.Str("key", req.Key),
		logpkg.Int64("ts", ts),
		logpkg.Str("kind", kind),
	)
	return ts, nil
}

// RecordChange turns a host-table write into a revision: inserts and updates
// record the new document, deletes record a tombstone.
func (s *Service) RecordChange(ctx context.Context, table string, ev ChangeEvent) (int64, error) {
	req := UpdateRequest{Table: table, Key: ev.Key, Attribution: ev.Attribution}
	switch ev.Op {
	case OpInsert, OpUpdate:
		if ev.NewDoc == nil {
			return 0, fmt.Errorf("%w: %s without a document", history.ErrInvalidArgument, ev.Op)
		}
		req.Doc = ev.NewDoc
	case OpDelete:
	default:
		return 0, fmt.Errorf("%w: unknown change op %q", history.ErrInvalidArgument, ev.Op)
	}
	return s.Update(ctx, req)
}

// ListHistory pages through a table's revisions, newest first.
func (s *Service) ListHistory(ctx context.Context, q HistoryQuery) (page history.Page, err error) {
	ctx, span := s.startSpan(ctx, "history.ListHistory", q.Table, attribute.Int64("max_ts", boundTs(q.MaxTs)), attribute.Int("num_items", q.NumItems))
	defer func() { endSpan(span, err) }()
	timer := prometheus.NewTimer(metrics.ListDuration.WithLabelValues("history"))
	defer timer.ObserveDuration()

	_, l, err := s.openLog(q.Table, false)
	if err != nil {
		return history.Page{}, err
	}
	filter, err := newCELFilter(q.Filter)
	if err != nil {
		return history.Page{}, err
	}
	req := history.PageRequest{Cursor: q.Cursor, NumItems: s.clamp(q.NumItems), Filter: filter.predicate()}
	updated := l.Updated()
	page, err = l.ListHistory(ctx, boundTs(q.MaxTs), req)
	if err != nil || q.WaitMs <= 0 || q.Cursor != "" || len(page.Entries) > 0 {
		return page, err
	}
	// a write may not match the filter, so keep waiting until the deadline
	deadline := time.Now().Add(time.Duration(q.WaitMs) * time.Millisecond)
	for len(page.Entries) == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 || !history.WaitOn(ctx, updated, remaining) {
			break
		}
		updated = l.Updated()
		if page, err = l.ListHistory(ctx, boundTs(q.MaxTs), req); err != nil {
			return page, err
		}
	}
	span.SetAttributes(attribute.Int("result_count", len(page.Entries)))
	return page, err
}

// ListDocumentHistory pages through the revisions of one key, newest first.
func (s *Service) ListDocumentHistory(ctx context.Context, q DocumentHistoryQuery) (page history.Page, err error) {
	ctx, span := s.startSpan(ctx, "history.ListDocumentHistory", q.Table, attribute.String("key", q.Key), attribute.Int64("max_ts", boundTs(q.MaxTs)))
	defer func() { endSpan(span, err) }()
	timer := prometheus.NewTimer(metrics.ListDuration.WithLabelValues("document_history"))
	defer timer.ObserveDuration()

	_, l, err := s.openLog(q.Table, false)
	if err != nil {
		return history.Page{}, err
	}
	filter, err := newCELFilter(q.Filter)
	if err != nil {
		return history.Page{}, err
	}
	page, err = l.ListDocumentHistory(ctx, q.Key, boundTs(q.MaxTs), history.PageRequest{
		Cursor:   q.Cursor,
		NumItems: s.clamp(q.NumItems),
		Filter:   filter.predicate(),
	})
	span.SetAttributes(attribute.Int("result_count", len(page.Entries)))
	return page, err
}

// ListSnapshot pages through the state of a table as of SnapshotTs.
func (s *Service) ListSnapshot(ctx context.Context, q SnapshotQuery) (res SnapshotResult, err error) {
	ctx, span := s.startSpan(ctx, "history.ListSnapshot", q.Table, attribute.Int64("snapshot_ts", q.SnapshotTs), attribute.Int("num_items", q.NumItems))
	defer func() { endSpan(span, err) }()
	timer := prometheus.NewTimer(metrics.ListDuration.WithLabelValues("snapshot"))
	defer timer.ObserveDuration()

	_, l, err := s.openLog(q.Table, false)
	if err != nil {
		return SnapshotResult{}, err
	}
	current := q.CurrentTs
	if current == 0 {
		current = history.NowMs()
		if current < q.SnapshotTs {
			current = q.SnapshotTs
		}
	}
	page, err := l.ListSnapshot(ctx, history.SnapshotRequest{
		SnapshotTs: q.SnapshotTs,
		CurrentTs:  current,
		Cursor:     q.Cursor,
		NumItems:   s.clamp(q.NumItems),
		EndCursor:  q.EndCursor,
	})
	if err != nil {
		return SnapshotResult{}, err
	}
	if page.PageStatus == history.SplitRecommended {
		metrics.SplitsRecommended.Inc()
	}
	span.SetAttributes(attribute.Int("result_count", len(page.Entries)), attribute.Bool("split", page.PageStatus == history.SplitRecommended))
	return SnapshotResult{SnapshotPage: page, CurrentTs: current}, nil
}

// Vacuum compacts history older than MinTsToKeep, either inline or by
// scheduling background jobs.
func (s *Service) Vacuum(ctx context.Context, req VacuumRequest) (st VacuumStatus, err error) {
	ctx, span := s.startSpan(ctx, "history.Vacuum", req.Table, attribute.Int64("min_ts_to_keep", req.MinTsToKeep), attribute.Bool("sync", req.Sync))
	defer func() { endSpan(span, err) }()

	meta, l, err := s.openLog(req.Table, false)
	if err != nil {
		return VacuumStatus{}, err
	}
	if req.Sync {
		res, err := l.Vacuum(ctx, req.MinTsToKeep, s.rt.Config().Vacuum.BatchSize)
		if err != nil {
			return VacuumStatus{}, err
		}
		metrics.VacuumDeleted.Add(float64(res.Deleted))
		metrics.Watermark.WithLabelValues(meta.Name).Set(float64(res.Watermark))
		s.logger.Info("vacuum complete",
			logpkg.Str("table", meta.Name),
			logpkg.Int64("watermark", res.Watermark),
			logpkg.Int("deleted", res.Deleted),
		)
		return VacuumStatus{Table: meta.Name, Result: &res}, nil
	}
	job, err := s.rt.Compactor().Schedule(ctx, meta.Name, req.MinTsToKeep, 0)
	if err != nil {
		return VacuumStatus{}, err
	}
	return VacuumStatus{Table: meta.Name, RunID: job.RunID, Scheduled: true}, nil
}

// Watermark returns the compaction watermark of a table; ok is false when
// the table was never compacted.
func (s *Service) Watermark(ctx context.Context, table string) (wm int64, ok bool, err error) {
	_, l, err := s.openLog(table, false)
	if err != nil {
		return 0, false, err
	}
	return l.Watermark()
}

// CreateTable registers a table with a default serializability.
func (s *Service) CreateTable(ctx context.Context, name, serializability string) (tables.Meta, bool, error) {
	var policy history.Policy
	if serializability != "" {
		p, err := history.ParsePolicy(serializability)
		if err != nil {
			return tables.Meta{}, false, err
		}
		policy = p
	}
	m, created, err := s.rt.CreateTable(name, policy)
	if err == nil && created {
		s.logger.Info("table created", logpkg.Str("table", m.Name), logpkg.Str("serializability", string(m.Serializability)))
	}
	return m, created, err
}

// ListTables returns all registered tables.
func (s *Service) ListTables(ctx context.Context) ([]tables.Meta, error) {
	return s.rt.ListTables()
}
