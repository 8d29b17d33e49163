// Package metrics holds the Prometheus collectors of the history store.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RevisionsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tablehistory_revisions_written_total",
		Help: "Revisions recorded, by table and kind (update or delete).",
	}, []string{"table", "kind"})

	ListDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tablehistory_list_duration_seconds",
		Help:    "Latency of history and snapshot listings.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"op"})

	SplitsRecommended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tablehistory_snapshot_splits_recommended_total",
		Help: "Snapshot pages that returned a split recommendation.",
	})

	VacuumBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tablehistory_vacuum_batches_total",
		Help: "Compaction batches, by outcome.",
	}, []string{"outcome"})

	VacuumDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tablehistory_vacuum_deleted_revisions_total",
		Help: "Revisions removed by compaction.",
	})

	Watermark = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tablehistory_watermark_ms",
		Help: "Retention watermark per table.",
	}, []string{"table"})

	StorageOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tablehistory_storage_ops_total",
		Help: "Pebble operations, by kind.",
	}, []string{"kind"})

	StorageBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tablehistory_storage_bytes_total",
		Help: "Bytes passed to Pebble, by kind.",
	}, []string{"kind"})

	StorageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tablehistory_storage_latency_seconds",
		Help:    "Pebble operation latency.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	}, []string{"kind"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tablehistory_request_duration_seconds",
		Help:    "API request latency by transport, method and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"transport", "method", "code"})
)

// StorageHook reports Pebble activity to the storage collectors. It satisfies
// the storage package's MetricsHook.
type StorageHook struct{}

func (StorageHook) ObserveWrite(d time.Duration, bytes int) {
	observeStorage("write", d, bytes)
}

func (StorageHook) ObserveRead(d time.Duration, bytes int) {
	observeStorage("read", d, bytes)
}

func (StorageHook) ObserveBatchCommit(d time.Duration, ops int, bytes int) {
	StorageOps.WithLabelValues("batch_op").Add(float64(ops))
	observeStorage("batch_commit", d, bytes)
}

func observeStorage(kind string, d time.Duration, bytes int) {
	StorageOps.WithLabelValues(kind).Inc()
	StorageBytes.WithLabelValues(kind).Add(float64(bytes))
	StorageLatency.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveRequest records one API request.
func ObserveRequest(transport, method, code string, started time.Time) {
	RequestDuration.WithLabelValues(transport, method, code).Observe(time.Since(started).Seconds())
}
