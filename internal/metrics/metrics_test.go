package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	pebblestore "github.com/rzbill/tablehistory/internal/storage/pebble"
)

var _ pebblestore.MetricsHook = StorageHook{}

func TestStorageHookCounts(t *testing.T) {
	before := testutil.ToFloat64(StorageOps.WithLabelValues("batch_op"))
	beforeBytes := testutil.ToFloat64(StorageBytes.WithLabelValues("batch_commit"))

	StorageHook{}.ObserveBatchCommit(time.Millisecond, 3, 120)

	require.Equal(t, before+3, testutil.ToFloat64(StorageOps.WithLabelValues("batch_op")))
	require.Equal(t, beforeBytes+120, testutil.ToFloat64(StorageBytes.WithLabelValues("batch_commit")))
}

func TestObserveRequest(t *testing.T) {
	ObserveRequest("http", "GET /v1/tables", "200", time.Now())
	require.Equal(t, 1, testutil.CollectAndCount(RequestDuration, "tablehistory_request_duration_seconds"))
}
