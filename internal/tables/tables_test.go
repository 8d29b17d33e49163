package tables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/tablehistory/internal/history"
	pebblestore "github.com/rzbill/tablehistory/internal/storage/pebble"
)

func openDB(t *testing.T) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEnsureTableIdempotent(t *testing.T) {
	db := openDB(t)
	m1, created, err := EnsureTable(db, "orders", history.PolicyTable)
	require.NoError(t, err)
	assert.True(t, created)
	m2, created, err := EnsureTable(db, "orders", history.PolicyDocument)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, m1, m2, "an existing table keeps its policy")
	assert.Equal(t, history.PolicyTable, m2.Serializability)
}

func TestEnsureTableDefaultsPolicy(t *testing.T) {
	db := openDB(t)
	m, _, err := EnsureTable(db, "items", "")
	require.NoError(t, err)
	assert.Equal(t, history.DefaultPolicy, m.Serializability)

	_, _, err = EnsureTable(db, "bad", "sometimes")
	assert.ErrorIs(t, err, history.ErrInvalidArgument)
}

func TestGetAndList(t *testing.T) {
	db := openDB(t)
	_, err := Get(db, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, n := range []string{"zeta", "alpha", "mid"} {
		_, _, err := EnsureTable(db, n, "")
		require.NoError(t, err)
	}
	all, err := List(db)
	require.NoError(t, err)
	names := make([]string, 0, len(all))
	for _, m := range all {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}
