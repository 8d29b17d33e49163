package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/rzbill/tablehistory/internal/config"
	"github.com/rzbill/tablehistory/internal/history"
	pebblestore "github.com/rzbill/tablehistory/internal/storage/pebble"
	"github.com/rzbill/tablehistory/internal/tables"
	"github.com/rzbill/tablehistory/pkg/log"
)

func openRuntime(t *testing.T, cfg cfgpkg.Config) *Runtime {
	t.Helper()
	rt, err := Open(Options{
		DataDir: t.TempDir(),
		Fsync:   pebblestore.FsyncModeAlways,
		Config:  cfg,
		Logger:  log.NewLogger(log.WithOutput(log.NullOutput{})),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestOpenCloseHealth(t *testing.T) {
	rt := openRuntime(t, cfgpkg.Default())
	require.NoError(t, rt.CheckHealth(context.Background()))
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.DefaultSerializability = "never"
	_, err := Open(Options{DataDir: t.TempDir(), Config: cfg})
	require.Error(t, err)
}

func TestTableAutoCreate(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.DefaultSerializability = "document"
	rt := openRuntime(t, cfg)

	m, err := rt.Table("orders")
	require.NoError(t, err)
	assert.Equal(t, history.PolicyDocument, m.Serializability)

	_, err = rt.Table("bad/name")
	assert.ErrorIs(t, err, history.ErrInvalidArgument)
}

func TestTableWithoutAutoCreate(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.AllowAutoCreateTables = false
	rt := openRuntime(t, cfg)

	_, err := rt.Table("orders")
	assert.ErrorIs(t, err, tables.ErrNotFound)
	_, err = rt.LookupTable("orders")
	assert.ErrorIs(t, err, tables.ErrNotFound)

	_, created, err := rt.CreateTable("orders", history.PolicyTable)
	require.NoError(t, err)
	assert.True(t, created)
	m, err := rt.Table("orders")
	require.NoError(t, err)
	assert.Equal(t, history.PolicyTable, m.Serializability)

	all, err := rt.ListTables()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestOpenLogIsShared(t *testing.T) {
	rt := openRuntime(t, cfgpkg.Default())
	a, err := rt.OpenLog("orders")
	require.NoError(t, err)
	b, err := rt.OpenLog("orders")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestBackgroundStartStop(t *testing.T) {
	rt := openRuntime(t, cfgpkg.Default())
	rt.StartBackground()
	rt.StartBackground()
	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close())
}
