// Package runtime wires storage, config and the history components into a
// single-node instance. It exposes Open/Close, basic health checks, the
// table registry, shared per-table revision logs and the background
// compactor.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: config.Default()})
//	defer rt.Close()
//	rt.StartBackground()
//	if _, err := rt.Table("orders"); err != nil {
//	    return err
//	}
//	l, _ := rt.OpenLog("orders")
//	_, _ = l.Update(ctx, "order-1", []byte(`{"total":12}`), history.PolicyTable, nil)
package runtime
