// Package historysvc implements the history facade consumed by the gRPC and
// HTTP transports. It resolves tables through the runtime registry, applies
// each table's default serializability, evaluates CEL filters during scans
// and schedules background compaction.
//
// Example:
//
//	svc := historysvc.New(rt)
//	ts, _ := svc.Update(ctx, historysvc.UpdateRequest{Table: "orders", Key: "o-1", Doc: []byte(`{"total":12}`)})
//	page, _ := svc.ListHistory(ctx, historysvc.HistoryQuery{Table: "orders", MaxTs: &ts, NumItems: 50, Filter: `doc.total > 10`})
//	snap, _ := svc.ListSnapshot(ctx, historysvc.SnapshotQuery{Table: "orders", SnapshotTs: ts, NumItems: 100})
//	_ = page
//	_ = snap
package historysvc
