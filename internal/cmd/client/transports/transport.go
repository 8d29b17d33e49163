package transports

import (
	"context"

	historyv1 "github.com/rzbill/tablehistory/api/history/v1"
)

// HistoryTransport abstracts the transport used by the CLI (gRPC/HTTP).
type HistoryTransport interface {
	Update(ctx context.Context, req *historyv1.UpdateRequest) (*historyv1.UpdateResponse, error)
	ListHistory(ctx context.Context, req *historyv1.ListHistoryRequest) (*historyv1.PageResponse, error)
	ListDocumentHistory(ctx context.Context, req *historyv1.ListDocumentHistoryRequest) (*historyv1.PageResponse, error)
	ListSnapshot(ctx context.Context, req *historyv1.ListSnapshotRequest) (*historyv1.SnapshotResponse, error)
	Vacuum(ctx context.Context, req *historyv1.VacuumRequest) (*historyv1.VacuumResponse, error)
	GetWatermark(ctx context.Context, table string) (*historyv1.GetWatermarkResponse, error)
	CreateTable(ctx context.Context, req *historyv1.CreateTableRequest) (*historyv1.CreateTableResponse, error)
	ListTables(ctx context.Context) (*historyv1.ListTablesResponse, error)
}
