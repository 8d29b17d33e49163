// Package transports provides pluggable transport implementations for the CLI.
package transports

import (
	"context"

	"google.golang.org/grpc"

	historyv1 "github.com/rzbill/tablehistory/api/history/v1"
)

// GrpcTransport implements HistoryTransport over gRPC.
type GrpcTransport struct {
	dial func(ctx context.Context) (*grpc.ClientConn, error)
}

// NewGrpcTransport constructs a new GrpcTransport using the provided dialer.
func NewGrpcTransport(dial func(ctx context.Context) (*grpc.ClientConn, error)) *GrpcTransport {
	return &GrpcTransport{dial: dial}
}

// call dials, runs fn against a fresh client and closes the connection.
func call[Resp any](ctx context.Context, t *GrpcTransport, fn func(*historyv1.HistoryServiceClient) (*Resp, error)) (*Resp, error) {
	conn, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()
	return fn(historyv1.NewHistoryServiceClient(conn))
}

func (t *GrpcTransport) Update(ctx context.Context, req *historyv1.UpdateRequest) (*historyv1.UpdateResponse, error) {
	return call(ctx, t, func(c *historyv1.HistoryServiceClient) (*historyv1.UpdateResponse, error) {
		return c.Update(ctx, req)
	})
}

func (t *GrpcTransport) ListHistory(ctx context.Context, req *historyv1.ListHistoryRequest) (*historyv1.PageResponse, error) {
	return call(ctx, t, func(c *historyv1.HistoryServiceClient) (*historyv1.PageResponse, error) {
		return c.ListHistory(ctx, req)
	})
}

func (t *GrpcTransport) ListDocumentHistory(ctx context.Context, req *historyv1.ListDocumentHistoryRequest) (*historyv1.PageResponse, error) {
	return call(ctx, t, func(c *historyv1.HistoryServiceClient) (*historyv1.PageResponse, error) {
		return c.ListDocumentHistory(ctx, req)
	})
}

func (t *GrpcTransport) ListSnapshot(ctx context.Context, req *historyv1.ListSnapshotRequest) (*historyv1.SnapshotResponse, error) {
	return call(ctx, t, func(c *historyv1.HistoryServiceClient) (*historyv1.SnapshotResponse, error) {
		return c.ListSnapshot(ctx, req)
	})
}

func (t *GrpcTransport) Vacuum(ctx context.Context, req *historyv1.VacuumRequest) (*historyv1.VacuumResponse, error) {
	return call(ctx, t, func(c *historyv1.HistoryServiceClient) (*historyv1.VacuumResponse, error) {
		return c.Vacuum(ctx, req)
	})
}

func (t *GrpcTransport) GetWatermark(ctx context.Context, table string) (*historyv1.GetWatermarkResponse, error) {
	return call(ctx, t, func(c *historyv1.HistoryServiceClient) (*historyv1.GetWatermarkResponse, error) {
		return c.GetWatermark(ctx, &historyv1.GetWatermarkRequest{Table: table})
	})
}

func (t *GrpcTransport) CreateTable(ctx context.Context, req *historyv1.CreateTableRequest) (*historyv1.CreateTableResponse, error) {
	return call(ctx, t, func(c *historyv1.HistoryServiceClient) (*historyv1.CreateTableResponse, error) {
		return c.CreateTable(ctx, req)
	})
}

func (t *GrpcTransport) ListTables(ctx context.Context) (*historyv1.ListTablesResponse, error) {
	return call(ctx, t, func(c *historyv1.HistoryServiceClient) (*historyv1.ListTablesResponse, error) {
		return c.ListTables(ctx, &historyv1.ListTablesRequest{})
	})
}
