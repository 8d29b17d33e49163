package grpcserver

import (
	"context"

	historyv1 "github.com/rzbill/tablehistory/api/history/v1"
	historysvc "github.com/rzbill/tablehistory/internal/services/history"
)

type historyServer struct {
	historyv1.UnimplementedHistoryServiceServer
	svc *historysvc.Service
}

func (h *historyServer) Update(ctx context.Context, req *historyv1.UpdateRequest) (*historyv1.UpdateResponse, error) {
	ts, err := h.svc.Update(ctx, historysvc.UpdateRequest{
		Table:           req.Table,
		Key:             req.Key,
		Doc:             historyv1.DocBytes(req.Doc),
		Serializability: req.Serializability,
		Attribution:     attribution(req.Attribution),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &historyv1.UpdateResponse{Ts: ts}, nil
}

func (h *historyServer) ListHistory(ctx context.Context, req *historyv1.ListHistoryRequest) (*historyv1.PageResponse, error) {
	page, err := h.svc.ListHistory(ctx, historysvc.HistoryQuery{
		Table:    req.Table,
		MaxTs:    req.MaxTs,
		Cursor:   req.Cursor,
		NumItems: req.NumItems,
		Filter:   req.Filter,
		WaitMs:   req.WaitMs,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return historyv1.FromPage(page), nil
}

func (h *historyServer) ListDocumentHistory(ctx context.Context, req *historyv1.ListDocumentHistoryRequest) (*historyv1.PageResponse, error) {
	page, err := h.svc.ListDocumentHistory(ctx, historysvc.DocumentHistoryQuery{
		Table:    req.Table,
		Key:      req.Key,
		MaxTs:    req.MaxTs,
		Cursor:   req.Cursor,
		NumItems: req.NumItems,
		Filter:   req.Filter,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return historyv1.FromPage(page), nil
}

func (h *historyServer) ListSnapshot(ctx context.Context, req *historyv1.ListSnapshotRequest) (*historyv1.SnapshotResponse, error) {
	res, err := h.svc.ListSnapshot(ctx, historysvc.SnapshotQuery{
		Table:      req.Table,
		SnapshotTs: req.SnapshotTs,
		CurrentTs:  req.CurrentTs,
		Cursor:     req.Cursor,
		NumItems:   req.NumItems,
		EndCursor:  req.EndCursor,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &historyv1.SnapshotResponse{
		Entries:        historyv1.FromEntries(res.Entries),
		ContinueCursor: res.ContinueCursor,
		IsDone:         res.IsDone,
		SplitCursor:    res.SplitCursor,
		PageStatus:     string(res.PageStatus),
		CurrentTs:      res.CurrentTs,
	}, nil
}

func (h *historyServer) Vacuum(ctx context.Context, req *historyv1.VacuumRequest) (*historyv1.VacuumResponse, error) {
	st, err := h.svc.Vacuum(ctx, historysvc.VacuumRequest{Table: req.Table, MinTsToKeep: req.MinTsToKeep, Sync: req.Sync})
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &historyv1.VacuumResponse{Table: st.Table, RunID: st.RunID, Scheduled: st.Scheduled}
	if st.Result != nil {
		resp.Result = historyv1.FromVacuumResult(*st.Result)
	}
	return resp, nil
}

func (h *historyServer) GetWatermark(ctx context.Context, req *historyv1.GetWatermarkRequest) (*historyv1.GetWatermarkResponse, error) {
	wm, ok, err := h.svc.Watermark(ctx, req.Table)
	if err != nil {
		return nil, toStatus(err)
	}
	return &historyv1.GetWatermarkResponse{Table: req.Table, Watermark: wm, Exists: ok}, nil
}

func (h *historyServer) CreateTable(ctx context.Context, req *historyv1.CreateTableRequest) (*historyv1.CreateTableResponse, error) {
	m, created, err := h.svc.CreateTable(ctx, req.Name, req.Serializability)
	if err != nil {
		return nil, toStatus(err)
	}
	return &historyv1.CreateTableResponse{Table: historyv1.FromTable(m), Created: created}, nil
}

func (h *historyServer) ListTables(ctx context.Context, _ *historyv1.ListTablesRequest) (*historyv1.ListTablesResponse, error) {
	all, err := h.svc.ListTables(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &historyv1.ListTablesResponse{Tables: make([]historyv1.Table, 0, len(all))}
	for _, m := range all {
		resp.Tables = append(resp.Tables, historyv1.FromTable(m))
	}
	return resp, nil
}

func attribution(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}
