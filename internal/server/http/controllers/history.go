package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	historyv1 "github.com/rzbill/tablehistory/api/history/v1"
	historysvc "github.com/rzbill/tablehistory/internal/services/history"
)

// HistoryController serves the per-table history endpoints.
//
// Request and response bodies are the historyv1 wire types, so the HTTP and
// gRPC surfaces speak the same JSON.
type HistoryController struct {
	svc *historysvc.Service
}

// NewHistoryController creates a new history controller.
func NewHistoryController(svc *historysvc.Service) *HistoryController {
	return &HistoryController{svc: svc}
}

// RegisterRoutes registers the /v1/tables/{table} subtree.
func (c *HistoryController) RegisterRoutes(r chi.Router) {
	r.Route("/v1/tables/{table}", func(r chi.Router) {
		r.Post("/revisions", c.handleUpdate)
		r.Get("/history", c.handleListHistory)
		r.Get("/documents/{key}/history", c.handleListDocumentHistory)
		r.Get("/snapshot", c.handleListSnapshot)
		r.Post("/vacuum", c.handleVacuum)
		r.Get("/watermark", c.handleWatermark)
	})
}

func tableParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	var table string
	if err := pathParam(r, "table", &table); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid table: "+err.Error())
		return "", false
	}
	return table, true
}

// handleUpdate records one revision. A missing or null doc records a deletion.
func (c *HistoryController) handleUpdate(w http.ResponseWriter, r *http.Request) {
	table, ok := tableParam(w, r)
	if !ok {
		return
	}
	var req historyv1.UpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	var attribution []byte
	if req.Attribution != "" {
		attribution = []byte(req.Attribution)
	}
	ts, err := c.svc.Update(r.Context(), historysvc.UpdateRequest{
		Table:           table,
		Key:             req.Key,
		Doc:             historyv1.DocBytes(req.Doc),
		Serializability: req.Serializability,
		Attribution:     attribution,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeCreated(w, historyv1.UpdateResponse{Ts: ts})
}

// handleListHistory pages through a table's history, newest first.
//
// Query parameters: maxTs, cursor, numItems, filter, waitMs.
func (c *HistoryController) handleListHistory(w http.ResponseWriter, r *http.Request) {
	table, ok := tableParam(w, r)
	if !ok {
		return
	}
	q := historysvc.HistoryQuery{Table: table}
	if err := queryParams(r.URL.Query(), map[string]any{
		"maxTs":    &q.MaxTs,
		"cursor":   &q.Cursor,
		"numItems": &q.NumItems,
		"filter":   &q.Filter,
		"waitMs":   &q.WaitMs,
	}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := c.svc.ListHistory(r.Context(), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, historyv1.FromPage(page))
}

// handleListDocumentHistory pages through the revisions of one key.
func (c *HistoryController) handleListDocumentHistory(w http.ResponseWriter, r *http.Request) {
	table, ok := tableParam(w, r)
	if !ok {
		return
	}
	q := historysvc.DocumentHistoryQuery{Table: table}
	if err := pathParam(r, "key", &q.Key); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid key: "+err.Error())
		return
	}
	if err := queryParams(r.URL.Query(), map[string]any{
		"maxTs":    &q.MaxTs,
		"cursor":   &q.Cursor,
		"numItems": &q.NumItems,
		"filter":   &q.Filter,
	}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := c.svc.ListDocumentHistory(r.Context(), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, historyv1.FromPage(page))
}

// handleListSnapshot pages through the table as of snapshotTs.
//
// Continuation requests must send back the currentTs of the first response.
func (c *HistoryController) handleListSnapshot(w http.ResponseWriter, r *http.Request) {
	table, ok := tableParam(w, r)
	if !ok {
		return
	}
	q := historysvc.SnapshotQuery{Table: table}
	if err := queryParams(r.URL.Query(), map[string]any{
		"snapshotTs": &q.SnapshotTs,
		"currentTs":  &q.CurrentTs,
		"cursor":     &q.Cursor,
		"numItems":   &q.NumItems,
		"endCursor":  &q.EndCursor,
	}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := c.svc.ListSnapshot(r.Context(), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, historyv1.SnapshotResponse{
		Entries:        historyv1.FromEntries(res.Entries),
		ContinueCursor: res.ContinueCursor,
		IsDone:         res.IsDone,
		SplitCursor:    res.SplitCursor,
		PageStatus:     string(res.PageStatus),
		CurrentTs:      res.CurrentTs,
	})
}

// handleVacuum compacts history older than minTsToKeep. With sync unset the
// work is scheduled and 202 Accepted is returned.
func (c *HistoryController) handleVacuum(w http.ResponseWriter, r *http.Request) {
	table, ok := tableParam(w, r)
	if !ok {
		return
	}
	var req historyv1.VacuumRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	st, err := c.svc.Vacuum(r.Context(), historysvc.VacuumRequest{Table: table, MinTsToKeep: req.MinTsToKeep, Sync: req.Sync})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := historyv1.VacuumResponse{Table: st.Table, RunID: st.RunID, Scheduled: st.Scheduled}
	if st.Result != nil {
		resp.Result = historyv1.FromVacuumResult(*st.Result)
	}
	status := http.StatusOK
	if st.Scheduled {
		status = http.StatusAccepted
	}
	writeJSONStatus(w, status, resp)
}

// handleWatermark reports how far the table has been compacted.
func (c *HistoryController) handleWatermark(w http.ResponseWriter, r *http.Request) {
	table, ok := tableParam(w, r)
	if !ok {
		return
	}
	wm, exists, err := c.svc.Watermark(r.Context(), table)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, historyv1.GetWatermarkResponse{Table: table, Watermark: wm, Exists: exists})
}
