package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	historyv1 "github.com/rzbill/tablehistory/api/history/v1"
	historysvc "github.com/rzbill/tablehistory/internal/services/history"
)

// TablesController lists and creates tables.
type TablesController struct {
	svc *historysvc.Service
}

// NewTablesController creates a new tables controller.
func NewTablesController(svc *historysvc.Service) *TablesController {
	return &TablesController{svc: svc}
}

// RegisterRoutes registers the /v1/tables collection routes.
func (c *TablesController) RegisterRoutes(r chi.Router) {
	r.Get("/v1/tables", c.handleList)
	r.Post("/v1/tables", c.handleCreate)
}

func (c *TablesController) handleList(w http.ResponseWriter, r *http.Request) {
	all, err := c.svc.ListTables(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := historyv1.ListTablesResponse{Tables: make([]historyv1.Table, 0, len(all))}
	for _, m := range all {
		resp.Tables = append(resp.Tables, historyv1.FromTable(m))
	}
	writeJSON(w, resp)
}

// handleCreate creates a table. An existing table is returned unchanged with
// 200 OK; a new one with 201 Created.
func (c *TablesController) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req historyv1.CreateTableRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	m, created, err := c.svc.CreateTable(r.Context(), req.Name, req.Serializability)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := historyv1.CreateTableResponse{Table: historyv1.FromTable(m), Created: created}
	if created {
		writeCreated(w, resp)
		return
	}
	writeJSON(w, resp)
}
