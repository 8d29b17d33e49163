package controllers

import (
	"github.com/go-chi/chi/v5"

	"github.com/rzbill/tablehistory/internal/runtime"
	historysvc "github.com/rzbill/tablehistory/internal/services/history"
)

// ControllerRegistry manages all HTTP controllers.
type ControllerRegistry struct {
	general *GeneralController
	tables  *TablesController
	history *HistoryController
}

// NewControllerRegistry creates a new controller registry.
func NewControllerRegistry(rt *runtime.Runtime, svc *historysvc.Service) *ControllerRegistry {
	return &ControllerRegistry{
		general: NewGeneralController(rt),
		tables:  NewTablesController(svc),
		history: NewHistoryController(svc),
	}
}

// RegisterAllRoutes registers all controller routes with the given router.
func (r *ControllerRegistry) RegisterAllRoutes(router chi.Router) {
	r.general.RegisterRoutes(router)
	r.tables.RegisterRoutes(router)
	r.history.RegisterRoutes(router)
}
