package grpcserver

import (
	"context"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	historyv1 "github.com/rzbill/tablehistory/api/history/v1"
	"github.com/rzbill/tablehistory/internal/runtime"
)

// runtimeHealth answers health checks from the runtime's storage check and
// reports the history service under its own name as well.
type runtimeHealth struct {
	*health.Server
	rt *runtime.Runtime
}

func newHealth(rt *runtime.Runtime) *runtimeHealth {
	h := &runtimeHealth{Server: health.NewServer(), rt: rt}
	h.SetServingStatus(historyv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	return h
}

// Check refreshes the serving status before answering.
func (h *runtimeHealth) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	st := healthpb.HealthCheckResponse_SERVING
	if err := h.rt.CheckHealth(ctx); err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.SetServingStatus("", st)
	h.SetServingStatus(historyv1.ServiceName, st)
	return h.Server.Check(ctx, req)
}
