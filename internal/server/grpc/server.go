package grpcserver

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	historyv1 "github.com/rzbill/tablehistory/api/history/v1"
	"github.com/rzbill/tablehistory/internal/metrics"
	"github.com/rzbill/tablehistory/internal/runtime"
	historysvc "github.com/rzbill/tablehistory/internal/services/history"
	"github.com/rzbill/tablehistory/pkg/log"
)

// Server owns the gRPC server instance and runtime.
type Server struct {
	rt     *runtime.Runtime
	svc    *historysvc.Service
	grpc   *grpc.Server
	health *runtimeHealth
	lis    net.Listener
	logger log.Logger
}

// New constructs a gRPC server and registers services.
func New(rt *runtime.Runtime, opts ...grpc.ServerOption) *Server {
	s := &Server{rt: rt, svc: historysvc.New(rt), logger: rt.Logger().WithComponent("grpc")}
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(s.observe)}, opts...)
	s.grpc = grpc.NewServer(opts...)
	s.health = newHealth(rt)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	historyv1.RegisterHistoryServiceServer(s.grpc, &historyServer{svc: s.svc})
	return s
}

// observe records latency and failures of unary calls.
func (s *Server) observe(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	metrics.ObserveRequest("grpc", info.FullMethod, code.String(), start)
	if err != nil {
		s.logger.Debug("grpc call failed",
			log.Str("method", info.FullMethod),
			log.Str("code", code.String()),
			log.Err(err),
		)
	}
	return resp, err
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("grpc listening", log.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
