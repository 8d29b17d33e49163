package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	transports "github.com/rzbill/tablehistory/internal/cmd/client/transports"
)

// grpcAddrFromEnv returns the gRPC server address from TH_GRPC or a default.
func grpcAddrFromEnv() string {
	if addr := os.Getenv("TH_GRPC"); addr != "" {
		return addr
	}
	return "127.0.0.1:50051"
}

// HTTPAddrFromEnv returns the HTTP base URL from TH_HTTP or a default.
func HTTPAddrFromEnv() string {
	if addr := os.Getenv("TH_HTTP"); addr != "" {
		return addr
	}
	return "http://127.0.0.1:8080"
}

// dialGRPCContext dials the gRPC endpoint with insecure transport for local/dev.
func dialGRPCContext(_ context.Context) (*grpc.ClientConn, error) {
	return grpc.NewClient(grpcAddrFromEnv(), grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// getTransport picks gRPC unless TH_TRANSPORT=http.
func getTransport(baseURL BaseURLFunc) transports.HistoryTransport {
	if os.Getenv("TH_TRANSPORT") == "http" {
		return transports.NewHTTPTransport(baseURL(), nil)
	}
	return transports.NewGrpcTransport(dialGRPCContext)
}

// printJSON writes v as one line of JSON.
func printJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// parseTimestamp accepts unix milliseconds or RFC3339.
func parseTimestamp(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), nil
	}
	return 0, fmt.Errorf("invalid timestamp %q; expected ms or RFC3339", s)
}
