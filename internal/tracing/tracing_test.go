package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rzbill/tablehistory/internal/config"
	"github.com/rzbill/tablehistory/pkg/log"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TracingConfig{}, log.NewLogger(log.WithOutput(log.NullOutput{})))
	require.NoError(t, err)
	defer shutdown()

	_, span := Tracer("test").Start(context.Background(), "op")
	span.End()
}

func TestInitRejectsUnknownProtocol(t *testing.T) {
	_, err := Init(context.Background(), config.TracingConfig{Enabled: true, Protocol: "carrier-pigeon"}, log.NewLogger(log.WithOutput(log.NullOutput{})))
	require.Error(t, err)
}
