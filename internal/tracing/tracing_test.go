package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func callRequest(name string) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	return req
}

func TestMiddleware(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tr := FromProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	defer tr.Shutdown(context.Background())

	mw := tr.Middleware()

	ok := mw(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("Echo: hi"), nil
	})
	failing := mw(func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return nil, errors.New("API request failed: 404 Not Found")
	})

	_, err := ok(context.Background(), callRequest("echo"))
	require.NoError(t, err)
	_, err = failing(context.Background(), callRequest("get_agent_config"))
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "tool echo", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)

	assert.Equal(t, "tool get_agent_config", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	require.Len(t, spans[1].Events(), 1)
	assert.Equal(t, "exception", spans[1].Events()[0].Name)
}

func TestNew(t *testing.T) {
	tr, err := New(context.Background(), Config{Exporter: ExporterNone})
	require.NoError(t, err)
	assert.NoError(t, tr.Shutdown(context.Background()))

	var buf bytes.Buffer
	tr, err = New(context.Background(), Config{Exporter: ExporterStdout, ServiceName: "fabrik-mcp", Output: &buf})
	require.NoError(t, err)
	_, span := tr.Start(context.Background(), "probe")
	span.End()
	require.NoError(t, tr.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name":"probe"`)

	_, err = New(context.Background(), Config{Exporter: "zipkin"})
	assert.Error(t, err)
}
