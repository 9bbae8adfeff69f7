package jsonrpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"fabrikmcp/internal/mcpconst"
)

func TestNewJSONRPCRequest(t *testing.T) {
	req, err := NewJSONRPCRequest(context.Background(), "http://localhost/mcp", 7, mcpconst.Ping, nil,
		map[string]string{mcpconst.SessionIDHeader: "abc"}, http.NewRequestWithContext)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "application/json, text/event-stream", req.Header.Get("Accept"))
	assert.Equal(t, "abc", req.Header.Get("Mcp-Session-Id"))

	body, _ := io.ReadAll(req.Body)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"method":"ping"}`, string(body))

	req, err = NewJSONRPCRequest(context.Background(), "http://localhost/mcp", 8, mcpconst.NotificationsInitialized, nil,
		nil, http.NewRequestWithContext)
	require.NoError(t, err)
	body, _ = io.ReadAll(req.Body)
	assert.NotContains(t, string(body), `"id"`)
}

func TestDoRequest(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		status      int
		body        string
		code        codes.Code
		wantResp    bool
	}{
		{"json", "application/json", 200, `{"jsonrpc":"2.0","id":1,"result":{}}`, codes.OK, true},
		{"sse keeps last data line", "text/event-stream", 200,
			"event: message\ndata: {\"jsonrpc\":\"2.0\",\"method\":\"notifications/progress\"}\n\n" +
				"event: message\ndata: {\"jsonrpc\":\"2.0\",\"id\":1,\"result\":{}}\n\n", codes.OK, true},
		{"accepted without body", "", 202, "", codes.OK, false},
		{"non 2xx", "text/plain", 400, "bad session", codes.Unavailable, false},
		{"garbage", "application/json", 200, "not json", codes.Internal, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if c.contentType != "" {
					w.Header().Set("Content-Type", c.contentType)
				}
				w.WriteHeader(c.status)
				_, _ = w.Write([]byte(c.body))
			}))
			defer srv.Close()

			req, err := NewJSONRPCRequest(context.Background(), srv.URL, 1, mcpconst.Ping, nil, nil, http.NewRequestWithContext)
			require.NoError(t, err)

			resp, _, err := DoRequest(context.Background(), srv.Client(), req)
			assert.Equal(t, c.code, status.Code(err), "%v", err)
			assert.Equal(t, c.wantResp, resp != nil)
		})
	}
}

func TestDoRequestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	req, err := NewJSONRPCRequest(context.Background(), url, 1, mcpconst.Ping, nil, nil, http.NewRequestWithContext)
	require.NoError(t, err)
	_, _, err = DoRequest(context.Background(), http.DefaultClient, req)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func newUpperServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := server.NewMCPServer("upper", "0.0.1", server.WithToolCapabilities(false))
	s.AddTool(mcp.NewTool("upper", mcp.WithString("text", mcp.Required())),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			text, err := req.RequireString("text")
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResultText(strings.ToUpper(text)), nil
		})
	srv := httptest.NewServer(server.NewStreamableHTTPServer(s))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient(t *testing.T) {
	srv := newUpperServer(t)
	c := NewClient(srv.URL+"/mcp", srv.Client())
	ctx := context.Background()

	resp, err := c.Initialize(ctx, "fabrik-test", "0.0.1")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.NotEmpty(t, c.SessionID())

	var init struct {
		ServerInfo struct {
			Name string `json:"name"`
		} `json:"serverInfo"`
	}
	require.NoError(t, json.Unmarshal(*resp.Result, &init))
	assert.Equal(t, "upper", init.ServerInfo.Name)

	list, err := c.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "upper", list[0].Name)
	assert.Contains(t, string(list[0].InputSchema), `"text"`)

	res, err := c.CallTool(ctx, "upper", map[string]any{"text": "loan"})
	require.NoError(t, err)
	assert.Equal(t, "LOAN", res.Text())

	_, err = c.CallTool(ctx, "missing", nil)
	assert.Equal(t, codes.Unknown, status.Code(err))
	assert.Contains(t, err.Error(), "not found")
}
