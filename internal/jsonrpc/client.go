package jsonrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/jsonrpc2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"fabrikmcp/internal/mcpconst"
)

// Client speaks MCP over the streamable HTTP transport. It keeps the session
// id handed out by initialize and sends it on every later request.
type Client struct {
	url    string
	http   *http.Client
	nextID atomic.Uint64

	mu        sync.RWMutex
	sessionID string
}

// NewClient returns a client for the MCP endpoint at url. httpClient may be nil.
func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{url: url, http: httpClient}
}

// SessionID returns the current session id, empty before Initialize.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Call sends one request and returns its response. A JSON-RPC error in the
// response is returned as a status error with code Unknown.
func (c *Client) Call(ctx context.Context, method mcpconst.JsonRpcMethod, params any) (*jsonrpc2.Response, error) {
	headers := map[string]string{}
	if sid := c.SessionID(); sid != "" {
		headers[mcpconst.SessionIDHeader] = sid
	}

	req, err := NewJSONRPCRequest(ctx, c.url, c.nextID.Add(1), method, params, headers, http.NewRequestWithContext)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%v", err)
	}

	resp, httpResp, err := DoRequest(ctx, c.http, req)
	if err != nil {
		return nil, err
	}
	if sid := httpResp.Header.Get(mcpconst.SessionIDHeader); sid != "" {
		c.mu.Lock()
		c.sessionID = sid
		c.mu.Unlock()
	}
	if resp != nil && resp.Error != nil {
		return resp, status.Errorf(codes.Unknown, "%s (code %d)", resp.Error.Message, resp.Error.Code)
	}
	return resp, nil
}

// Initialize performs the MCP handshake: initialize followed by the
// initialized notification.
func (c *Client) Initialize(ctx context.Context, clientName, clientVersion string) (*jsonrpc2.Response, error) {
	params := map[string]any{
		"protocolVersion": mcpconst.ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": clientName, "version": clientVersion},
	}
	resp, err := c.Call(ctx, mcpconst.Initialize, params)
	if err != nil {
		return nil, err
	}
	if _, err := c.Call(ctx, mcpconst.NotificationsInitialized, nil); err != nil {
		return nil, err
	}
	return resp, nil
}

// ToolResult is the decoded result of tools/call.
type ToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// Text concatenates the text items of the result.
func (r *ToolResult) Text() string {
	var s string
	for _, c := range r.Content {
		if c.Type == "text" {
			s += c.Text
		}
	}
	return s
}

// CallTool invokes a tool and decodes its result.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	resp, err := c.Call(ctx, mcpconst.ToolsCall, map[string]any{"name": name, "arguments": args})
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Result == nil {
		return nil, status.Errorf(codes.Internal, "empty response to %s", mcpconst.ToolsCall)
	}
	var res ToolResult
	if err := json.Unmarshal(*resp.Result, &res); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to decode tool result: %v", err)
	}
	return &res, nil
}

// ToolInfo is one entry of tools/list.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ListTools returns the tools the server exposes.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	resp, err := c.Call(ctx, mcpconst.ToolsList, map[string]any{})
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Result == nil {
		return nil, status.Errorf(codes.Internal, "empty response to %s", mcpconst.ToolsList)
	}
	var res struct {
		Tools []ToolInfo `json:"tools"`
	}
	if err := json.Unmarshal(*resp.Result, &res); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to decode tool list: %v", err)
	}
	return res.Tools, nil
}
