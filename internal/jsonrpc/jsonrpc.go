package jsonrpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sourcegraph/jsonrpc2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"fabrikmcp/internal/mcpconst"
)

// this allows us to leverage different ways to create the http Request, a normal
// network one or also a mock one for testing. we set headers and deal with the body
// the same either way in NewJSONRPCRequest()
type NewHttpRequester func(ctx context.Context, method string, url string, body io.Reader) (*http.Request, error)

// NewJSONRPCRequest builds the POST for one JSON-RPC message. Methods under
// notifications/ are sent without an id.
func NewJSONRPCRequest(ctx context.Context, url string, id uint64, jsonRpcMethod mcpconst.JsonRpcMethod, params any,
	additionalHeaders map[string]string, reqFunc NewHttpRequester) (*http.Request, error) {

	var rawParams *json.RawMessage
	if params != nil {
		paramsMsg, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		rawParams = (*json.RawMessage)(&paramsMsg)
	}

	reqBody := &jsonrpc2.Request{
		Method: string(jsonRpcMethod),
		Params: rawParams,
		ID:     jsonrpc2.ID{Num: id},
		Notif:  strings.HasPrefix(string(jsonRpcMethod), "notifications/"),
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error putting together jsonrpc request: %w", err)
	}

	req, err := reqFunc(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("problem creating new JSONRPC request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	for header, val := range additionalHeaders {
		req.Header.Set(header, val)
	}

	return req, nil
}

// DoRequest sends a JSON-RPC request and parses the response, accepting both
// application/json and text/event-stream bodies. A nil response with a nil
// error means the server accepted a message that has no reply.
func DoRequest(ctx context.Context, client *http.Client, req *http.Request) (*jsonrpc2.Response, *http.Response, error) {
	httpResp, err := client.Do(req)
	if err != nil {
		return nil, nil, status.Errorf(codes.Unavailable, "failed to call mcp server: %v", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		body, _ := io.ReadAll(httpResp.Body)
		return nil, httpResp, status.Errorf(codes.Unavailable, "mcp server returned non-2xx status: %d: %s", httpResp.StatusCode, string(body))
	}

	var respBody []byte
	if strings.Contains(httpResp.Header.Get("Content-Type"), "text/event-stream") {
		// the response is the last data line; earlier events are notifications
		scanner := bufio.NewScanner(httpResp.Body)
		scanner.Buffer(make([]byte, 64*1024), 16<<20)
		var lastData string
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "data:") {
				lastData = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, httpResp, status.Errorf(codes.Internal, "failed to read mcp server SSE response: %v", err)
		}
		respBody = []byte(lastData)
	} else {
		body, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, httpResp, status.Errorf(codes.Internal, "failed to read mcp server response: %v", err)
		}
		respBody = body
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil, httpResp, nil
	}

	var resp jsonrpc2.Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, httpResp, status.Errorf(codes.Internal, "failed to unmarshal mcp server response: %s", string(respBody))
	}

	return &resp, httpResp, nil
}
