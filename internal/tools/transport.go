package tools

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"net/http"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"fabrikmcp/internal/log"
	"fabrikmcp/internal/mcpconst"
)

// Server is the fabrik MCP server. Tool calls whose arguments fail their
// input schema are answered with a JSON-RPC invalid params error before
// they reach mcp-go, which reports every handler error as an internal error.
type Server struct {
	*server.MCPServer
	validators map[string]*validator
}

// HandleMessage screens tools/call arguments, then dispatches msg.
func (s *Server) HandleMessage(ctx context.Context, msg json.RawMessage) mcp.JSONRPCMessage {
	if rejected := s.screen(msg); rejected != nil {
		return *rejected
	}
	return s.MCPServer.HandleMessage(ctx, msg)
}

// screen returns the invalid params response for a tools/call request with
// bad arguments and nil for every other message.
func (s *Server) screen(msg []byte) *mcp.JSONRPCError {
	var req struct {
		ID     any    `json:"id"`
		Method string `json:"method"`
		Params struct {
			Name      string `json:"name"`
			Arguments any    `json:"arguments"`
		} `json:"params"`
	}
	if err := json.Unmarshal(msg, &req); err != nil || req.ID == nil || req.Method != string(mcpconst.ToolsCall) {
		return nil
	}
	v, ok := s.validators[req.Params.Name]
	if !ok {
		return nil
	}

	// same view of the arguments as CallToolRequest.GetArguments
	args, _ := req.Params.Arguments.(map[string]any)
	err := v.validate(args)
	if err == nil {
		return nil
	}
	log.Warnf("tool %s rejected: %v", req.Params.Name, err)
	resp := mcp.NewJSONRPCError(mcp.NewRequestId(req.ID), mcp.INVALID_PARAMS, err.Error(), nil)
	return &resp
}

// ServeStdio serves newline delimited JSON-RPC from in to out until in is
// exhausted or ctx is done.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer, errLogger *stdlog.Logger) error {
	w := &lockedWriter{w: out}
	pr, pw := io.Pipe()
	defer pr.Close()
	go func() { pw.CloseWithError(s.screenLines(in, pw, w)) }()

	stdio := server.NewStdioServer(s.MCPServer)
	if errLogger != nil {
		stdio.SetErrorLogger(errLogger)
	}
	return stdio.Listen(ctx, pr, w)
}

// screenLines answers rejected lines on out and forwards the rest to next.
func (s *Server) screenLines(in io.Reader, next io.Writer, out io.Writer) error {
	r := bufio.NewReader(in)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			if rejected := s.screen(bytes.TrimSpace(line)); rejected != nil {
				if werr := writeLine(out, rejected); werr != nil {
					return werr
				}
			} else {
				if line[len(line)-1] != '\n' {
					line = append(line, '\n')
				}
				if _, werr := next.Write(line); werr != nil {
					return werr
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func writeLine(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", raw)
	return err
}

// lockedWriter keeps whole responses from interleaving.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// HTTPHandler serves the streamable HTTP transport.
func (s *Server) HTTPHandler(opts ...server.StreamableHTTPOption) http.Handler {
	next := server.NewStreamableHTTPServer(s.MCPServer, opts...)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}
		body, err := io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		if rejected := s.screen(body); rejected != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(rejected)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}
