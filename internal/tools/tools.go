// Package tools declares the fabrik-mcp tools and serves them through an
// mcp-go server. Every collaborator arrives through Deps.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"fabrikmcp/internal/agentconfig"
	"fabrikmcp/internal/llm"
	"fabrikmcp/internal/log"
	"fabrikmcp/internal/mcpconst"
	"fabrikmcp/internal/prompt"
	"fabrikmcp/internal/rag"
	"fabrikmcp/internal/store"
)

// ErrNoGenerator is returned by gemini_with_config when no LLM is configured.
var ErrNoGenerator = errors.New("gemini is not configured: set GEMINI_API_KEY")

// ConfigFetcher retrieves agent configurations.
type ConfigFetcher interface {
	Fetch(ctx context.Context, req agentconfig.Request) (*agentconfig.Config, error)
}

// Deps are the collaborators of the tool handlers. Generator and Recorder
// may be nil.
type Deps struct {
	Analyzer         *rag.Analyzer
	Fetcher          ConfigFetcher
	Generator        llm.Generator
	Recorder         store.Recorder
	DefaultConfigURL string
	Now              func() time.Time
}

type ProvidedTool struct {
	tool      mcp.Tool
	validator *validator
	handler   func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error)
}

func (pt ProvidedTool) GetName() string {
	return pt.tool.Name
}

type handlers struct {
	deps Deps
}

func (h *handlers) provided() []ProvidedTool {
	return []ProvidedTool{
		{
			mcp.NewToolWithRawSchema(mcpconst.ToolEcho, "Echo back the provided text", echoSchema),
			mustCompile(mcpconst.ToolEcho, echoSchema), h.echo,
		},
		{
			mcp.NewToolWithRawSchema(mcpconst.ToolAdd, "Add two numbers", addSchema),
			mustCompile(mcpconst.ToolAdd, addSchema), h.add,
		},
		{
			mcp.NewToolWithRawSchema(mcpconst.ToolProcessRAGChunks,
				"Analyse RAG chunks and generate synthetic queries that could have retrieved them",
				processRAGChunksSchema),
			mustCompile(mcpconst.ToolProcessRAGChunks, processRAGChunksSchema), h.processRAGChunks,
		},
		{
			mcp.NewToolWithRawSchema(mcpconst.ToolGetAgentConfig,
				"Fetch agent configuration from API including workflow steps and synthetic data requirements",
				getAgentConfigSchema),
			mustCompile(mcpconst.ToolGetAgentConfig, getAgentConfigSchema), h.getAgentConfig,
		},
		{
			mcp.NewToolWithRawSchema(mcpconst.ToolGeminiWithConfig,
				"Query Gemini with a system prompt built from a remote agent configuration",
				geminiWithConfigSchema),
			mustCompile(mcpconst.ToolGeminiWithConfig, geminiWithConfigSchema), h.geminiWithConfig,
		},
	}
}

// wrap validates the arguments before calling the handler. Calls routed
// through Server were already screened; direct MCPServer dispatch was not.
func (pt ProvidedTool) wrap() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if err := pt.validator.validate(args); err != nil {
			return nil, err
		}
		return pt.handler(ctx, args)
	}
}

// ToolNames lists the served tools, sorted.
func ToolNames() []string {
	h := &handlers{}
	provided := h.provided()
	names := make([]string, len(provided))
	for i, pt := range provided {
		names[i] = pt.GetName()
	}
	sort.Strings(names)
	return names
}

// NewServer returns a server exposing all tools. Middlewares run outermost
// first.
func NewServer(deps Deps, name, version string, middlewares ...server.ToolHandlerMiddleware) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Analyzer == nil {
		deps.Analyzer = rag.NewAnalyzer(rag.DefaultVocabulary())
	}

	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	for _, mw := range middlewares {
		opts = append(opts, server.WithToolHandlerMiddleware(mw))
	}
	s := server.NewMCPServer(name, version, opts...)

	h := &handlers{deps: deps}
	validators := make(map[string]*validator)
	for _, pt := range h.provided() {
		s.AddTool(pt.tool, pt.wrap())
		validators[pt.GetName()] = pt.validator
	}
	return &Server{MCPServer: s, validators: validators}
}

// LoggingMiddleware logs each tool call with its duration and outcome.
func LoggingMiddleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := time.Now()
			res, err := next(ctx, req)
			if err != nil {
				log.Warnf("tool %s failed after %s: %v", req.Params.Name, time.Since(start), err)
			} else {
				log.Infof("tool %s completed in %s", req.Params.Name, time.Since(start))
			}
			return res, err
		}
	}
}

// decode re-reads validated arguments into a typed struct.
func decode(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// jsonResult renders v as indented JSON in a single text item.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(strings.TrimSuffix(buf.String(), "\n")), nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// below are the handlers for the respective tools

func (h *handlers) echo(_ context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	var in struct {
		Text string `json:"text"`
	}
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	return mcp.NewToolResultText("Echo: " + in.Text), nil
}

func (h *handlers) add(_ context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	var in struct {
		A float64 `json:"a"`
		B float64 `json:"b"`
	}
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s + %s = %s",
		formatNumber(in.A), formatNumber(in.B), formatNumber(in.A+in.B))), nil
}

func (h *handlers) processRAGChunks(_ context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	var in struct {
		Chunks  []rag.Snippet `json:"chunks"`
		Context string        `json:"context"`
	}
	if err := decode(args, &in); err != nil {
		return nil, err
	}

	res, err := h.deps.Analyzer.Process(in.Chunks, in.Context, h.deps.Now())
	if err != nil {
		return nil, err
	}
	return jsonResult(res)
}

func (h *handlers) getAgentConfig(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	var in struct {
		APIURL  string            `json:"apiUrl"`
		AgentID string            `json:"agentId"`
		Headers map[string]string `json:"headers"`
	}
	if err := decode(args, &in); err != nil {
		return nil, err
	}

	cfg, err := h.deps.Fetcher.Fetch(ctx, agentconfig.Request{
		URL:       in.APIURL,
		AgentID:   in.AgentID,
		Headers:   in.Headers,
		Placement: agentconfig.PlaceQuery,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agent configuration: %w", err)
	}
	return jsonResult(cfg)
}

// GeminiResult is the gemini_with_config payload.
type GeminiResult struct {
	ConfigID       string              `json:"configId"`
	UserQuery      string              `json:"userQuery"`
	Configuration  *agentconfig.Config `json:"configuration"`
	SystemPrompt   string              `json:"systemPrompt"`
	GeminiResponse string              `json:"geminiResponse"`
	Metadata       GeminiMetadata      `json:"metadata"`
}

type GeminiMetadata struct {
	Model             string `json:"model"`
	PromptLength      int    `json:"promptLength"`
	RAGChunksIncluded int    `json:"ragChunksIncluded"`
	Streamed          bool   `json:"streamed"`
	// InteractionID is set once the write is accepted by the recorder. With
	// an asynchronous recorder the write itself may still fail later.
	InteractionID     string `json:"interactionId,omitempty"`
	Timestamp         string `json:"timestamp"`
}

func (h *handlers) geminiWithConfig(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	var in struct {
		ConfigID  string        `json:"configId"`
		UserQuery string        `json:"userQuery"`
		APIURL    string        `json:"apiUrl"`
		RAGChunks []rag.Snippet `json:"ragChunks"`
	}
	if err := decode(args, &in); err != nil {
		return nil, err
	}
	if h.deps.Generator == nil {
		return nil, ErrNoGenerator
	}

	apiURL := in.APIURL
	if apiURL == "" {
		apiURL = h.deps.DefaultConfigURL
	}
	cfg, err := h.deps.Fetcher.Fetch(ctx, agentconfig.Request{
		URL:       apiURL,
		AgentID:   in.ConfigID,
		Placement: agentconfig.PlacePath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agent configuration: %w", err)
	}

	snippets := in.RAGChunks
	if len(snippets) == 0 {
		snippets = cfg.Snippets()
	}
	systemPrompt := prompt.Build(cfg, snippets)

	resp, err := h.deps.Generator.Generate(ctx, llm.Request{SystemPrompt: systemPrompt, UserQuery: in.UserQuery})
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	now := h.deps.Now()
	result := GeminiResult{
		ConfigID:       in.ConfigID,
		UserQuery:      in.UserQuery,
		Configuration:  cfg,
		SystemPrompt:   systemPrompt,
		GeminiResponse: resp.Text,
		Metadata: GeminiMetadata{
			Model:             resp.Model,
			PromptLength:      len(systemPrompt),
			RAGChunksIncluded: len(snippets),
			Streamed:          resp.Streamed,
			Timestamp:         now.UTC().Format(rag.TimestampLayout),
		},
	}

	if h.deps.Recorder != nil {
		interaction := store.NewInteraction(in.ConfigID, in.UserQuery, resp.Text, cfg, now)
		if err := h.deps.Recorder.Record(ctx, interaction); err != nil {
			log.Errorf("failed to record interaction %s: %v", interaction.ID, err)
		} else {
			result.Metadata.InteractionID = interaction.ID
		}
	}

	return jsonResult(result)
}
