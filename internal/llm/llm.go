// Package llm wraps the text-generation backend behind a small interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"fabrikmcp/internal/log"
)

const (
	// DefaultModel is the Gemini model used when none is configured.
	DefaultModel = "gemini-2.5-pro"
)

// Request is one generation call.
type Request struct {
	SystemPrompt string
	UserQuery    string
}

// Response is the full generated text. Streamed reports whether the text
// came from the streaming endpoint or the single-shot fallback.
type Response struct {
	Text     string
	Model    string
	Streamed bool
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Verify that Gemini implements Generator.
var _ Generator = (*Gemini)(nil)

// Gemini generates text through the Gemini API.
type Gemini struct {
	client        *genai.Client
	model         string
	apiKey        string
	clientOptions genai.ClientConfig
}

// Option configures Gemini.
type Option func(*Gemini)

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(g *Gemini) {
		if model != "" {
			g.model = model
		}
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(g *Gemini) {
		g.apiKey = key
	}
}

// WithBaseURL points the client at a different endpoint, e.g. a test server.
func WithBaseURL(url string) Option {
	return func(g *Gemini) {
		g.clientOptions.HTTPOptions.BaseURL = url
	}
}

// NewGemini creates a Gemini generator. An API key is required.
func NewGemini(ctx context.Context, opts ...Option) (*Gemini, error) {
	g := &Gemini{model: DefaultModel}
	for _, opt := range opts {
		opt(g)
	}
	if g.apiKey == "" {
		return nil, errors.New("gemini API key is not provided")
	}

	cc := g.clientOptions
	cc.APIKey = g.apiKey
	cc.Backend = genai.BackendGeminiAPI
	client, err := genai.NewClient(ctx, &cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string {
	return g.model
}

// Generate streams the answer and concatenates the chunks. If the stream
// fails it retries once with a single-shot request.
func (g *Gemini) Generate(ctx context.Context, req Request) (*Response, error) {
	contents := []*genai.Content{genai.NewContentFromText(req.UserQuery, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	text, err := g.stream(ctx, contents, cfg)
	if err == nil {
		return &Response{Text: text, Model: g.model, Streamed: true}, nil
	}
	log.Warnf("gemini stream failed, falling back to single response: %v", err)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	return &Response{Text: resp.Text(), Model: g.model}, nil
}

func (g *Gemini) stream(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	var b strings.Builder
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, cfg) {
		if err != nil {
			return "", err
		}
		b.WriteString(resp.Text())
	}
	return b.String(), nil
}
