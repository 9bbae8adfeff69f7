// Package agentconfig fetches agent configuration documents from a remote API
// and normalizes them into a fixed shape.
package agentconfig

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ohler55/ojg/oj"
)

const (
	// UserAgent is sent with every configuration request.
	UserAgent = "fabrik-mcp/1.0"

	timestampLayout = "2006-01-02T15:04:05.000Z"
	maxBodyBytes    = 8 << 20
)

// Placement controls where the agent id goes in the request URL.
type Placement int

const (
	// PlaceQuery appends ?agentId=<id>.
	PlaceQuery Placement = iota
	// PlacePath appends /<id> to the path.
	PlacePath
)

// Request describes one configuration fetch.
type Request struct {
	URL       string
	AgentID   string
	Headers   map[string]string
	Placement Placement
}

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed: %d %s", e.StatusCode, e.Status)
}

// FetchError is returned when the request could not be made or the body
// could not be decoded.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type Agent struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Workflow struct {
	Steps       []any  `json:"steps"`
	Description string `json:"description"`
}

type Output struct {
	NaturalLanguageFormat string  `json:"naturalLanguageFormat"`
	ExpectedFormat        string  `json:"expectedFormat"`
	SyntheticRecordsCount float64 `json:"syntheticRecordsCount"`
}

type Guidance struct {
	SystemPromptTemplate string   `json:"systemPromptTemplate"`
	Rules                []string `json:"rules"`
}

// Config is a normalized agent configuration. Data and RawResponse both hold
// the upstream document as received.
type Config struct {
	Timestamp   string   `json:"timestamp"`
	APIURL      string   `json:"apiUrl"`
	AgentID     *string  `json:"agentId"`
	Agent       Agent    `json:"agent"`
	Workflow    Workflow `json:"workflow"`
	Output      Output   `json:"output"`
	Guidance    Guidance `json:"guidance"`
	RAGChunks   []any    `json:"ragChunks"`
	Data        any      `json:"data"`
	RawResponse any      `json:"rawResponse"`
}

// Fetcher retrieves and normalizes configurations.
type Fetcher struct {
	client *http.Client
	now    func() time.Time
}

// NewFetcher returns a Fetcher using client, or http.DefaultClient if nil.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client, now: time.Now}
}

// BuildURL places the agent id into base according to p.
func BuildURL(base, agentID string, p Placement) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if agentID == "" {
		return u.String(), nil
	}
	switch p {
	case PlacePath:
		return strings.TrimRight(u.String(), "/") + "/" + url.PathEscape(agentID), nil
	default:
		q := u.Query()
		q.Set("agentId", agentID)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
}

// Fetch sends a GET for req and normalizes the JSON response.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Config, error) {
	target, err := BuildURL(req.URL, req.AgentID, req.Placement)
	if err != nil {
		return nil, &FetchError{URL: req.URL, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", UserAgent)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: reason(resp)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	data, err := oj.Parse(body)
	if err != nil {
		return nil, &FetchError{URL: target, Err: fmt.Errorf("invalid JSON: %w", err)}
	}

	cfg := &Config{
		Timestamp:   f.now().UTC().Format(timestampLayout),
		APIURL:      target,
		Data:        data,
		RawResponse: data,
	}
	if req.AgentID != "" {
		id := req.AgentID
		cfg.AgentID = &id
	}
	cfg.Agent, cfg.Workflow, cfg.Output, cfg.Guidance, cfg.RAGChunks = normalize(data)
	return cfg, nil
}

// reason extracts the reason phrase from resp.Status ("404 Not Found").
func reason(resp *http.Response) string {
	if r, ok := strings.CutPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); ok && r != "" {
		return r
	}
	return http.StatusText(resp.StatusCode)
}
