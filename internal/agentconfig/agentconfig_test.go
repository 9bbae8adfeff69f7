package agentconfig

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mortgageAgent = `{
  "success": true,
  "agent": {"name": "Mortgage Lending Assistant", "description": "AI agent specialized in mortgage lending"},
  "workflow": {
    "steps": ["Analyze input RAG chunks", "Extract key topics"],
    "description": "Multi-step workflow"
  },
  "output": {"naturalLanguageFormat": "Generate questions", "expectedFormat": "json", "syntheticRecordsCount": 25},
  "systemPromptTemplate": "You are a senior mortgage lending advisor.",
  "complianceRules": ["Always mention relevant regulatory requirements", 7],
  "ragChunks": [
    {"score": 0.92, "textLength": 1800, "fileName": "lending-guidelines-2024.pdf", "pageLabel": 156,
     "textPreview": "# Income Verification Requirements"},
    "not a chunk",
    {"score": "high", "fileName": "x.pdf", "textPreview": "# Employment History"},
    {"fileName": "empty.pdf"}
  ]
}`

func newTestFetcher() *Fetcher {
	f := NewFetcher(nil)
	f.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 6_000_000, time.UTC) }
	return f
}

func TestFetch(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(mortgageAgent))
	}))
	defer srv.Close()

	cfg, err := newTestFetcher().Fetch(context.Background(), Request{
		URL:     srv.URL + "/config",
		AgentID: "mortgage-agent",
		Headers: map[string]string{"Authorization": "Bearer t", "User-Agent": "custom/2"},
	})
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "/config", got.URL.Path)
	assert.Equal(t, "mortgage-agent", got.URL.Query().Get("agentId"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "custom/2", got.Header.Get("User-Agent"))
	assert.Equal(t, "Bearer t", got.Header.Get("Authorization"))

	assert.Equal(t, "2025-01-02T03:04:05.006Z", cfg.Timestamp)
	assert.Equal(t, srv.URL+"/config?agentId=mortgage-agent", cfg.APIURL)
	require.NotNil(t, cfg.AgentID)
	assert.Equal(t, "mortgage-agent", *cfg.AgentID)
	assert.Equal(t, "Mortgage Lending Assistant", cfg.Agent.Name)
	assert.Equal(t, []any{"Analyze input RAG chunks", "Extract key topics"}, cfg.Workflow.Steps)
	assert.Equal(t, 25.0, cfg.Output.SyntheticRecordsCount)
	assert.Equal(t, "You are a senior mortgage lending advisor.", cfg.Guidance.SystemPromptTemplate)
	assert.Equal(t, []string{"Always mention relevant regulatory requirements"}, cfg.Guidance.Rules)
	assert.Len(t, cfg.RAGChunks, 4)
	assert.Equal(t, cfg.Data, cfg.RawResponse)

	snippets := cfg.Snippets()
	require.Len(t, snippets, 2)
	assert.Equal(t, 0.92, snippets[0].Score)
	assert.Equal(t, 156, snippets[0].PageLabel)
	assert.Equal(t, 1800, snippets[0].TextLength)
	assert.Equal(t, "x.pdf", snippets[1].FileName)
	assert.Zero(t, snippets[1].Score)
}

func TestFetchPathPlacement(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg, err := newTestFetcher().Fetch(context.Background(), Request{
		URL:       srv.URL + "/config/",
		AgentID:   "mortgage-advisor-v2",
		Placement: PlacePath,
	})
	require.NoError(t, err)
	assert.Equal(t, "/config/mortgage-advisor-v2", path)
	assert.Equal(t, srv.URL+"/config/mortgage-advisor-v2", cfg.APIURL)
}

func TestFetchNoAgentID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"agentName": "Flat"}`))
	}))
	defer srv.Close()

	cfg, err := newTestFetcher().Fetch(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Nil(t, cfg.AgentID)
	assert.Equal(t, "Flat", cfg.Agent.Name)
}

func TestFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "Configuration not found"}`))
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), Request{URL: srv.URL})
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 404, se.StatusCode)
	assert.Equal(t, "API request failed: 404 Not Found", err.Error())
}

func TestFetchErrors(t *testing.T) {
	t.Run("invalid json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}))
		defer srv.Close()

		_, err := newTestFetcher().Fetch(context.Background(), Request{URL: srv.URL})
		var fe *FetchError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, srv.URL, fe.URL)
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := newTestFetcher().Fetch(context.Background(), Request{URL: url})
		var fe *FetchError
		require.True(t, errors.As(err, &fe))
		assert.NotNil(t, errors.Unwrap(err))
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := newTestFetcher().Fetch(context.Background(), Request{URL: "://nope"})
		var fe *FetchError
		assert.True(t, errors.As(err, &fe))
	})
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name  string
		doc   string
		check func(t *testing.T, a Agent, w Workflow, o Output, g Guidance, chunks []any)
	}{
		{
			name: "defaults",
			doc:  `{}`,
			check: func(t *testing.T, a Agent, w Workflow, o Output, g Guidance, chunks []any) {
				assert.Equal(t, DefaultAgentName, a.Name)
				assert.Equal(t, "", a.Description)
				assert.Equal(t, []any{}, w.Steps)
				assert.Equal(t, DefaultExpectedFormat, o.ExpectedFormat)
				assert.Equal(t, DefaultSyntheticRecordsCount, o.SyntheticRecordsCount)
				assert.Equal(t, []string{}, g.Rules)
				assert.Equal(t, []any{}, chunks)
			},
		},
		{
			name: "nested wins over flat",
			doc:  `{"agent": {"name": "Nested"}, "agentName": "Flat", "workflowSteps": ["x"]}`,
			check: func(t *testing.T, a Agent, w Workflow, o Output, g Guidance, chunks []any) {
				assert.Equal(t, "Nested", a.Name)
				assert.Equal(t, []any{"x"}, w.Steps)
			},
		},
		{
			name: "empty and mistyped values fall through",
			doc: `{"agent": {"name": ""}, "agentName": 42, "output": {"syntheticRecordsCount": 0},
				"numberOfSyntheticRecords": 7, "expectedFormat": ["json"], "chunks": [{"a": 1}]}`,
			check: func(t *testing.T, a Agent, w Workflow, o Output, g Guidance, chunks []any) {
				assert.Equal(t, DefaultAgentName, a.Name)
				assert.Equal(t, 7.0, o.SyntheticRecordsCount)
				assert.Equal(t, DefaultExpectedFormat, o.ExpectedFormat)
				assert.Len(t, chunks, 1)
			},
		},
		{
			name: "fractional record count is kept",
			doc:  `{"output": {"syntheticRecordsCount": 2.5}}`,
			check: func(t *testing.T, a Agent, w Workflow, o Output, g Guidance, chunks []any) {
				assert.Equal(t, 2.5, o.SyntheticRecordsCount)
			},
		},
		{
			name: "empty array is present",
			doc:  `{"workflow": {"steps": []}, "workflowSteps": ["ignored"], "rules": ["r1"]}`,
			check: func(t *testing.T, a Agent, w Workflow, o Output, g Guidance, chunks []any) {
				assert.Empty(t, w.Steps)
				assert.Equal(t, []string{"r1"}, g.Rules)
			},
		},
		{
			name: "agent is not an object",
			doc:  `{"agent": "weird", "agentName": "Fallback"}`,
			check: func(t *testing.T, a Agent, w Workflow, o Output, g Guidance, chunks []any) {
				assert.Equal(t, "Fallback", a.Name)
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			data, err := oj.ParseString(c.doc)
			require.NoError(t, err)
			a, w, o, g, chunks := normalize(data)
			c.check(t, a, w, o, g, chunks)
		})
	}
}

func TestSourcesTableComplete(t *testing.T) {
	for _, field := range []string{
		fieldAgentName, fieldAgentDescription, fieldWorkflowSteps, fieldWorkflowDescription,
		fieldNaturalLanguageFormat, fieldExpectedFormat, fieldSyntheticRecordsCount,
		fieldRAGChunks, fieldSystemPromptTemplate, fieldRules,
	} {
		assert.Len(t, sources[field], 2, field)
	}
}
