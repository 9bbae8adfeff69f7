package configapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fabrikmcp/internal/agentconfig"
)

func get(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, []string{
		"compliance-agent", "compliance-specialist", "customer-service-ai", "mortgage-advisor-v2", "mortgage-agent",
	}, c.IDs())
	assert.Contains(t, c.Describe("http://localhost:3003/"), "mortgage-advisor-v2: Mortgage Lending Advisor (http://localhost:3003/config/mortgage-advisor-v2)")
}

func TestHandler(t *testing.T) {
	srv := httptest.NewServer(NewHandler(DefaultCatalog()))
	defer srv.Close()

	t.Run("by path", func(t *testing.T) {
		code, body := get(t, srv.URL+"/config/compliance-specialist")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "compliance-specialist", body["configId"])
		assert.Equal(t, "v1.0", body["apiVersion"])
		assert.NotEmpty(t, body["requestTimestamp"])
	})

	t.Run("unknown path", func(t *testing.T) {
		code, body := get(t, srv.URL+"/config/nope")
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "Configuration not found", body["error"])
		assert.Equal(t, "nope", body["configId"])
		assert.Len(t, body["availableConfigs"], 5)
	})

	t.Run("by query", func(t *testing.T) {
		code, body := get(t, srv.URL+"/config?agentId=compliance-agent")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "compliance-agent", body["agentId"])
		assert.Equal(t, "Regulatory Compliance Assistant", body["agent"].(map[string]any)["name"])
	})

	t.Run("query defaults", func(t *testing.T) {
		_, body := get(t, srv.URL+"/?agentId=unknown")
		assert.Equal(t, "Mortgage Lending Assistant", body["agent"].(map[string]any)["name"])
		assert.Equal(t, "unknown", body["agentId"])

		_, body = get(t, srv.URL+"/config")
		assert.Equal(t, "default", body["agentId"])
		assert.Equal(t, true, body["success"])
	})

	t.Run("index", func(t *testing.T) {
		code, body := get(t, srv.URL+"/")
		assert.Equal(t, http.StatusOK, code)
		assert.Len(t, body["availableConfigs"], 5)
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/config/mortgage-agent", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("catalog is not mutated", func(t *testing.T) {
		get(t, srv.URL+"/config/mortgage-agent")
		_, ok := DefaultCatalog()["mortgage-agent"]["requestTimestamp"]
		assert.False(t, ok)
	})
}

func TestFetcherAgainstHandler(t *testing.T) {
	srv := httptest.NewServer(NewHandler(DefaultCatalog()))
	defer srv.Close()
	f := agentconfig.NewFetcher(srv.Client())

	cfg, err := f.Fetch(context.Background(), agentconfig.Request{
		URL:       srv.URL + "/config",
		AgentID:   "mortgage-advisor-v2",
		Placement: agentconfig.PlacePath,
	})
	require.NoError(t, err)
	assert.Equal(t, "Mortgage Lending Advisor", cfg.Agent.Name)
	assert.Equal(t, "structured_advisory_report", cfg.Output.ExpectedFormat)
	assert.Equal(t, 15.0, cfg.Output.SyntheticRecordsCount)
	assert.Len(t, cfg.Workflow.Steps, 5)
	assert.Contains(t, cfg.Guidance.SystemPromptTemplate, "senior mortgage lending advisor")
	assert.Len(t, cfg.Guidance.Rules, 4)

	cfg, err = f.Fetch(context.Background(), agentconfig.Request{
		URL:       srv.URL + "/config",
		AgentID:   "mortgage-agent",
		Placement: agentconfig.PlaceQuery,
	})
	require.NoError(t, err)
	assert.Len(t, cfg.Snippets(), 2)

	_, err = f.Fetch(context.Background(), agentconfig.Request{
		URL:       srv.URL + "/config",
		AgentID:   "missing",
		Placement: agentconfig.PlacePath,
	})
	var se *agentconfig.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}
