// Package configapi serves a small catalog of agent configurations over HTTP,
// for local runs of get_agent_config and gemini_with_config.
package configapi

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"fabrikmcp/internal/log"
)

// DefaultAgentID is served when a query names no agent or an unknown one.
const DefaultAgentID = "mortgage-agent"

const (
	apiVersion = "v1.0"
	source     = "fabrik-config-api"
)

//go:embed configs.json
var catalogJSON []byte

// Catalog maps config ids to configuration documents.
type Catalog map[string]map[string]any

// DefaultCatalog returns the embedded sample configurations.
func DefaultCatalog() Catalog {
	var c Catalog
	if err := json.Unmarshal(catalogJSON, &c); err != nil {
		panic(fmt.Sprintf("configapi: bad embedded catalog: %v", err))
	}
	return c
}

// IDs returns the config ids, sorted.
func (c Catalog) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type handler struct {
	catalog Catalog
	now     func() time.Time
}

// NewHandler routes:
//
//	GET /config/{id}      the named config, 404 if unknown
//	GET /config?agentId=  the named config or the default one
//	GET /?agentId=        same as /config
//	GET /                 an index of the catalog
func NewHandler(catalog Catalog) http.Handler {
	h := &handler{catalog: catalog, now: time.Now}

	mux := http.NewServeMux()
	mux.HandleFunc("/config/{id}", h.byPath)
	mux.HandleFunc("/config", h.byQuery)
	mux.HandleFunc("/{$}", h.index)
	return withCORS(mux)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
			return
		case http.MethodGet:
			log.Debugf("config-api: %s %s", r.Method, r.URL)
			next.ServeHTTP(w, r)
		default:
			writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
		}
	})
}

func (h *handler) byPath(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cfg, ok := h.catalog[id]
	if !ok {
		log.Infof("config-api: config %q not found", id)
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":            "Configuration not found",
			"configId":         id,
			"availableConfigs": h.catalog.IDs(),
		})
		return
	}

	body := clone(cfg)
	body["requestTimestamp"] = h.timestamp()
	body["apiVersion"] = apiVersion
	body["source"] = source
	writeJSON(w, http.StatusOK, body)
}

func (h *handler) byQuery(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agentId")
	cfg, ok := h.catalog[agentID]
	if !ok {
		cfg = h.catalog[DefaultAgentID]
	}

	body := clone(cfg)
	body["success"] = true
	body["timestamp"] = h.timestamp()
	if agentID == "" {
		body["agentId"] = "default"
	} else {
		body["agentId"] = agentID
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *handler) index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Has("agentId") {
		h.byQuery(w, r)
		return
	}

	examples := make(map[string]string, len(h.catalog))
	for _, id := range h.catalog.IDs() {
		examples[id] = "/config/" + id
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":          "FABRIK Config API",
		"availableConfigs": h.catalog.IDs(),
		"usage":            "GET /config/{configId} or GET /config?agentId={agentId}",
		"examples":         examples,
	})
}

func (h *handler) timestamp() string {
	return h.now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// clone copies the top level so per-request fields never leak into the catalog.
func clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+3)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

// Describe lists the catalog for startup logs.
func (c Catalog) Describe(baseURL string) string {
	var b strings.Builder
	for _, id := range c.IDs() {
		name := "?"
		if agent, ok := c[id]["agent"].(map[string]any); ok {
			if n, ok := agent["name"].(string); ok {
				name = n
			}
		}
		fmt.Fprintf(&b, "%s: %s (%s/config/%s)\n", id, name, strings.TrimRight(baseURL, "/"), id)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
