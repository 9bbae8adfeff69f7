package config

import (
	"time"

	"fabrikmcp/internal/rag"
)

// Config is the full fabrik-mcp configuration.
type Config struct {
	Server     Server         `yaml:"server"`
	Log        Log            `yaml:"log"`
	ConfigAPI  ConfigAPI      `yaml:"config_api"`
	Gemini     Gemini         `yaml:"gemini"`
	Store      Store          `yaml:"store"`
	Tracing    Tracing        `yaml:"tracing"`
	Heuristics rag.Vocabulary `yaml:"heuristics"`
}

// Server controls the MCP server and its transport.
type Server struct {
	Name            string        `yaml:"name"`
	Version         string        `yaml:"version"`
	Transport       string        `yaml:"transport"` // stdio or http
	Port            int           `yaml:"port"`
	Path            string        `yaml:"path"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Log struct {
	Level string `yaml:"level"`
}

// ConfigAPI describes the upstream agent configuration service.
type ConfigAPI struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	// Port is where the bundled sample API listens (config-api command).
	Port int `yaml:"port"`
}

type Gemini struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// Store selects the interaction recorder.
type Store struct {
	Backend      string        `yaml:"backend"` // none, sqlite or supabase
	SQLitePath   string        `yaml:"sqlite_path"`
	SupabaseURL  string        `yaml:"supabase_url"`
	SupabaseKey  string        `yaml:"supabase_key"`
	Table        string        `yaml:"table"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type Tracing struct {
	Exporter    string `yaml:"exporter"` // none, stdout or otlp
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"

	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)
