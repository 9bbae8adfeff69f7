// Package config loads fabrik-mcp settings. Values are layered: built-in
// defaults, then an optional YAML file, then environment variables. Command
// line flags are applied on top by the cmd package.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"fabrikmcp/internal/llm"
	"fabrikmcp/internal/log"
	"fabrikmcp/internal/rag"
	"fabrikmcp/internal/store"
)

// Environment variables read by ApplyEnv.
const (
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvGeminiModel     = "GEMINI_MODEL"
	EnvSupabaseURL     = "SUPABASE_URL"
	EnvSupabaseAnonKey = "SUPABASE_ANON_KEY"
	EnvConfigAPIURL    = "FABRIK_CONFIG_API_URL"
	EnvStore           = "FABRIK_STORE"
	EnvSQLitePath      = "FABRIK_SQLITE_PATH"
	EnvLogLevel        = "FABRIK_LOG_LEVEL"
	EnvTracing         = "FABRIK_TRACING"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			Name:            "fabrik-mcp",
			Version:         "1.0.0",
			Transport:       TransportStdio,
			Port:            8080,
			Path:            "/mcp",
			ShutdownTimeout: 5 * time.Second,
		},
		Log: Log{Level: log.LevelInfo},
		ConfigAPI: ConfigAPI{
			URL:     "http://localhost:3003/config",
			Timeout: 30 * time.Second,
			Port:    3003,
		},
		Gemini: Gemini{Model: llm.DefaultModel},
		Store: Store{
			Backend:      store.BackendNone,
			SQLitePath:   "fabrik.db",
			Table:        store.DefaultTable,
			WriteTimeout: store.DefaultWriteTimeout,
		},
		Tracing: Tracing{
			Exporter:    ExporterNone,
			ServiceName: "fabrik-mcp",
		},
		Heuristics: rag.DefaultVocabulary(),
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	ApplyEnv(cfg, os.Getenv)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any non-empty variable returned by getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Gemini.APIKey, EnvGeminiAPIKey)
	set(&cfg.Gemini.Model, EnvGeminiModel)
	set(&cfg.Store.SupabaseURL, EnvSupabaseURL)
	set(&cfg.Store.SupabaseKey, EnvSupabaseAnonKey)
	set(&cfg.ConfigAPI.URL, EnvConfigAPIURL)
	set(&cfg.Store.Backend, EnvStore)
	set(&cfg.Store.SQLitePath, EnvSQLitePath)
	set(&cfg.Log.Level, EnvLogLevel)
	set(&cfg.Tracing.Exporter, EnvTracing)
}

// Validate checks that cfg has usable values.
func Validate(cfg *Config) error {
	switch cfg.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("server.transport must be %q or %q, got %q", TransportStdio, TransportHTTP, cfg.Server.Transport)
	}
	if cfg.Server.Transport == TransportHTTP {
		if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
			return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
		}
		if !strings.HasPrefix(cfg.Server.Path, "/") {
			return fmt.Errorf("server.path must start with /, got %q", cfg.Server.Path)
		}
	}

	switch cfg.Log.Level {
	case log.LevelDebug, log.LevelInfo, log.LevelWarn, log.LevelError:
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", cfg.Log.Level)
	}

	if cfg.ConfigAPI.URL == "" {
		return fmt.Errorf("missing required field: config_api.url")
	}

	switch cfg.Store.Backend {
	case store.BackendNone:
	case store.BackendSQLite:
		if cfg.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite backend")
		}
	case store.BackendSupabase:
		if cfg.Store.SupabaseURL == "" || cfg.Store.SupabaseKey == "" {
			return fmt.Errorf("store: supabase backend needs %s and %s", EnvSupabaseURL, EnvSupabaseAnonKey)
		}
	default:
		return fmt.Errorf("store.backend must be none, sqlite or supabase, got %q", cfg.Store.Backend)
	}

	switch cfg.Tracing.Exporter {
	case ExporterNone, ExporterStdout, ExporterOTLP:
	default:
		return fmt.Errorf("tracing.exporter must be none, stdout or otlp, got %q", cfg.Tracing.Exporter)
	}

	for i, tr := range cfg.Heuristics.Triggers {
		if tr.Contains == "" || tr.Query == "" {
			return fmt.Errorf("heuristics.triggers[%d]: contains and query are required", i)
		}
	}
	return nil
}

// StoreOptions maps the store section onto store.Options.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:     c.Store.Backend,
		SQLitePath:  c.Store.SQLitePath,
		SupabaseURL: c.Store.SupabaseURL,
		SupabaseKey: c.Store.SupabaseKey,
		Table:       c.Store.Table,
	}
}
