package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fabrikmcp/internal/agentconfig"
	"fabrikmcp/internal/config"
	"fabrikmcp/internal/lifecycle"
	"fabrikmcp/internal/llm"
	"fabrikmcp/internal/log"
	"fabrikmcp/internal/rag"
	"fabrikmcp/internal/store"
	"fabrikmcp/internal/tools"
	"fabrikmcp/internal/tracing"
)

var (
	serveTransport string
	servePort      int
	servePath      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the fabrik tools over stdio or streamable HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("transport") {
			cfg.Server.Transport = serveTransport
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}
		if cmd.Flags().Changed("path") {
			cfg.Server.Path = servePath
		}
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		return runServe(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveTransport, "transport", "t", config.TransportStdio, "Transport: stdio or http")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "The port to listen on (http transport)")
	serveCmd.Flags().StringVar(&servePath, "path", "/mcp", "The URI path of the MCP endpoint (http transport)")
}

// components are the long-lived collaborators of the tool handlers.
type components struct {
	deps     tools.Deps
	recorder store.Recorder
	tracer   *tracing.Tracer
}

func buildComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	tracer, err := tracing.New(ctx, tracing.Config{
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     cfg.Server.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}

	backend, err := store.Open(cfg.StoreOptions())
	if err != nil {
		_ = tracer.Shutdown(ctx)
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	recorder := store.NewAsync(backend, cfg.Store.WriteTimeout)

	var generator llm.Generator
	if cfg.Gemini.APIKey != "" {
		opts := []llm.Option{llm.WithAPIKey(cfg.Gemini.APIKey), llm.WithModel(cfg.Gemini.Model)}
		if cfg.Gemini.BaseURL != "" {
			opts = append(opts, llm.WithBaseURL(cfg.Gemini.BaseURL))
		}
		gemini, err := llm.NewGemini(ctx, opts...)
		if err != nil {
			_ = recorder.Close()
			_ = tracer.Shutdown(ctx)
			return nil, err
		}
		generator = gemini
		log.Infof("gemini enabled with model %s", gemini.Model())
	} else {
		log.Warnf("%s is not set, gemini_with_config is disabled", config.EnvGeminiAPIKey)
	}

	return &components{
		deps: tools.Deps{
			Analyzer:         rag.NewAnalyzer(cfg.Heuristics),
			Fetcher:          agentconfig.NewFetcher(&http.Client{Timeout: cfg.ConfigAPI.Timeout}),
			Generator:        generator,
			Recorder:         recorder,
			DefaultConfigURL: cfg.ConfigAPI.URL,
		},
		recorder: recorder,
		tracer:   tracer,
	}, nil
}

func runServe(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}

	mcpServer := tools.NewServer(comps.deps, cfg.Server.Name, cfg.Server.Version,
		comps.tracer.Middleware(), tools.LoggingMiddleware())

	// closed in order: transport, pending writes, spans
	var cl lifecycle.CloseLine
	defer func() { _ = cl.Close() }()

	shutdownCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	}

	var serve func() error
	switch cfg.Server.Transport {
	case config.TransportHTTP:
		httpServer, lis, err := listenHTTP(cfg, mcpServer)
		if err != nil {
			_ = comps.recorder.Close()
			_ = comps.tracer.Shutdown(ctx)
			return err
		}
		cl.AddE("http server", func() error {
			sctx, cancel := shutdownCtx()
			defer cancel()
			return httpServer.Shutdown(sctx)
		})
		serve = func() error { return serveHTTP(ctx, httpServer, lis, cfg.Server.Path) }
	default:
		serve = func() error { return serveStdio(ctx, mcpServer, in, out) }
	}
	cl.AddE("recorder", comps.recorder.Close)
	cl.AddE("tracer", func() error {
		sctx, cancel := shutdownCtx()
		defer cancel()
		return comps.tracer.Shutdown(sctx)
	})

	return serve()
}

func serveStdio(ctx context.Context, s *tools.Server, in io.Reader, out io.Writer) error {
	log.Infof("fabrik-mcp serving %d tools over stdio", len(tools.ToolNames()))
	err := s.ServeStdio(ctx, in, out, zap.NewStdLog(log.Zap()))
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio transport: %w", err)
	}
	return nil
}

func listenHTTP(cfg *config.Config, s *tools.Server) (*http.Server, net.Listener, error) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Server.Path, s.HTTPHandler(server.WithEndpointPath(cfg.Server.Path)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("could not listen on %s: %w", addr, err)
	}
	return &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}, lis, nil
}

func serveHTTP(ctx context.Context, httpServer *http.Server, lis net.Listener, path string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(lis)
	}()
	log.Infof("fabrik-mcp listening on %s%s", lis.Addr(), path)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http transport: %w", err)
	}
}
