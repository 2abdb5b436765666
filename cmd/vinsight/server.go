package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/vinsight/internal/api"
	"github.com/kalambet/vinsight/internal/config"
	"github.com/kalambet/vinsight/internal/engine"
	"github.com/kalambet/vinsight/internal/insights"
	"github.com/kalambet/vinsight/internal/logging"
	"github.com/kalambet/vinsight/internal/lookup"
	"github.com/kalambet/vinsight/internal/narrative"
	"github.com/kalambet/vinsight/internal/storage"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the lookup tools over MCP on stdin/stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

// app holds the wired dependencies shared by serve and mcp.
type app struct {
	cfg     config.Config
	store   *storage.Store
	engine  engine.Engine
	service *lookup.Service
}

// newApp builds the store, engine, generator, cache manager and lookup
// service from cfg. The caller closes the store.
func newApp(ctx context.Context, cfg config.Config, progress io.Writer) (*app, error) {
	eng, err := engine.Detect(ctx, engine.Config{
		Provider:   cfg.LLM.Provider,
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.Model,
		APIKey:     cfg.LLM.APIKey,
		APIVersion: cfg.LLM.APIVersion,
		Timeout:    cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("detecting llm engine: %w", err)
	}
	if err := engine.EnsureReady(ctx, eng, progress); err != nil {
		// Lookups still work with fallback insights.
		slog.Warn("llm engine not ready", "error", err)
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	var chat narrative.Chatter
	if eng != nil {
		chat = eng
	}
	gen := narrative.New(chat, cfg.LLM.Timeout)
	mgr := insights.NewManager(store, gen, cfg.Insights.TTL)

	return &app{
		cfg:     cfg,
		store:   store,
		engine:  eng,
		service: lookup.New(store, mgr),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		printWarning("closing storage: %v", err)
	}
}

func (a *app) modelName() string {
	if a.engine == nil {
		return narrative.FallbackModelVersion
	}
	return a.cfg.LLM.Model
}

func (a *app) httpHandler(logger *slog.Logger) http.Handler {
	h := api.NewHandler(api.Deps{
		Service:     a.service,
		DB:          a.store,
		Version:     version,
		LLMProvider: a.cfg.LLM.Provider,
		LLMModel:    a.modelName(),
		CORSOrigins: a.cfg.Server.CORSOrigins,
		Logger:      logger,
	})
	if a.cfg.Server.H2C {
		h = h2c.NewHandler(h, &http2.Server{})
	}
	return h
}

func runServer() error {
	fmt.Fprintln(stderr, versionString())

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           a.httpHandler(logger),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("vinsight listening", "addr", srv.Addr, "driver", a.store.Driver(),
			"llm_provider", cfg.LLM.Provider, "h2c", cfg.Server.H2C)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// stdout carries the protocol.
	logging.New(os.Stderr, cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer a.close()

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Service: a.service,
		Stats:   a.store,
		Version: version,
	})
	slog.Info("MCP server started (stdio transport)")
	if err := server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}
