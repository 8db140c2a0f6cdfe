package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/axontrace/replayer/internal/config"
	"github.com/axontrace/replayer/internal/gateway"
	"github.com/axontrace/replayer/internal/grounding"
	"github.com/axontrace/replayer/internal/hub"
	"github.com/axontrace/replayer/internal/llm"
	"github.com/axontrace/replayer/internal/observability"
	"github.com/axontrace/replayer/internal/replay"
	"github.com/axontrace/replayer/internal/selector"
	"github.com/axontrace/replayer/internal/store"
	"github.com/axontrace/replayer/internal/store/memory"
	"github.com/axontrace/replayer/internal/store/postgres"
	"github.com/axontrace/replayer/internal/store/sqlite"
	"github.com/axontrace/replayer/internal/toolregistry"
)

func buildServeCmd() *cobra.Command {
	var configPath string
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the replay engine's HTTP/websocket gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	logLevel := ""
	if debug {
		logLevel = "debug"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger := observability.NewLogger(observability.LogConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logger.Info("starting replay engine", "version", version, "commit", commit, "driver", cfg.Database.Driver)

	stores, closeStore, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if closeStore != nil {
		defer closeStore()
	}

	metrics := observability.NewMetrics()
	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "replayer",
		ServiceVersion: version,
		Environment:    cfg.Observability.Environment,
		Endpoint:       cfg.Observability.OTLPEndpoint,
		SamplingRate:   cfg.Observability.SamplingRate,
	})
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", "error", err.Error())
		}
	}()

	geocoderRegistry := toolregistry.New(cfg.Tools.Providers, nil, logger.Slog())
	geocoderRegistry.Metrics = metrics
	geocoder := toolregistry.NewGeocoder(geocoderRegistry, logger.Slog())
	geocoder.Metrics = metrics
	toolRegistry := toolregistry.New(cfg.Tools.Providers, geocoder, logger.Slog())
	toolRegistry.Metrics = metrics
	grounder := grounding.New(toolRegistry)

	llmRegistry := &llm.Registry{}
	if cfg.LLM.AnthropicAPIKey != "" {
		llmRegistry.Anthropic = llm.NewAnthropicProvider(cfg.LLM.AnthropicAPIKey, cfg.LLM.DefaultModel)
	}
	if cfg.LLM.OpenAIAPIKey != "" {
		llmRegistry.OpenAI = llm.NewOpenAIProvider(cfg.LLM.OpenAIAPIKey, cfg.LLM.DefaultModel)
	}

	h := hub.New()
	h.Metrics = metrics
	mode := selector.Mode(cfg.Replay.Mode)
	coordinator := replay.New(stores, h, llmRegistry, grounder, cfg.LLM.DefaultModel, mode, logger.Slog())
	coordinator.Metrics = metrics
	coordinator.Tracer = tracer

	gatewayServer := gateway.New(h, coordinator, stores, logger.Slog())

	mux := http.NewServeMux()
	mux.Handle("/ws", gatewayServer)
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config) (store.StoreSet, func() error, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return postgres.NewStoreSetFromDSN(cfg.Database.DSN, postgres.DefaultConfig())
	case "sqlite":
		return sqlite.Open(cfg.Database.DSN)
	default:
		stores, _, _, _ := memory.NewStoreSet()
		return stores, nil, nil
	}
}
