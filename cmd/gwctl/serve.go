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

	"github.com/spf13/cobra"

	aigateway "github.com/llmgw/core"
	"github.com/llmgw/core/internal/bootstrap"
	"github.com/llmgw/core/internal/version"
	"github.com/llmgw/core/providers"
)

func newServeCmd() *cobra.Command {
	var configPath string
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, configPath, addr)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "gateway config file (optional; falls back to env-derived defaults)")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

func runServe(cmd *cobra.Command, configPath, addr string) error {
	log := slog.Default()

	var cfg *aigateway.Config
	if configPath != "" {
		loaded, err := aigateway.LoadConfig(configPath)
		if err != nil {
			return wrapExit(exitConfigError, fmt.Errorf("loading config: %w", err))
		}
		if err := aigateway.ValidateConfig(*loaded); err != nil {
			return wrapExit(exitConfigError, fmt.Errorf("validation: %w", err))
		}
		cfg = loaded
	}

	registry := providers.NewRegistry()
	names, err := bootstrap.AutoRegisterProviders(registry, log)
	if err != nil {
		return wrapExit(exitStartupFailure, err)
	}
	if len(names) == 0 {
		return wrapExit(exitStartupFailure, fmt.Errorf("no providers configured: set at least one provider API key"))
	}

	if cfg == nil {
		targets := make([]aigateway.Target, 0, len(names))
		for _, name := range names {
			targets = append(targets, aigateway.Target{VirtualKey: name})
		}
		cfg = &aigateway.Config{
			Strategy: aigateway.StrategyConfig{Mode: aigateway.ModeFallback},
			Targets:  targets,
		}
	}

	gw, err := aigateway.New(*cfg)
	if err != nil {
		return wrapExit(exitStartupFailure, fmt.Errorf("building gateway: %w", err))
	}
	for _, name := range names {
		if p, ok := registry.Get(name); ok {
			gw.RegisterProvider(p)
		}
	}
	if len(cfg.Plugins) > 0 {
		if err := gw.LoadPlugins(); err != nil {
			return wrapExit(exitStartupFailure, fmt.Errorf("loading plugins: %w", err))
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/api/v1/models", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]interface{}{"object": "list", "data": gw.AllModels()})
	})
	mux.HandleFunc("/api/v1/completions", completionsHandler(gw))
	mux.HandleFunc("/api/v1/completions/stream", streamHandler(gw))
	mux.HandleFunc("/api/v1/embeddings", embeddingsHandler(gw))

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", "error", err.Error())
		}
	}()

	log.Info("gwctl serve listening", "version", version.Short(), "addr", addr, "providers", len(names))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stop()
		return wrapExit(exitStartupFailure, fmt.Errorf("server error: %w", err))
	}
	log.Info("server stopped")
	return nil
}
