package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	aigateway "github.com/llmgw/core"
	"github.com/llmgw/core/internal/bootstrap"
	"github.com/llmgw/core/internal/router"
	"github.com/llmgw/core/internal/usage"
	"github.com/llmgw/core/providers"
)

func newRouteCmd() *cobra.Command {
	var configPath string
	var userID string
	var promptTokens int

	cmd := &cobra.Command{
		Use:   "route <model-id>",
		Short: "Dry-run the Model Router's decision for a requested model id, without calling any provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoute(cmd, configPath, args[0], userID, promptTokens)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "gateway config file (required)")
	cmd.Flags().StringVar(&userID, "user", "", "user id to route on behalf of, for sticky-session strategies")
	cmd.Flags().IntVar(&promptTokens, "prompt-tokens", 0, "estimated prompt token count")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runRoute(cmd *cobra.Command, configPath, modelID, userID string, promptTokens int) error {
	cfg, err := aigateway.LoadConfig(configPath)
	if err != nil {
		return wrapExit(exitConfigError, fmt.Errorf("loading config: %w", err))
	}
	if err := aigateway.ValidateConfig(*cfg); err != nil {
		return wrapExit(exitConfigError, fmt.Errorf("validation: %w", err))
	}
	if len(cfg.ModelMappings) == 0 {
		return wrapExit(exitConfigError, fmt.Errorf("config has no model_mappings; nothing to route"))
	}

	registry := providers.NewRegistry()
	if _, err := bootstrap.AutoRegisterProviders(registry, slog.Default()); err != nil {
		return wrapExit(exitStartupFailure, err)
	}

	descriptors := aigateway.ModelDescriptorsFromMappings(cfg.ModelMappings, nil)
	rtr := router.New(descriptors, cfg.Aliases, aigateway.RouterConfigFromRouting(cfg.Routing), usage.NewMetricsStore(), nil, nil, time.Now().UnixNano())

	decision, err := rtr.Select(router.SelectParams{
		RequestedModelID: modelID,
		UserID:           userID,
		PromptTokens:     promptTokens,
		RequestType:      router.RequestTypeCompletion,
	})
	if err != nil {
		return wrapExit(exitConfigError, fmt.Errorf("routing decision: %w", err))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "requested:  %s\n", decision.OriginalModelID)
	fmt.Fprintf(out, "selected:   %s\n", decision.SelectedModelID)
	fmt.Fprintf(out, "strategy:   %s\n", decision.Strategy)
	if desc, ok := rtr.Describe(decision.SelectedModelID); ok {
		fmt.Fprintf(out, "provider:   %s\n", desc.ProviderName)
		fmt.Fprintf(out, "vendor id:  %s\n", desc.ProviderModelID)
		if _, ok := registry.Get(desc.ProviderName); !ok {
			fmt.Fprintf(out, "warning:    provider %q is not registered in this environment\n", desc.ProviderName)
		}
	}
	return nil
}
