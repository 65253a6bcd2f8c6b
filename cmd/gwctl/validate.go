package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	aigateway "github.com/llmgw/core"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a gateway configuration file (JSON/YAML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0])
		},
	}
}

func runValidate(cmd *cobra.Command, path string) error {
	cfg, err := aigateway.LoadConfig(path)
	if err != nil {
		return wrapExit(exitConfigError, fmt.Errorf("loading config: %w", err))
	}
	if err := aigateway.ValidateConfig(*cfg); err != nil {
		return wrapExit(exitConfigError, fmt.Errorf("validation: %w", err))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✓ Config is valid")
	fmt.Fprintf(out, "  Strategy:      %s\n", cfg.Strategy.Mode)
	fmt.Fprintf(out, "  Targets:       %d\n", len(cfg.Targets))
	fmt.Fprintf(out, "  Model mappings: %d\n", len(cfg.ModelMappings))
	fmt.Fprintf(out, "  Smart routing: %t\n", cfg.Routing.EnableSmartRouting)

	var targetNames []string
	for _, t := range cfg.Targets {
		targetNames = append(targetNames, t.VirtualKey)
	}
	if len(targetNames) > 0 {
		fmt.Fprintf(out, "  Providers:     %s\n", strings.Join(targetNames, ", "))
	}

	if len(cfg.Plugins) > 0 {
		var pluginNames []string
		for _, p := range cfg.Plugins {
			status := "disabled"
			if p.Enabled {
				status = "enabled"
			}
			pluginNames = append(pluginNames, fmt.Sprintf("%s (%s)", p.Name, status))
		}
		fmt.Fprintf(out, "  Plugins:       %s\n", strings.Join(pluginNames, ", "))
	}
	return nil
}
