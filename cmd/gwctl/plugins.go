package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llmgw/core/plugin"
)

func newPluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List all registered plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			names := plugin.RegisteredPlugins()
			if len(names) == 0 {
				fmt.Fprintln(out, "No plugins registered.")
				return nil
			}
			fmt.Fprintln(out, "Registered plugins:")
			for _, name := range names {
				factory, _ := plugin.GetFactory(name)
				p := factory()
				fmt.Fprintf(out, "  %-20s type=%s\n", name, p.Type())
			}
			return nil
		},
	}
}
