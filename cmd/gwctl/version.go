package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llmgw/core/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "gwctl %s\n", version.String())
			return nil
		},
	}
}
