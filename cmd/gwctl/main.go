// Package main provides gwctl, the gateway command-line tool: validate a
// config file, list registered plugins, dry-run a routing decision, run
// the HTTP server, or print version info.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// Register built-in plugins so they appear in `plugins` and can be
	// loaded from config by `serve`.
	_ "github.com/llmgw/core/internal/plugins/cache"
	_ "github.com/llmgw/core/internal/plugins/logger"
	_ "github.com/llmgw/core/internal/plugins/maxtoken"
	_ "github.com/llmgw/core/internal/plugins/ratelimit"
	_ "github.com/llmgw/core/internal/plugins/wordfilter"
)

// Exit codes per the gateway's external-interface contract: 0 success,
// 1 configuration error, 2 startup failure.
const (
	exitOK             = 0
	exitConfigError    = 1
	exitStartupFailure = 2
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gwctl",
		Short:         "gwctl manages and inspects an AI gateway deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newValidateCmd(),
		newPluginsCmd(),
		newRouteCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return root
}

// exitCodeErr carries the exit code a failed command should terminate with.
type exitCodeErr struct {
	code int
	err  error
}

func (e *exitCodeErr) Error() string { return e.err.Error() }
func (e *exitCodeErr) Unwrap() error { return e.err }

func wrapExit(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitCodeErr{code: code, err: err}
}

func exitCodeFor(err error) int {
	var ec *exitCodeErr
	if ok := asExitCodeErr(err, &ec); ok {
		fmt.Fprintln(os.Stderr, "Error:", ec.err)
		return ec.code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return exitConfigError
}

func asExitCodeErr(err error, target **exitCodeErr) bool {
	for err != nil {
		if ec, ok := err.(*exitCodeErr); ok {
			*target = ec
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
