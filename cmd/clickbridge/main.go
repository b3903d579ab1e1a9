// Command clickbridge runs the ClickUp connector: the OAuth flow, the
// installation lifecycle and the webhook receiver, plus operator commands.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := newRootCmd().Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clickbridge",
		Short: "ClickUp webhook connector",
		Long: `clickbridge authorizes against ClickUp, registers a webhook for the
authorized workspace and fans verified webhook events out to subscriber blocks.

Configuration is read from clickbridge.yaml (or $CLICKBRIDGE_CONFIG) and
CLICKBRIDGE_* environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newAdminCmd())
	return root
}
