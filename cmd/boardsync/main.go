// Board Sync Core
//
// This is the main entry point for the boardsync daemon. It discovers
// CircuitPython-class boards over USB mass storage and the web workflow,
// merges them into one registry, and keeps each board's /lib in step with
// the library bundle its programs import.
//
// Subcommands:
//   - serve (default): run discovery, the REST/WebSocket API and the
//     optional MQTT and InfluxDB sinks until interrupted
//   - token: mint an API bearer token from the configured secret
//   - version: print build information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running the root without a
// subcommand is the same as serve.
func newRootCmd() *cobra.Command {
	var configPath string

	serve := func(cmd *cobra.Command, _ []string) error {
		// Cancel on Ctrl+C and SIGTERM for graceful shutdown.
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return run(ctx, configPath)
	}

	root := &cobra.Command{
		Use:           "boardsync",
		Short:         "Discover CircuitPython boards and sync their libraries",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(),
		"configuration file (env BOARDSYNC_CONFIG)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run discovery and the API until interrupted",
			Args:  cobra.NoArgs,
			RunE:  serve,
		},
		tokenCmd(&configPath),
		versionCmd(),
	)
	root.SetContext(context.Background())
	return root
}

// getConfigPath returns the configuration file path.
// Uses BOARDSYNC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BOARDSYNC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
