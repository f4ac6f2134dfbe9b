// Package cmd holds the cacheserver CLI's cobra command tree.
package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "cacheserver",
	Short: "Run and inspect a cachecore instance",
	Long: `cacheserver is a demo harness around the cachecore in-process cache:
it wires a configured cache instance to an optional write-through backend
(Redis or SQL), a Prometheus metrics registry, and a WebSocket event stream,
and serves the event stream and a JSON statistics snapshot behind a single
admin HTTP listener. The Prometheus metrics are not served on that listener.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults layered under env vars)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
}
