// Package main is the entry point for the regionpulse CLI.
//
// RegionPulse can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	regionpulse serve -c config.yaml    # Start polling and the dashboard
//	regionpulse check -c config.yaml    # Run one cycle and print the result
//	regionpulse validate -c config.yaml # Validate configuration
//	regionpulse version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/regionpulse/config"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "regionpulse",
	Short: "Health monitor for a main site and its regional nodes",
	Long: `RegionPulse watches a main site and a set of regional nodes.

Every poll interval it probes the main endpoint, then all regions in
parallel, tracks per-region uptime, logs online/offline transitions and
pushes each result to a live dashboard over WebSocket and SSE. When the
main site comes back online, configured notifiers are told.

Quick start:
  1. Create a config file (regionpulse.yaml)
  2. Run: regionpulse serve -c regionpulse.yaml
  3. Open http://localhost:3000 in your browser

Example config:
  title: Lumine Proxy
  poll_interval: 10s
  main_url: https://lumineproxy.org
  regions:
    EU: http://eu.lumineproxy.org:1456/healthz
    NA: http://na.lumineproxy.org:1456/healthz`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFiles, _ := cmd.Flags().GetStringSlice("env-file")
		return config.LoadEnvFiles(envFiles...)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this regionpulse binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "regionpulse %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("env-file", nil, "dotenv file(s) to load before reading the config")
	rootCmd.AddCommand(versionCmd)
}
