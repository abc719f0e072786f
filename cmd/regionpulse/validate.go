package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/regionpulse/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a RegionPulse configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  regionpulse validate -c config.yaml
  regionpulse validate --config /etc/regionpulse/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	notifiers := config.BuildNotifiers(cfg, nil)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:          %d\n", cfg.Port)
	fmt.Fprintf(out, "  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Fprintf(out, "  Probe timeout: %s\n", cfg.ProbeTimeout.Duration())
	fmt.Fprintf(out, "  Main URL:      %s\n", cfg.MainURL)
	fmt.Fprintf(out, "  Regions:       %d\n", len(cfg.Regions))
	for _, r := range cfg.Regions {
		fmt.Fprintf(out, "    %-4s %s\n", r.Code, r.URL)
	}
	fmt.Fprintf(out, "  Notifiers:     %d\n", len(notifiers))

	return nil
}
