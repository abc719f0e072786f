package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/regionpulse"
	"github.com/jpalmerr/regionpulse/config"
)

// checkCmd runs one polling cycle and prints the result.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one polling cycle and print the result",
	Long: `Probe the main endpoint and every region once and print the result.

No server is started and no notifications are sent. With --strict the
command fails when the main endpoint or any region is offline, which makes
it usable as a deployment gate.

Example:
  regionpulse check -c config.yaml
  regionpulse check -c config.yaml --json
  regionpulse check -c config.yaml --strict`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	checkCmd.Flags().Bool("json", false, "print the snapshot as JSON")
	checkCmd.Flags().Bool("strict", false, "fail when any endpoint is offline")
	checkCmd.Flags().Duration("timeout", 30*time.Second, "overall deadline for the cycle")
	checkCmd.Flags().Bool("no-color", false, "disable colored output")
	_ = checkCmd.MarkFlagRequired("config")
}

func runCheck(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	asJSON, _ := cmd.Flags().GetBool("json")
	strict, _ := cmd.Flags().GetBool("strict")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	noColor, _ := cmd.Flags().GetBool("no-color")

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	opts, err := config.BuildOptions(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}

	m, err := regionpulse.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	snap, err := m.Check(ctx)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			regionpulse.Snapshot
			Summary regionpulse.Summary `json:"summary"`
		}{snap, snap.Summary()}); err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
	} else {
		printSnapshot(out, m.Regions(), snap, !noColor && isTerminal(out))
	}

	if strict {
		return offlineError(snap)
	}
	return nil
}

// printSnapshot writes a table with the main endpoint first, then regions
// in configuration order.
func printSnapshot(w io.Writer, regions []regionpulse.Region, snap regionpulse.Snapshot, colored bool) {
	up := color.New(color.FgGreen, color.Bold)
	down := color.New(color.FgRed, color.Bold)
	if colored {
		up.EnableColor()
		down.EnableColor()
	} else {
		up.DisableColor()
		down.DisableColor()
	}

	statusWord := func(online bool) string {
		if online {
			return up.Sprint("online")
		}
		return down.Sprint("offline")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tSTATUS\tLATENCY\tUPTIME\tURL")
	fmt.Fprintf(tw, "main\t%s\t%dms\t-\t%s\n", statusWord(snap.Main.Online), snap.Main.ResponseTimeMs, snap.Main.URL)
	for _, r := range regions {
		rs := snap.Regions[r.Code()]
		fmt.Fprintf(tw, "%s\t%s\t%dms\t%.1f%%\t%s\n", r.Code(), statusWord(rs.Online), rs.ResponseTimeMs, rs.UptimePct, rs.URL)
	}
	_ = tw.Flush()

	sum := snap.Summary()
	fmt.Fprintf(w, "\n%d/%d regions online, avg latency %dms\n", sum.ActiveNodes, sum.TotalNodes, sum.AvgLatencyMs)
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func offlineError(snap regionpulse.Snapshot) error {
	var errs []error
	if !snap.Main.Online {
		errs = append(errs, errors.New("main endpoint is offline"))
	}
	sum := snap.Summary()
	if down := sum.TotalNodes - sum.ActiveNodes; down > 0 {
		errs = append(errs, fmt.Errorf("%d of %d regions offline", down, sum.TotalNodes))
	}
	return errors.Join(errs...)
}
