package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/regionpulse"
	"github.com/jpalmerr/regionpulse/example/mock"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// start mock nodes (see example/mock)
	go func() {
		if err := mock.ListenAndServe(":9999", logger); err != nil {
			logger.Error("mock server error", "error", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	regions := []regionpulse.Region{
		regionpulse.MustRegion("EU", "http://localhost:9999/eu"),
		regionpulse.MustRegion("NA", "http://localhost:9999/na"),
		regionpulse.MustRegion("AS", "http://localhost:9999/as"),
	}

	m, err := regionpulse.New(
		regionpulse.WithTitle("Lumine Proxy"),
		regionpulse.WithMainURL("http://localhost:9999/main"),
		regionpulse.WithRegions(regions...),
		regionpulse.WithPollingInterval(5*time.Second),
		regionpulse.WithPort(3000),
		regionpulse.WithLogger(logger),
		regionpulse.WithNotifier(regionpulse.NewLogNotifier(logger)),
		regionpulse.WithSnapshotCallback(func(s regionpulse.Snapshot) {
			sum := s.Summary()
			logger.Info("cycle complete",
				"cycle", s.Cycle,
				"main_online", s.Main.Online,
				"active_nodes", fmt.Sprintf("%d/%d", sum.ActiveNodes, sum.TotalNodes),
			)
		}),
	)
	if err != nil {
		slog.Error("failed to create monitor", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  RegionPulse Demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:3000 in your browser")
	fmt.Println("  Main site and 3 regions flip between up and down every 20-60s")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.Start(ctx); err != nil {
		slog.Error("regionpulse error", "error", err)
		os.Exit(1)
	}
}
