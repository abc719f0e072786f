// Standalone mock server for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/regionpulse serve -c example/config.yaml
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jpalmerr/regionpulse/example/mock"
)

func main() {
	fmt.Println("Mock health server starting on :9999")
	fmt.Println("Nodes /main, /eu, /na and /as flip between 200 and 503 every 20-60s")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := mock.ListenAndServe(":9999", logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
