// Package mock provides a fake main site and regional health endpoints for
// trying RegionPulse locally.
package mock

import (
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// Node is a mock endpoint served at /<Path>.
type Node struct {
	Path string

	// BaseLatency is added to every response along with up to 100ms of
	// jitter.
	BaseLatency time.Duration
}

// DefaultNodes is the main site plus three regions.
var DefaultNodes = []Node{
	{Path: "main", BaseLatency: 30 * time.Millisecond},
	{Path: "eu", BaseLatency: 40 * time.Millisecond},
	{Path: "na", BaseLatency: 90 * time.Millisecond},
	{Path: "as", BaseLatency: 180 * time.Millisecond},
}

// nodeState tracks whether a node is up and when it flips next.
type nodeState struct {
	up           bool
	nextChangeAt time.Time
}

// Handler returns a handler serving every node. Each node starts online and
// flips between online (200) and offline (503) every 20-60 seconds.
func Handler(nodes []Node, logger *slog.Logger) http.Handler {
	var mu sync.Mutex
	states := make(map[string]*nodeState, len(nodes))
	mux := http.NewServeMux()

	for _, n := range nodes {
		states[n.Path] = &nodeState{up: true, nextChangeAt: nextChange()}

		mux.HandleFunc("/"+n.Path, func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(n.BaseLatency + time.Duration(rand.Intn(100))*time.Millisecond)

			mu.Lock()
			state := states[n.Path]
			if time.Now().After(state.nextChangeAt) {
				state.up = !state.up
				state.nextChangeAt = nextChange()
				logger.Info("status change", "node", n.Path, "up", state.up)
			}
			up := state.up
			mu.Unlock()

			if !up {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("ok"))
		})
	}

	return mux
}

// ListenAndServe serves [DefaultNodes] on addr until the server fails.
func ListenAndServe(addr string, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(DefaultNodes, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

func nextChange() time.Time {
	return time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second)
}
