package aggregate

import (
	"math"
	"time"

	"github.com/jpalmerr/regionpulse/internal/eventlog"
)

// MainStatus is the published view of the primary endpoint.
type MainStatus struct {
	URL            string     `json:"url"`
	Online         bool       `json:"online"`
	ResponseTimeMs int64      `json:"response_time_ms"`
	LastCheckAt    *time.Time `json:"last_check_at"`
}

// RegionStatus is the published view of a regional node.
type RegionStatus struct {
	URL            string     `json:"url"`
	Online         bool       `json:"online"`
	ResponseTimeMs int64      `json:"response_time_ms"`
	Checks         int        `json:"checks"`
	Successes      int        `json:"successes"`
	UptimePct      float64    `json:"uptime_pct"`
	LastCheckAt    *time.Time `json:"last_check_at"`
}

// Snapshot is the aggregate result of one completed cycle.
//
// A Snapshot is deep-copied from aggregator state when it is built and must
// be treated as read-only: the same value may be handed to several
// observers.
type Snapshot struct {
	// Cycle is the sequence number of the cycle that produced the snapshot.
	// Zero is the initial, pre-probe state.
	Cycle uint64 `json:"cycle"`

	// CompletedAt is when the cycle finished. Zero for the initial state.
	CompletedAt time.Time `json:"completed_at"`

	Main    MainStatus              `json:"main"`
	Regions map[string]RegionStatus `json:"regions"`

	// Logs holds the activity log, newest first.
	Logs []eventlog.Entry `json:"logs"`
}

// Summary holds the network-wide figures shown at the top of the dashboard.
type Summary struct {
	ActiveNodes  int     `json:"active_nodes"`
	TotalNodes   int     `json:"total_nodes"`
	AvgLatencyMs int64   `json:"avg_latency_ms"`
	AvgUptimePct float64 `json:"avg_uptime_pct"`
}

// Summary computes network-wide figures across all regions.
// Latency is averaged over every region, offline ones counting as 0.
func (s Snapshot) Summary() Summary {
	sum := Summary{TotalNodes: len(s.Regions)}
	if sum.TotalNodes == 0 {
		return sum
	}

	var latency int64
	var uptime float64
	for _, r := range s.Regions {
		if r.Online {
			sum.ActiveNodes++
		}
		latency += r.ResponseTimeMs
		uptime += r.UptimePct
	}

	n := float64(sum.TotalNodes)
	sum.AvgLatencyMs = int64(math.Round(float64(latency) / n))
	sum.AvgUptimePct = roundTenth(uptime / n)
	return sum
}

// uptimePercent returns successes/checks as a percentage rounded to one
// decimal place, or 0 before the first check.
func uptimePercent(successes, checks int) float64 {
	if checks <= 0 {
		return 0
	}
	return roundTenth(float64(successes) / float64(checks) * 100)
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
