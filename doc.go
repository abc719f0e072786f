// Package regionpulse provides an embeddable health monitor for a main site
// and its regional nodes, with a real-time dashboard.
//
// A [Monitor] probes the main endpoint and every region on a fixed interval
// (regions in parallel), tracks per-region uptime, records online/offline
// transitions in a bounded activity log, and publishes one consistent
// [Snapshot] per cycle to dashboard clients over WebSocket and Server-Sent
// Events. When the main endpoint comes back online, registered notifiers
// are told.
//
// # Quick Start
//
//	eu, _ := regionpulse.NewRegion("EU", "http://eu.example.com:1456/healthz")
//	na, _ := regionpulse.NewRegion("NA", "http://na.example.com:1456/healthz")
//
//	m, _ := regionpulse.New(
//	    regionpulse.WithMainURL("https://example.com"),
//	    regionpulse.WithRegions(eu, na),
//	    regionpulse.WithNotifier(regionpulse.NewCommandNotifier("notify-send")),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	m.Start(ctx) // blocks until context is cancelled
//
// # Polling Cycles
//
// A cycle probes the main endpoint first, then all regions concurrently,
// and publishes only after every region probe has finished. A probe is
// successful when the endpoint answers with a 2xx status within the probe
// timeout. Cycles never overlap: a manual request ([Monitor.ForceCheck],
// the dashboard "Sync Now" button, or POST /api/check) made while a cycle
// is running queues exactly one follow-up cycle.
//
// # HTTP Surface
//
//   - GET /: dashboard
//   - GET /api/status: latest snapshot with summary figures
//   - POST /api/check: request an immediate cycle
//   - GET /api/sse: Server-Sent Events stream
//   - GET /ws: WebSocket stream; send {"type":"forceCheck"} to request a cycle
//   - GET /metrics: Prometheus metrics
//
// # Architecture
//
//   - internal/poller: HTTP prober and cycle scheduler
//   - internal/aggregate: endpoint state, transitions and snapshots
//   - internal/eventlog: bounded activity log
//   - internal/store: latest snapshot with pub/sub fan-out
//   - internal/server: dashboard, REST, SSE and WebSocket
//   - internal/metrics: Prometheus collectors
//   - internal/notify: log, webhook and command notifiers
//   - dashboard: embedded web UI assets
//   - config: YAML configuration for the CLI
package regionpulse
