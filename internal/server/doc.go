// Package server provides the HTTP server for the RegionPulse dashboard and API.
//
// This package is internal to RegionPulse and handles all HTTP concerns:
//
//   - Dashboard serving: the embedded HTML/CSS/JS dashboard at "/"
//   - REST API: "/api/status" for the latest snapshot, "/api/check" to
//     request an immediate cycle
//   - Server-Sent Events: real-time snapshots at "/api/sse"
//   - WebSocket: real-time snapshots at "/ws", with forceCheck requests
//     accepted from the client
//   - Prometheus metrics at "/metrics" when instrumentation is configured
//
// Every live observer receives the latest snapshot immediately on connect.
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
