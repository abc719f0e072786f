// Package poller provides health probing and cycle scheduling for RegionPulse.
//
// This package is internal to RegionPulse. The main components are:
//
//   - [Client]: HTTP prober with per-request timeouts and connection pooling
//   - [Result]: Outcome of probing a single URL
//   - [Scheduler]: Runs polling cycles on a fixed interval and on demand,
//     never letting two cycles overlap
//
// Users of the regionpulse library should not need to interact with this
// package directly. Configuration is done through the main regionpulse package.
package poller
