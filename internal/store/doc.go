// Package store holds the latest published snapshot and fans new snapshots
// out to live observers.
//
// The main components are:
//
//   - [Store]: Interface for publishing and subscribing to snapshots
//   - [MemoryStore]: In-memory implementation with drop-oldest fan-out
//
// A [MemoryStore] is the aggregator's broadcast sink. The HTTP server reads
// [MemoryStore.Latest] for new connections and subscribes for live updates.
//
// Users of the regionpulse library should not need to interact with this
// package directly.
package store
