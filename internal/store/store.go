package store

import "github.com/jpalmerr/regionpulse/internal/aggregate"

// Store retains the latest snapshot and fans new ones out to subscribers.
//
// Store implementations must be safe for concurrent access. Store satisfies
// [aggregate.BroadcastSink] through Publish.
type Store interface {
	// Publish replaces the latest snapshot and notifies all subscribers.
	Publish(snap aggregate.Snapshot)

	// Latest returns the most recently published snapshot.
	Latest() aggregate.Snapshot

	// Subscribe returns a channel that receives every published snapshot.
	// Slow consumers lose the oldest buffered snapshots, never the newest.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan aggregate.Snapshot

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan aggregate.Snapshot)
}
