package store

import (
	"sync"

	"github.com/jpalmerr/regionpulse/internal/aggregate"
)

// SubscriberBuffer is the channel capacity given to each subscriber.
const SubscriberBuffer = 16

// MemoryStore is an in-memory implementation of [Store].
//
// Subscribers receive snapshots via buffered channels. Sends never block the
// publisher: if a subscriber's buffer is full, its oldest pending snapshot is
// discarded to make room, so a slow observer always converges on the newest
// state.
type MemoryStore struct {
	mu     sync.RWMutex
	latest aggregate.Snapshot

	subMu       sync.Mutex
	subscribers map[chan aggregate.Snapshot]struct{}
}

// NewMemoryStore creates a store whose latest snapshot is initial.
func NewMemoryStore(initial aggregate.Snapshot) *MemoryStore {
	return &MemoryStore{
		latest:      initial,
		subscribers: make(map[chan aggregate.Snapshot]struct{}),
	}
}

// Publish stores snap as the latest snapshot and notifies all subscribers.
func (m *MemoryStore) Publish(snap aggregate.Snapshot) {
	m.mu.Lock()
	m.latest = snap
	m.mu.Unlock()

	m.notifySubscribers(snap)
}

// Latest returns the most recently published snapshot.
func (m *MemoryStore) Latest() aggregate.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// Subscribe creates a new subscription.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan aggregate.Snapshot {
	ch := make(chan aggregate.Snapshot, SubscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan aggregate.Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (m *MemoryStore) SubscriberCount() int {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	return len(m.subscribers)
}

// notifySubscribers delivers snap to every subscriber without blocking.
// subMu is held for the whole fan-out so drop-oldest and send stay atomic
// with respect to Unsubscribe closing the channel.
func (m *MemoryStore) notifySubscribers(snap aggregate.Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for ch := range m.subscribers {
		select {
		case ch <- snap:
			continue
		default:
		}

		// full: drop the oldest pending snapshot to make room
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
