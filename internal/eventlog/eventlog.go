// Package eventlog provides the bounded activity log shown on the dashboard.
//
// The log keeps the most recent entries first and evicts the oldest entry
// once capacity is reached. Entry IDs are strictly increasing for the life
// of a [Log], so consumers can use them for stable ordering and dedup.
package eventlog

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of entries retained by the dashboard log.
const DefaultCapacity = 10

// Severity classifies a log entry for display.
type Severity string

const (
	// SeverityInfo is a neutral, informational entry.
	SeverityInfo Severity = "info"

	// SeveritySuccess marks a recovery (endpoint came back online).
	SeveritySuccess Severity = "success"

	// SeverityError marks a failure (endpoint went offline).
	SeverityError Severity = "error"
)

// Entry is a single human-readable event.
type Entry struct {
	// ID is unique and strictly increasing within a process run.
	ID int64 `json:"id"`

	// Timestamp is when the entry was appended.
	Timestamp time.Time `json:"timestamp"`

	// Time is Timestamp rendered as a local wall-clock time for display.
	Time string `json:"time"`

	// Message is the human-readable event text.
	Message string `json:"message"`

	// Severity classifies the event.
	Severity Severity `json:"severity"`
}

// Log is a fixed-capacity, newest-first sequence of entries.
//
// Log is safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
	lastID   int64
	now      func() time.Time
}

// New creates a [Log] that retains at most capacity entries.
// A non-positive capacity falls back to [DefaultCapacity].
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		capacity: capacity,
		entries:  make([]Entry, 0, capacity),
		now:      time.Now,
	}
}

// Append inserts a new entry at the head of the log and returns it.
//
// The ID is derived from the wall clock in milliseconds; when two entries
// land in the same millisecond (or the clock steps backwards) the ID is
// bumped to lastID+1 so ordering stays strict.
func (l *Log) Append(message string, severity Severity) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.now()
	id := ts.UnixMilli()
	if id <= l.lastID {
		id = l.lastID + 1
	}
	l.lastID = id

	entry := Entry{
		ID:        id,
		Timestamp: ts,
		Time:      ts.Local().Format("15:04:05"),
		Message:   message,
		Severity:  severity,
	}

	// insert at head, drop the tail once over capacity
	if len(l.entries) < l.capacity {
		l.entries = append(l.entries, Entry{})
	}
	copy(l.entries[1:], l.entries[:len(l.entries)-1])
	l.entries[0] = entry

	return entry
}

// Entries returns a copy of the log, newest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries currently retained.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Capacity returns the maximum number of retained entries.
func (l *Log) Capacity() int {
	return l.capacity
}
