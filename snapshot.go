package regionpulse

import (
	"github.com/jpalmerr/regionpulse/internal/aggregate"
	"github.com/jpalmerr/regionpulse/internal/eventlog"
)

// Snapshot is the aggregate result of one completed polling cycle: the main
// endpoint's status, every region's status and counters, and the activity
// log (newest first).
//
// Snapshots passed to callbacks are shared and must be treated as read-only.
type Snapshot = aggregate.Snapshot

// MainStatus is the published status of the main endpoint.
type MainStatus = aggregate.MainStatus

// RegionStatus is the published status of a region, including its check
// counters and uptime percentage.
type RegionStatus = aggregate.RegionStatus

// Summary holds network-wide figures computed by [Snapshot.Summary].
type Summary = aggregate.Summary

// LogEntry is one activity log record.
type LogEntry = eventlog.Entry

// Severity classifies a [LogEntry].
type Severity = eventlog.Severity

// Log entry severities.
const (
	SeverityInfo    = eventlog.SeverityInfo
	SeveritySuccess = eventlog.SeveritySuccess
	SeverityError   = eventlog.SeverityError
)
