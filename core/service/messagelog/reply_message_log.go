// Package messagelog records inbound and outbound messages for the dashboard.
package messagelog

import (
	"sync"
	"time"

	"autoreply/core/domain"
)

// Log is an append-only, in-memory message record. It has no eviction; read
// methods return copies so callers never observe later appends.
type Log struct {
	mu      sync.RWMutex
	entries []domain.LogEntry
	now     func() time.Time
}

// New creates an empty log.
func New() *Log {
	return &Log{now: time.Now}
}

// NewWithClock creates an empty log that stamps entries with now.
func NewWithClock(now func() time.Time) *Log {
	return &Log{now: now}
}

// Append stamps entry with the current time and stores it. It returns the
// stored entry.
func (l *Log) Append(entry domain.LogEntry) domain.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.Timestamp = l.now()
	l.entries = append(l.entries, entry)
	return entry
}

// Recent returns the last limit entries in chronological order. A limit of
// zero or less returns the whole log.
func (l *Log) Recent(limit int) []domain.LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	start := 0
	if limit > 0 && len(l.entries) > limit {
		start = len(l.entries) - limit
	}
	out := make([]domain.LogEntry, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}

// All returns the complete log.
func (l *Log) All() []domain.LogEntry {
	return l.Recent(0)
}

// Len returns the number of stored entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
