// Package history keeps the bounded journal of recent scan outcomes shown
// to the operator. It is a UI/forensics aid only; nothing in the admission
// path reads it.
package history

import (
	"sync"
	"time"

	"github.com/synapsefest/scan-gate/internal/model"
)

// Log holds the most recent scan outcomes, newest first, capped at a fixed
// size. Append is O(1) amortized: front-insert plus tail-trim. Safe for
// concurrent use.
type Log struct {
	mu    sync.Mutex
	cap   int
	items []model.ScanHistoryItem
	loc   *time.Location
}

// Counts are derived statistics over the journal for one calendar day.
type Counts struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Offline int `json:"offline"`
}

// New returns a Log bounded to capacity items. Day boundaries for Today
// are computed in loc, the event's local time zone.
func New(capacity int, loc *time.Location) *Log {
	if capacity <= 0 {
		capacity = 50
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Log{cap: capacity, loc: loc}
}

// Append records an outcome at the front of the journal, trimming the
// oldest entry once the cap is exceeded.
func (l *Log) Append(item model.ScanHistoryItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append([]model.ScanHistoryItem{item}, l.items...)
	if len(l.items) > l.cap {
		l.items = l.items[:l.cap]
	}
}

// Recent returns up to n items, newest first. n <= 0 returns everything.
func (l *Log) Recent(n int) []model.ScanHistoryItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.items) {
		n = len(l.items)
	}
	out := make([]model.ScanHistoryItem, n)
	copy(out, l.items[:n])
	return out
}

// Today returns the items scanned on the current calendar day in the
// event's time zone, newest first.
func (l *Log) Today() []model.ScanHistoryItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	today := time.Now().In(l.loc).Format("2006-01-02")
	out := make([]model.ScanHistoryItem, 0)
	for _, it := range l.items {
		if it.ScannedAt.In(l.loc).Format("2006-01-02") == today {
			out = append(out, it)
		}
	}
	return out
}

// TodayCounts derives success/failure/offline totals for the current day.
func (l *Log) TodayCounts() Counts {
	var c Counts
	for _, it := range l.Today() {
		c.Total++
		if it.Success {
			c.Success++
		} else {
			c.Failed++
		}
		if it.Offline {
			c.Offline++
		}
	}
	return c
}

// Snapshot copies the journal for persistence.
func (l *Log) Snapshot() []model.ScanHistoryItem {
	return l.Recent(0)
}

// Restore replaces the journal from a persisted snapshot, re-applying the
// cap in case the configured capacity shrank between runs.
func (l *Log) Restore(items []model.ScanHistoryItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(items) > l.cap {
		items = items[:l.cap]
	}
	l.items = make([]model.ScanHistoryItem, len(items))
	copy(l.items, items)
}
