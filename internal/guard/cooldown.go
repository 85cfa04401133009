// Package guard implements the duplicate-scan cooldown. The camera decode
// loop samples frames every ~200ms, so the same physical QR code is decoded
// dozens of times while held in front of the camera; the guard suppresses
// those repeats per (attendee, volunteer) pair for a short window. It is a
// throughput guard only: the at-most-once-per-day guarantee lives in the
// attendance writer, never here.
package guard

import (
	"sync"
	"time"
)

// Cooldown tracks the most recent scan attempt per (attendee, volunteer)
// pair. Entries expire after the configured window and are pruned lazily
// on access. Safe for concurrent use.
type Cooldown struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]time.Time
	now     func() time.Time
}

// New returns a Cooldown with the given suppression window.
func New(window time.Duration) *Cooldown {
	return &Cooldown{
		window:  window,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func key(attendeeID, volunteerID string) string {
	return attendeeID + "|" + volunteerID
}

// Record stores or refreshes the pair's last-attempt timestamp. Called on
// every scan attempt regardless of the scan's outcome.
func (c *Cooldown) Record(attendeeID, volunteerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune()
	c.entries[key(attendeeID, volunteerID)] = c.now()
}

// InCooldown reports whether the pair was recorded within the window.
func (c *Cooldown) InCooldown(attendeeID, volunteerID string) bool {
	return c.Remaining(attendeeID, volunteerID) > 0
}

// Remaining returns how long the pair stays suppressed, or zero when the
// pair is not in cooldown.
func (c *Cooldown) Remaining(attendeeID, volunteerID string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune()
	at, ok := c.entries[key(attendeeID, volunteerID)]
	if !ok {
		return 0
	}
	left := c.window - c.now().Sub(at)
	if left < 0 {
		return 0
	}
	return left
}

// Snapshot returns a copy of the live entries, used when persisting local
// state across a scanner restart.
func (c *Cooldown) Snapshot() map[string]time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune()
	out := make(map[string]time.Time, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Restore replaces the entry map, dropping anything already expired.
func (c *Cooldown) Restore(entries map[string]time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]time.Time, len(entries))
	for k, v := range entries {
		c.entries[k] = v
	}
	c.prune()
}

// prune drops expired entries. Caller must hold the lock.
func (c *Cooldown) prune() {
	cutoff := c.now().Add(-c.window)
	for k, at := range c.entries {
		if at.Before(cutoff) {
			delete(c.entries, k)
		}
	}
}
