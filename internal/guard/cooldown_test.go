package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCooldown(window time.Duration) (*Cooldown, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)}
	c := New(window)
	c.now = clk.now
	return c, clk
}

func TestCooldownSuppressesWithinWindow(t *testing.T) {
	c, clk := newTestCooldown(5 * time.Second)

	assert.False(t, c.InCooldown("SYN-001", "V1"))
	c.Record("SYN-001", "V1")
	assert.True(t, c.InCooldown("SYN-001", "V1"))

	clk.advance(2 * time.Second)
	assert.True(t, c.InCooldown("SYN-001", "V1"))
	assert.Equal(t, 3*time.Second, c.Remaining("SYN-001", "V1"))

	clk.advance(3*time.Second + time.Millisecond)
	assert.False(t, c.InCooldown("SYN-001", "V1"))
	assert.Zero(t, c.Remaining("SYN-001", "V1"))
}

func TestCooldownIsPerPair(t *testing.T) {
	c, _ := newTestCooldown(5 * time.Second)
	c.Record("SYN-001", "V1")

	// A different volunteer scanning the same attendee is not suppressed,
	// and neither is the same volunteer scanning someone else.
	assert.True(t, c.InCooldown("SYN-001", "V1"))
	assert.False(t, c.InCooldown("SYN-001", "V2"))
	assert.False(t, c.InCooldown("SYN-002", "V1"))
}

func TestRecordRefreshesWindow(t *testing.T) {
	c, clk := newTestCooldown(5 * time.Second)
	c.Record("SYN-001", "V1")
	clk.advance(4 * time.Second)
	c.Record("SYN-001", "V1")
	clk.advance(4 * time.Second)
	// 8s after the first record but only 4s after the refresh.
	assert.True(t, c.InCooldown("SYN-001", "V1"))
}

func TestExpiredEntriesArePrunedLazily(t *testing.T) {
	c, clk := newTestCooldown(5 * time.Second)
	c.Record("SYN-001", "V1")
	c.Record("SYN-002", "V1")
	clk.advance(10 * time.Second)
	c.Record("SYN-003", "V1")

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	_, ok := snap["SYN-003|V1"]
	assert.True(t, ok)
}

func TestRestoreDropsExpired(t *testing.T) {
	c, clk := newTestCooldown(5 * time.Second)
	c.Restore(map[string]time.Time{
		"SYN-001|V1": clk.t.Add(-time.Second),
		"SYN-002|V1": clk.t.Add(-time.Minute),
	})
	assert.True(t, c.InCooldown("SYN-001", "V1"))
	assert.False(t, c.InCooldown("SYN-002", "V1"))
}
