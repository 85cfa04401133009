package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapsefest/scan-gate/internal/model"
)

func item(id string, success, offline bool, at time.Time) model.ScanHistoryItem {
	return model.ScanHistoryItem{
		ID:        id,
		SynapseID: "SYN-" + id,
		Success:   success,
		Offline:   offline,
		Message:   "ok",
		ScannedAt: at,
	}
}

func TestAppendIsNewestFirstAndBounded(t *testing.T) {
	l := New(3, time.UTC)
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		l.Append(item(fmt.Sprintf("%d", i), true, false, now))
	}

	got := l.Recent(0)
	require.Len(t, got, 3)
	assert.Equal(t, "4", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
	assert.Equal(t, "2", got[2].ID)
}

func TestRecentLimitsCount(t *testing.T) {
	l := New(50, time.UTC)
	now := time.Now().UTC()
	for i := 0; i < 10; i++ {
		l.Append(item(fmt.Sprintf("%d", i), true, false, now))
	}
	assert.Len(t, l.Recent(4), 4)
	assert.Len(t, l.Recent(100), 10)
}

func TestTodayFiltersByEventDay(t *testing.T) {
	l := New(50, time.UTC)
	now := time.Now().UTC()
	l.Append(item("old", true, false, now.Add(-48*time.Hour)))
	l.Append(item("fresh", true, true, now))
	l.Append(item("failed", false, false, now))

	today := l.Today()
	require.Len(t, today, 2)

	c := l.TodayCounts()
	assert.Equal(t, 2, c.Total)
	assert.Equal(t, 1, c.Success)
	assert.Equal(t, 1, c.Failed)
	assert.Equal(t, 1, c.Offline)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	l := New(50, time.UTC)
	now := time.Now().UTC()
	l.Append(item("a", true, false, now))
	l.Append(item("b", false, true, now))

	l2 := New(50, time.UTC)
	l2.Restore(l.Snapshot())
	assert.Equal(t, l.Recent(0), l2.Recent(0))
}
