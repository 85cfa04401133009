package syncer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapsefest/scan-gate/internal/events"
	"github.com/synapsefest/scan-gate/internal/localstore"
	"github.com/synapsefest/scan-gate/internal/model"
	"github.com/synapsefest/scan-gate/internal/offline"
	"github.com/synapsefest/scan-gate/internal/remote"
	"github.com/synapsefest/scan-gate/internal/remote/remotetest"
	"github.com/synapsefest/scan-gate/internal/repository"
)

// recordingStore wraps the fake store, capturing the order of create
// attempts and failing selected attendees transiently.
type recordingStore struct {
	remote.Store
	attempts []string
	failFor  map[string]int
}

func (r *recordingStore) Create(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	sid, _ := data["synapseId"].(string)
	r.attempts = append(r.attempts, sid)
	if n := r.failFor[sid]; n > 0 {
		r.failFor[sid] = n - 1
		return "", remotetest.ErrUnavailable
	}
	return r.Store.Create(ctx, collection, data)
}

type capturePublisher struct{ got []events.AttendanceRecordedEvent }

func (c *capturePublisher) AttendanceRecorded(_ context.Context, ev events.AttendanceRecordedEvent) error {
	c.got = append(c.got, ev)
	return nil
}

func newEngine(t *testing.T, rs remote.Store) (*Engine, *offline.Queue, *capturePublisher) {
	t.Helper()
	q := offline.New(localstore.NewMemory())
	pub := &capturePublisher{}
	e := New(Options{RetrySoftLimit: 10}, q, repository.NewAttendanceRepo(rs), localstore.NewMemory(),
		rs.Ping, pub)
	return e, q, pub
}

func enqueue(t *testing.T, q *offline.Queue, sids ...string) {
	t.Helper()
	for _, sid := range sids {
		_, err := q.Enqueue(context.Background(), model.AttendanceRecord{
			SynapseID: sid, Date: "2026-02-14", Attended: true, ScannedBy: "V1",
		})
		require.NoError(t, err)
	}
}

func TestDrainProcessesInEnqueueOrder(t *testing.T) {
	fake := remotetest.New()
	rs := &recordingStore{Store: fake}
	e, q, _ := newEngine(t, rs)
	enqueue(t, q, "A", "B", "C")

	e.Drain(context.Background(), false)

	assert.Equal(t, []string{"A", "B", "C"}, rs.attempts)
	assert.Zero(t, q.Len())
	assert.Equal(t, StateSynced, e.State())
	assert.Equal(t, 3, fake.Count("attendance"))
}

func TestPartialSyncLeavesOnlyFailedItem(t *testing.T) {
	fake := remotetest.New()
	rs := &recordingStore{Store: fake, failFor: map[string]int{"B": 1}}
	e, q, _ := newEngine(t, rs)
	enqueue(t, q, "A", "B", "C")

	e.Drain(context.Background(), false)

	// A and C succeeded, B stays queued with one retry, and the engine
	// rests in sync-failed rather than treating partial progress as fatal.
	items := q.List()
	require.Len(t, items, 1)
	assert.Equal(t, "B", items[0].Record.SynapseID)
	assert.Equal(t, 1, items[0].Retries)
	assert.NotEmpty(t, items[0].LastError)
	assert.Equal(t, StateSyncFailed, e.State())
	assert.Equal(t, 2, fake.Count("attendance"))

	// Next pass reconciles.
	e.Drain(context.Background(), false)
	assert.Zero(t, q.Len())
	assert.Equal(t, StateSynced, e.State())
}

func TestAlreadyMarkedDuringDrainIsReconciled(t *testing.T) {
	fake := remotetest.New()
	e, q, pub := newEngine(t, fake)

	// Another device admitted the attendee while we were offline.
	fake.Seed("attendance", "remote-1", map[string]interface{}{
		"synapseId": "SYN-009", "date": "2026-02-14", "attended": true, "scannedBy": "V2",
	})
	enqueue(t, q, "SYN-009")

	e.Drain(context.Background(), false)

	assert.Zero(t, q.Len(), "alreadyMarked dequeues, it is not a failure")
	assert.Equal(t, StateSynced, e.State())
	assert.Equal(t, 1, fake.Count("attendance"), "no duplicate created")
	assert.Empty(t, pub.got, "no event for a write that did not happen")
}

func TestDrainedRecordsCarryOfflineFlag(t *testing.T) {
	fake := remotetest.New()
	e, q, pub := newEngine(t, fake)
	enqueue(t, q, "SYN-010")

	e.Drain(context.Background(), false)

	rec, err := repository.NewAttendanceRepo(fake).FindByAttendeeDate(context.Background(), "SYN-010", "2026-02-14")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.OfflineScanned)
	require.Len(t, pub.got, 1)
	assert.True(t, pub.got[0].OfflineScanned)
}

func TestSoftLimitedItemsSkippedUnlessForced(t *testing.T) {
	fake := remotetest.New()
	rs := &recordingStore{Store: fake, failFor: map[string]int{"DEAD": 1000}}
	q := offline.New(localstore.NewMemory())
	e := New(Options{RetrySoftLimit: 2}, q, repository.NewAttendanceRepo(rs), localstore.NewMemory(), rs.Ping, events.Nop{})
	enqueue(t, q, "DEAD")

	ctx := context.Background()
	e.Drain(ctx, false)
	e.Drain(ctx, false)
	require.Equal(t, 2, q.List()[0].Retries)

	// At the soft limit, timer-driven passes skip the item without
	// attempting it; it is still never dropped.
	before := len(rs.attempts)
	e.Drain(ctx, false)
	assert.Equal(t, before, len(rs.attempts))
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, StateSyncFailed, e.State())

	// A forced pass (connectivity regained, manual trigger) retries it.
	e.Drain(ctx, true)
	assert.Equal(t, before+1, len(rs.attempts))
	assert.Equal(t, 1, q.Len())
}

func TestOverlappingPassIsIgnored(t *testing.T) {
	fake := remotetest.New()
	e, q, _ := newEngine(t, fake)
	enqueue(t, q, "A")

	// Force the engine into syncing and verify a second pass bails out
	// without touching the queue.
	require.True(t, e.beginPass())
	e.Drain(context.Background(), false)
	assert.Equal(t, 1, q.Len())

	e.endPass(1, "still pending")
	e.Drain(context.Background(), false)
	assert.Zero(t, q.Len())
}

func TestProbeTracksConnectivity(t *testing.T) {
	fake := remotetest.New()
	e, _, _ := newEngine(t, fake)
	ctx := context.Background()

	assert.False(t, e.Online())
	regained := e.probeOnce(ctx)
	assert.True(t, regained)
	assert.True(t, e.Online())

	fake.SetOffline(true)
	assert.False(t, e.probeOnce(ctx))
	assert.False(t, e.Online())

	fake.SetOffline(false)
	assert.True(t, e.probeOnce(ctx))
}

func TestStatusSummary(t *testing.T) {
	fake := remotetest.New()
	e, q, _ := newEngine(t, fake)
	enqueue(t, q, "A", "B")

	s := e.Status()
	assert.Equal(t, StateIdle, s.State)
	assert.Equal(t, 2, s.Pending)

	e.Drain(context.Background(), false)
	s = e.Status()
	assert.Equal(t, StateSynced, s.State)
	assert.Zero(t, s.Pending)
	assert.False(t, s.LastPass.IsZero())
}

func TestDrainManyKeepsOrderUnderFailures(t *testing.T) {
	fake := remotetest.New()
	failing := map[string]int{}
	var want []string
	for i := 0; i < 8; i++ {
		sid := fmt.Sprintf("SYN-%03d", i)
		want = append(want, sid)
		if i%3 == 1 {
			failing[sid] = 1
		}
	}
	rs := &recordingStore{Store: fake, failFor: failing}
	e, q, _ := newEngine(t, rs)
	enqueue(t, q, want...)

	e.Drain(context.Background(), false)
	assert.Equal(t, want, rs.attempts, "first pass attempts every item in order")
	assert.Equal(t, StateSyncFailed, e.State())

	e.Drain(context.Background(), false)
	assert.Zero(t, q.Len())
	assert.Equal(t, StateSynced, e.State())
}

// cancelAfterCreate cancels its context as soon as one record lands,
// simulating shutdown arriving mid-pass.
type cancelAfterCreate struct {
	remote.Store
	cancel context.CancelFunc
}

func (s *cancelAfterCreate) Create(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	id, err := s.Store.Create(ctx, collection, data)
	s.cancel()
	return id, err
}

func TestBootProbeDrainsRestoredQueue(t *testing.T) {
	fake := remotetest.New()
	e, q, _ := newEngine(t, fake)
	enqueue(t, q, "A", "B")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	// The boot probe sees a connected device and drains the restored
	// queue immediately; nothing waits out the first sync interval.
	require.Eventually(t, func() bool {
		return q.Len() == 0 && e.State() == StateSynced
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, fake.Count("attendance"))
}

func TestCancelledPassCountsUnprocessedTail(t *testing.T) {
	fake := remotetest.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rs := &cancelAfterCreate{Store: fake, cancel: cancel}
	q := offline.New(localstore.NewMemory())
	e := New(Options{RetrySoftLimit: 10, ItemDelay: time.Millisecond}, q,
		repository.NewAttendanceRepo(rs), localstore.NewMemory(), rs.Ping, &capturePublisher{})
	enqueue(t, q, "A", "B", "C")

	e.Drain(ctx, false)

	// A settled before cancellation; B and C were never attempted and
	// stay queued. The pass must not read as synced with work remaining.
	assert.Equal(t, 1, fake.Count("attendance"))
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, StateSyncFailed, e.State())
	st := e.Status()
	assert.Equal(t, 2, st.Pending)
	assert.NotEmpty(t, st.LastError)
}
