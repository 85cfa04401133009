package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapsefest/scan-gate/internal/localstore"
	"github.com/synapsefest/scan-gate/internal/model"
	"github.com/synapsefest/scan-gate/internal/offline"
	"github.com/synapsefest/scan-gate/internal/remote/remotetest"
	"github.com/synapsefest/scan-gate/internal/repository"
)

func TestWriterCatchesRaceAtWrite(t *testing.T) {
	store := remotetest.New()
	queue := offline.New(localstore.NewMemory())
	pub := &capturePublisher{}
	w := NewWriter(repository.NewAttendanceRepo(store), queue, func() bool { return true }, pub)
	ctx := context.Background()

	// Another volunteer's write landed after our orchestrator-level
	// pre-check would have passed: the writer's own check still rejects.
	store.Seed("attendance", "other", map[string]interface{}{
		"synapseId": "SYN-001", "date": "2026-02-14", "attended": true, "scannedBy": "V2",
	})

	rec := &model.AttendanceRecord{SynapseID: "SYN-001", Date: "2026-02-14", Attended: true, ScannedBy: "V1"}
	outcome, err := w.Mark(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyMarked, outcome)
	assert.Equal(t, 1, store.Count("attendance"))
	assert.Empty(t, pub.got)
	assert.Zero(t, queue.Len())
}

func TestWriterOfflineSetsFlagBeforeQueueing(t *testing.T) {
	store := remotetest.New()
	queue := offline.New(localstore.NewMemory())
	w := NewWriter(repository.NewAttendanceRepo(store), queue, func() bool { return false }, nil)

	rec := &model.AttendanceRecord{SynapseID: "SYN-001", Date: "2026-02-14", Attended: true, ScannedBy: "V1"}
	outcome, err := w.Mark(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, outcome)

	items := queue.List()
	require.Len(t, items, 1)
	assert.True(t, items[0].Record.OfflineScanned)
}

func TestWriterOfflineRescanDoesNotQueueTwice(t *testing.T) {
	store := remotetest.New()
	queue := offline.New(localstore.NewMemory())
	w := NewWriter(repository.NewAttendanceRepo(store), queue, func() bool { return false }, nil)
	ctx := context.Background()

	rec := &model.AttendanceRecord{SynapseID: "SYN-001", Date: "2026-02-14", Attended: true, ScannedBy: "V1"}
	outcome, err := w.Mark(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, outcome)

	// The same attendee rescanned after the cooldown expired, possibly by
	// a different volunteer. The admission is already pending locally, so
	// the operator must not see a second "Admitted (offline)".
	again := &model.AttendanceRecord{SynapseID: "SYN-001", Date: "2026-02-14", Attended: true, ScannedBy: "V2"}
	outcome, err = w.Mark(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyMarked, outcome)
	assert.Equal(t, 1, queue.Len())

	// A different day for the same attendee still queues.
	nextDay := &model.AttendanceRecord{SynapseID: "SYN-001", Date: "2026-02-15", Attended: true, ScannedBy: "V1"}
	outcome, err = w.Mark(ctx, nextDay)
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, outcome)
	assert.Equal(t, 2, queue.Len())
}
