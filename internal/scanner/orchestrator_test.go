package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synapsefest/scan-gate/internal/events"
	"github.com/synapsefest/scan-gate/internal/guard"
	"github.com/synapsefest/scan-gate/internal/history"
	"github.com/synapsefest/scan-gate/internal/localstore"
	"github.com/synapsefest/scan-gate/internal/model"
	"github.com/synapsefest/scan-gate/internal/offline"
	"github.com/synapsefest/scan-gate/internal/remote/remotetest"
	"github.com/synapsefest/scan-gate/internal/repository"
	"github.com/synapsefest/scan-gate/internal/syncer"
	"github.com/synapsefest/scan-gate/internal/ticket"
)

type capturePublisher struct{ got []events.AttendanceRecordedEvent }

func (c *capturePublisher) AttendanceRecorded(_ context.Context, ev events.AttendanceRecordedEvent) error {
	c.got = append(c.got, ev)
	return nil
}

// env bundles a fully wired pipeline over in-memory fakes.
type env struct {
	store  *remotetest.Store
	queue  *offline.Queue
	orch   *Orchestrator
	pub    *capturePublisher
	att    *repository.AttendanceRepo
	online bool
}

func newEnv(t *testing.T, opts Options) *env {
	t.Helper()
	if opts.ResultDisplay == 0 {
		opts.ResultDisplay = 2 * time.Second
	}
	e := &env{store: remotetest.New(), pub: &capturePublisher{}, online: true}
	e.queue = offline.New(localstore.NewMemory())
	e.att = repository.NewAttendanceRepo(e.store)
	regs := repository.NewRegistrationRepo(e.store)
	onlineFn := func() bool { return e.online }
	writer := NewWriter(e.att, e.queue, onlineFn, e.pub)
	e.orch = New(opts, nil, guard.New(5*time.Second), history.New(50, time.UTC), writer, regs, e.att, onlineFn)

	// Standard fixtures: a free day pass, a paid and an unpaid competition
	// entry, and attendee identity records.
	e.store.Seed("attendees", "a-1", map[string]interface{}{
		"synapseId": "SYN-001", "name": "Asha Rao", "email": "asha@example.com", "govIdFragment": "XX1234",
	})
	e.store.Seed("attendees", "a-2", map[string]interface{}{
		"synapseId": "SYN-002", "name": "Dev Patel",
	})
	e.store.Seed("day_passes", "dp-1", map[string]interface{}{"amount": 0.0})
	e.store.Seed("competition_registrations", "cmp-paid", map[string]interface{}{"amount": 250.0, "paymentStatus": "paid"})
	e.store.Seed("competition_registrations", "cmp-due", map[string]interface{}{"amount": 250.0, "paymentStatus": "pending"})
	return e
}

func vol(id string) *model.Volunteer {
	return &model.Volunteer{ID: id, SynapseID: "SYN-" + id, Name: id, Role: model.RoleVolunteer, Active: true}
}

// code builds a scannable string; n varies IssuedAt so repeated scans of
// the same attendee produce distinct raw strings (a fresh physical code)
// unless the test wants the consecutive-frame case.
func code(t *testing.T, sid string, n int, regs ...model.Registration) string {
	t.Helper()
	if len(regs) == 0 {
		regs = []model.Registration{{Type: model.RegistrationDayPass, ID: "dp-1", Name: "Day Pass"}}
	}
	s, err := ticket.Encode(model.TicketPayload{
		SynapseID:     sid,
		GovIDFragment: "XX1234",
		Registrations: regs,
		IssuedAt:      time.Unix(1770000000+int64(n), 0).UTC(),
	})
	require.NoError(t, err)
	return s
}

func TestOnlineFreeScanAdmitsOnce(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()

	res := e.orch.Process(ctx, code(t, "SYN-001", 0), vol("V1"))
	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.False(t, res.Offline)
	assert.Contains(t, res.Message, "Asha Rao")

	assert.Equal(t, 1, e.store.Count("attendance"))
	rec, err := e.att.FindByAttendeeDate(ctx, "SYN-001", time.Now().UTC().Format("2006-01-02"))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "V1", rec.ScannedBy)
	assert.Equal(t, model.PaymentFree, rec.PaymentStatus)
	assert.True(t, rec.PaymentVerified)
	assert.Equal(t, "Asha Rao", rec.Name)
	assert.False(t, rec.OfflineScanned)

	assert.Equal(t, 1, e.orch.SessionScans())
	require.Len(t, e.pub.got, 1)
	assert.Equal(t, "SYN-001", e.pub.got[0].SynapseID)
}

func TestSameCodeAcrossConsecutiveFramesIgnored(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()
	raw := code(t, "SYN-001", 0)

	require.NotNil(t, e.orch.Process(ctx, raw, vol("V1")))
	// The sampler decodes the same symbol ~200ms later.
	assert.Nil(t, e.orch.Process(ctx, raw, vol("V1")))
	assert.Equal(t, 1, e.store.Count("attendance"))
}

func TestCooldownSuppressesRapidRescan(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()

	require.NotNil(t, e.orch.Process(ctx, code(t, "SYN-001", 0), vol("V1")))
	// A freshly issued code for the same attendee within the 5s window:
	// suppressed by the cooldown guard before any check or write runs.
	creates := e.store.Creates
	assert.Nil(t, e.orch.Process(ctx, code(t, "SYN-001", 1), vol("V1")))
	assert.Equal(t, creates, e.store.Creates)
	assert.Equal(t, 1, e.orch.SessionScans())
}

func TestCooldownExpiryAllowsRescan(t *testing.T) {
	e := newEnv(t, Options{ResultDisplay: 10 * time.Millisecond})
	// Shrink the guard window so the test does not sleep for 5s.
	e.orch.guard = guard.New(20 * time.Millisecond)
	ctx := context.Background()

	require.NotNil(t, e.orch.Process(ctx, code(t, "SYN-001", 0), vol("V1")))
	time.Sleep(40 * time.Millisecond)

	res := e.orch.Process(ctx, code(t, "SYN-001", 1), vol("V1"))
	require.NotNil(t, res, "pair may be scanned again after the window")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "Already marked")
}

func TestSameDayRejectionForSecondVolunteer(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()

	require.True(t, e.orch.Process(ctx, code(t, "SYN-001", 0), vol("V1")).Success)

	// V2 scans the same attendee later the same day; cooldown does not
	// apply across volunteers, the same-day check rejects instead.
	res := e.orch.Process(ctx, code(t, "SYN-001", 1), vol("V2"))
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "Already marked")
	// Registrations still surfaced for volunteer context.
	assert.NotNil(t, res.Data)
	assert.Equal(t, 1, e.store.Count("attendance"))
}

func TestInvalidCodeIsGenericFailure(t *testing.T) {
	e := newEnv(t, Options{})
	for _, raw := range []string{"hello", "SYNAPSE:???", "https://example.com/x"} {
		res := e.orch.Process(context.Background(), raw, vol("V1"))
		require.NotNil(t, res)
		assert.False(t, res.Success)
		assert.Equal(t, "Invalid QR code", res.Message)
	}
	assert.Zero(t, e.store.Count("attendance"))
}

func TestSelfScanRejected(t *testing.T) {
	e := newEnv(t, Options{})
	v := vol("V1")
	v.SynapseID = "SYN-001"

	res := e.orch.Process(context.Background(), code(t, "SYN-001", 0), v)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "own ticket")
	assert.Zero(t, e.store.Count("attendance"))
}

func TestUnpaidRegistrationRejected(t *testing.T) {
	e := newEnv(t, Options{})
	raw := code(t, "SYN-002", 0, model.Registration{Type: model.RegistrationCompetition, ID: "cmp-due", Name: "Robo Race"})

	res := e.orch.Process(context.Background(), raw, vol("V1"))
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "payment")
	assert.Zero(t, e.store.Count("attendance"))
}

func TestPaidRegistrationAdmits(t *testing.T) {
	e := newEnv(t, Options{})
	raw := code(t, "SYN-002", 0, model.Registration{Type: model.RegistrationCompetition, ID: "cmp-paid", Name: "Robo Race"})

	res := e.orch.Process(context.Background(), raw, vol("V1"))
	require.NotNil(t, res)
	assert.True(t, res.Success)

	rec, err := e.att.FindByAttendeeDate(context.Background(), "SYN-002", time.Now().UTC().Format("2006-01-02"))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, model.PaymentPaid, rec.PaymentStatus)
	assert.True(t, rec.PaymentVerified)
	assert.Equal(t, model.RegistrationCompetition, rec.EventType)
}

func TestVolunteerScopingFailsClosed(t *testing.T) {
	e := newEnv(t, Options{})
	v := vol("V1")
	v.AllowedEventTypes = []string{model.RegistrationCompetition}

	// Day-pass ticket, competition-only volunteer.
	res := e.orch.Process(context.Background(), code(t, "SYN-001", 0), v)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "not authorized")
	assert.Zero(t, e.store.Count("attendance"))
}

func TestGovIDFragmentMismatchRejected(t *testing.T) {
	e := newEnv(t, Options{})
	raw, err := ticket.Encode(model.TicketPayload{
		SynapseID:     "SYN-001",
		GovIDFragment: "YY9999", // attendee record says XX1234
		Registrations: []model.Registration{{Type: model.RegistrationDayPass, ID: "dp-1"}},
		IssuedAt:      time.Unix(1770000000, 0).UTC(),
	})
	require.NoError(t, err)

	res := e.orch.Process(context.Background(), raw, vol("V1"))
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "government id")
	assert.Zero(t, e.store.Count("attendance"))
}

func TestOfflineScanQueuesThenSyncs(t *testing.T) {
	e := newEnv(t, Options{})
	e.online = false
	e.store.SetOffline(true)
	ctx := context.Background()

	res := e.orch.Process(ctx, code(t, "SYN-002", 0), vol("V1"))
	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.True(t, res.Offline)
	assert.Contains(t, res.Message, "offline")
	assert.Equal(t, 1, e.queue.Len())
	assert.Equal(t, 0, e.store.Count("attendance"), "no remote write while offline")
	assert.Empty(t, e.pub.got, "confirmation event waits for the remote write")

	// Connectivity returns; the sync engine drains the queue.
	e.online = true
	e.store.SetOffline(false)
	engine := syncer.New(syncer.Options{}, e.queue, e.att, localstore.NewMemory(), e.store.Ping, e.pub)
	engine.Drain(ctx, true)

	assert.Zero(t, e.queue.Len())
	assert.Equal(t, 1, e.store.Count("attendance"))
	rec, err := e.att.FindByAttendeeDate(ctx, "SYN-002", time.Now().UTC().Format("2006-01-02"))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.OfflineScanned)
	require.Len(t, e.pub.got, 1)
}

func TestTransientWriteFailureConvertsToQueued(t *testing.T) {
	e := newEnv(t, Options{})
	e.store.FailNextWrites(1)

	res := e.orch.Process(context.Background(), code(t, "SYN-001", 0), vol("V1"))
	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.True(t, res.Offline)
	assert.Equal(t, 1, e.queue.Len())
	assert.Zero(t, e.store.Count("attendance"))
}

func TestHistoryRecordsOutcomes(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()

	e.orch.Process(ctx, code(t, "SYN-001", 0), vol("V1"))
	e.orch.Process(ctx, "garbage", vol("V1"))

	items := e.orch.hist.Recent(0)
	require.Len(t, items, 2)
	assert.False(t, items[0].Success) // newest first
	assert.True(t, items[1].Success)
	assert.Equal(t, "SYN-001", items[1].SynapseID)
}

func TestSamplerHoldsResultForDisplayInterval(t *testing.T) {
	e := newEnv(t, Options{SamplePeriod: 5 * time.Millisecond, ResultDisplay: 300 * time.Millisecond})
	src := NewChanSource(4)
	e.orch.frames = src

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.orch.Start(ctx, vol("V1")))
	defer e.orch.Stop()

	src.C <- code(t, "SYN-001", 0)
	require.Eventually(t, func() bool {
		return e.store.Count("attendance") == 1 && e.orch.State() == StateResult
	}, time.Second, 5*time.Millisecond)

	// A different attendee's code arrives while the first result is still
	// on screen. Sampling is suppressed until the display interval
	// elapses, so no second admission happens yet.
	src.C <- code(t, "SYN-002", 1)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, e.store.Count("attendance"))
	assert.Equal(t, StateResult, e.orch.State())

	// After the display interval the sampler resumes and admits the
	// waiting code.
	require.Eventually(t, func() bool {
		return e.store.Count("attendance") == 2
	}, time.Second, 5*time.Millisecond)
}
