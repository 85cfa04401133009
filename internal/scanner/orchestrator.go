package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synapsefest/scan-gate/internal/guard"
	"github.com/synapsefest/scan-gate/internal/history"
	"github.com/synapsefest/scan-gate/internal/model"
	"github.com/synapsefest/scan-gate/internal/repository"
	"github.com/synapsefest/scan-gate/internal/ticket"
)

// Orchestrator states, exposed through the status endpoint.
const (
	StateIdle       = "idle"
	StateDecoding   = "decoding"
	StateValidating = "validating"
	StateWriting    = "writing"
	StateResult     = "result-shown"
)

// FrameSource supplies one camera frame per call, already run through the
// QR symbol detector. NextFrame returns the decoded string and true when
// a symbol was found, or "", false otherwise. Implementations may block
// up to roughly one sample period; they must honor ctx cancellation.
type FrameSource interface {
	NextFrame(ctx context.Context) (string, bool)
}

// Options carries the orchestrator tunables and the station binding.
//
// Fields:
//  SamplePeriod  – delay between frame samples (~200ms).
//  ResultDisplay – how long a result stays on screen; the same-code guard
//                  and the suppressed sampler both key off it (2s).
//  EventID       – optional event this station admits for.
//  EventType     – optional registration type this station admits.
//  Location      – event time zone for calendar-day computation.
type Options struct {
	SamplePeriod  time.Duration
	ResultDisplay time.Duration
	EventID       string
	EventType     string
	Location      *time.Location
}

// Orchestrator sequences the per-scan control flow: decode, cooldown,
// identity and policy checks, the attendance write, history and feedback.
// Exactly one scan is in flight at a time per device: the sampler loop
// does not schedule the next frame until the current scan completes, and
// Process itself is serialized with a mutex for callers arriving through
// the HTTP surface.
type Orchestrator struct {
	opts       Options
	frames     FrameSource
	guard      *guard.Cooldown
	hist       *history.Log
	writer     *Writer
	gate       *PaymentGate
	regs       *repository.RegistrationRepo
	attendance *repository.AttendanceRepo
	online     func() bool
	now        func() time.Time

	scanMu sync.Mutex // serializes Process

	mu           sync.Mutex // guards the fields below
	state        string
	lastCode     string
	lastCodeAt   time.Time
	vol          *model.Volunteer
	running      bool
	stop         chan struct{}
	sessionScans int
}

// New wires an Orchestrator. frames may be nil when the device has no
// camera and scans arrive only through the scan endpoint.
func New(opts Options, frames FrameSource, g *guard.Cooldown, h *history.Log, w *Writer, regs *repository.RegistrationRepo, attendance *repository.AttendanceRepo, online func() bool) *Orchestrator {
	if opts.SamplePeriod <= 0 {
		opts.SamplePeriod = 200 * time.Millisecond
	}
	if opts.ResultDisplay <= 0 {
		opts.ResultDisplay = 2 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Orchestrator{
		opts:       opts,
		frames:     frames,
		guard:      g,
		hist:       h,
		writer:     w,
		gate:       NewPaymentGate(regs),
		regs:       regs,
		attendance: attendance,
		online:     online,
		now:        time.Now,
		state:      StateIdle,
	}
}

// Start begins the sampler loop on behalf of a volunteer (startCamera).
// Returns an error when a session is already running or no frame source
// is wired.
func (o *Orchestrator) Start(ctx context.Context, vol *model.Volunteer) error {
	if o.frames == nil {
		return errors.New("orchestrator: no frame source configured")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return errors.New("orchestrator: scanner already running")
	}
	o.vol = vol
	o.running = true
	o.stop = make(chan struct{})
	go o.run(ctx, o.stop)
	log.Printf("orchestrator: camera started by %s", vol.ID)
	return nil
}

// Stop halts the sampler (stopCamera). An in-flight validate/write is
// never aborted; only the next sample is prevented.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return
	}
	close(o.stop)
	o.running = false
	log.Printf("orchestrator: camera stopped")
}

// Running reports whether the sampler loop is active.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// State returns the current state machine position.
func (o *Orchestrator) State() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// SessionScans returns the number of successful admissions this session.
func (o *Orchestrator) SessionScans() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionScans
}

// run is the fixed-period sampler. A timer, not a ticker: the next frame
// is scheduled only after the current scan finishes, so a slow write can
// never race a second decode on the same device.
func (o *Orchestrator) run(ctx context.Context, stop <-chan struct{}) {
	t := time.NewTimer(o.opts.SamplePeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-t.C:
		}
		o.setState(StateDecoding)
		code, found := o.frames.NextFrame(ctx)
		if found {
			o.mu.Lock()
			vol := o.vol
			o.mu.Unlock()
			if res := o.Process(ctx, code, vol); res != nil {
				// Hold the result on screen: the machine rests in
				// result-shown and no frame is sampled until the
				// display interval elapses.
				t.Reset(o.opts.ResultDisplay)
				continue
			}
		}
		o.setState(StateIdle)
		t.Reset(o.opts.SamplePeriod)
	}
}

// Process runs one raw QR string through the full pipeline on behalf of a
// volunteer. A nil result means the scan was suppressed (same code still
// on screen, or cooldown) and the UI should not change.
func (o *Orchestrator) Process(ctx context.Context, raw string, vol *model.Volunteer) *model.ScanResult {
	if vol == nil {
		return &model.ScanResult{Success: false, Message: "no volunteer session"}
	}
	o.scanMu.Lock()
	defer o.scanMu.Unlock()

	// Same physical code held in front of the camera across consecutive
	// frames: ignore until the result display interval elapses.
	now := o.now()
	o.mu.Lock()
	if raw == o.lastCode && now.Sub(o.lastCodeAt) < o.opts.ResultDisplay {
		o.mu.Unlock()
		return nil
	}
	o.lastCode = raw
	o.lastCodeAt = now
	o.mu.Unlock()

	payload, err := ticket.Decode(raw)
	if err != nil {
		return o.fail(model.TicketPayload{}, "Invalid QR code", nil)
	}

	// Cooldown is checked before any policy work and refreshed on every
	// attempt, whatever the outcome.
	suppressed := o.guard.InCooldown(payload.SynapseID, vol.ID)
	o.guard.Record(payload.SynapseID, vol.ID)
	if suppressed {
		return nil
	}

	o.setState(StateValidating)
	if vol.SynapseID != "" && payload.SynapseID == vol.SynapseID {
		return o.fail(payload, ErrSelfScan.Error(), nil)
	}

	date := now.In(o.opts.Location).Format("2006-01-02")
	rec := model.AttendanceRecord{
		SynapseID:     payload.SynapseID,
		Date:          date,
		Attended:      true,
		ScannedBy:     vol.ID,
		EventID:       o.opts.EventID,
		Registrations: payload.Registrations,
	}

	online := o.online()
	if online {
		if res := o.enrichAndCheck(ctx, payload, &rec); res != nil {
			return res
		}
	}

	reg, ok := pickRegistration(payload.Registrations, o.opts.EventType)
	if !ok {
		return o.fail(payload, "ticket has no registration for this event", nil)
	}
	rec.EventType = reg.Type
	if err := Authorize(vol, o.opts.EventID, reg.Type); err != nil {
		return o.fail(payload, err.Error(), nil)
	}

	if online {
		info, err := o.gate.Verify(ctx, reg)
		switch {
		case errors.Is(err, repository.ErrRegistrationNotFound):
			return o.fail(payload, "registration not found", nil)
		case errors.Is(err, ErrUnpaid):
			return o.fail(payload, err.Error(), nil)
		case err != nil:
			// Transient lookup failure: proceed with payment pending; the
			// write itself will queue if the store stays unreachable.
			log.Printf("orchestrator: payment lookup failed, continuing as pending: %v", err)
			rec.PaymentStatus = model.PaymentPending
		default:
			rec.PaymentStatus = info.Status
			rec.PaymentVerified = info.Verified
		}
	} else {
		rec.PaymentStatus = model.PaymentPending
	}

	o.setState(StateWriting)
	outcome, err := o.writer.Mark(ctx, &rec)
	if err != nil {
		return o.fail(payload, "could not save scan, try again", nil)
	}
	switch outcome {
	case OutcomeAlreadyMarked:
		return o.fail(payload, "Already marked attendance today", payload.Registrations)
	case OutcomeQueued:
		return o.succeed(rec, true, "Admitted (offline) - will sync when connected")
	default:
		msg := "Admitted"
		if rec.Name != "" {
			msg = fmt.Sprintf("Admitted: %s", rec.Name)
		}
		return o.succeed(rec, false, msg)
	}
}

// enrichAndCheck performs the online-only validations: attendee identity
// snapshot, gov-id fragment comparison and the same-day check. A non-nil
// result short-circuits the scan.
func (o *Orchestrator) enrichAndCheck(ctx context.Context, payload model.TicketPayload, rec *model.AttendanceRecord) *model.ScanResult {
	attendee, err := o.regs.GetAttendee(ctx, payload.SynapseID)
	switch {
	case errors.Is(err, repository.ErrAttendeeNotFound):
		return o.fail(payload, "attendee not found", nil)
	case err != nil:
		// Lookup failure is not a policy rejection; continue without the
		// contact snapshot.
		log.Printf("orchestrator: attendee lookup failed: %v", err)
	default:
		if attendee.GovIDFragment != "" && payload.GovIDFragment != "" &&
			attendee.GovIDFragment != payload.GovIDFragment {
			return o.fail(payload, ErrIDMismatch.Error(), nil)
		}
		rec.Name = attendee.Name
		rec.Email = attendee.Email
		rec.Phone = attendee.Phone
	}

	existing, err := o.attendance.FindByAttendeeDate(ctx, payload.SynapseID, rec.Date)
	if err != nil {
		// Could not check; the writer repeats the check before creating.
		log.Printf("orchestrator: same-day pre-check failed: %v", err)
		return nil
	}
	if existing != nil {
		// Surface the registrations so the volunteer still has context.
		return o.fail(payload, "Already marked attendance today", payload.Registrations)
	}
	return nil
}

func (o *Orchestrator) setState(s string) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// fail records a failed outcome in history and returns the result.
func (o *Orchestrator) fail(payload model.TicketPayload, msg string, data interface{}) *model.ScanResult {
	o.setState(StateResult)
	o.hist.Append(model.ScanHistoryItem{
		ID:        uuid.NewString(),
		SynapseID: payload.SynapseID,
		Success:   false,
		Message:   msg,
		ScannedAt: o.now(),
	})
	return &model.ScanResult{Success: false, Message: msg, Data: data}
}

// succeed records a successful outcome, bumps the session counter and
// returns the result.
func (o *Orchestrator) succeed(rec model.AttendanceRecord, offline bool, msg string) *model.ScanResult {
	o.setState(StateResult)
	o.hist.Append(model.ScanHistoryItem{
		ID:        uuid.NewString(),
		SynapseID: rec.SynapseID,
		Name:      rec.Name,
		Success:   true,
		Message:   msg,
		Offline:   offline,
		ScannedAt: o.now(),
	})
	o.mu.Lock()
	o.sessionScans++
	o.mu.Unlock()
	return &model.ScanResult{Success: true, Offline: offline, Message: msg, Data: rec.Registrations}
}
