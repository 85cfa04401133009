package scanner

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/synapsefest/scan-gate/internal/events"
	"github.com/synapsefest/scan-gate/internal/model"
	"github.com/synapsefest/scan-gate/internal/offline"
	"github.com/synapsefest/scan-gate/internal/repository"
)

// WriteOutcome is the result of one attendance write attempt.
type WriteOutcome int

const (
	// OutcomeCreated: the remote store confirmed a new admission record.
	OutcomeCreated WriteOutcome = iota
	// OutcomeAlreadyMarked: a record for (attendee, date) already exists.
	OutcomeAlreadyMarked
	// OutcomeQueued: the write was converted into an offline queue item,
	// either because the device is offline or because the remote call
	// failed transiently.
	OutcomeQueued
)

// Writer is the single write path for admissions. Every admission, online
// or offline, goes through Mark; nothing else in the scanner creates
// attendance records. The (attendee, date) invariant is enforced by the
// repo's check-then-write; the writer adds the offline conversion and the
// confirmation event.
type Writer struct {
	attendance *repository.AttendanceRepo
	queue      *offline.Queue
	online     func() bool
	publish    events.Publisher
}

// NewWriter wires the write path. online reports current connectivity as
// tracked by the sync engine's probe; publish may be events.Nop{}.
func NewWriter(attendance *repository.AttendanceRepo, queue *offline.Queue, online func() bool, publish events.Publisher) *Writer {
	if publish == nil {
		publish = events.Nop{}
	}
	return &Writer{attendance: attendance, queue: queue, online: online, publish: publish}
}

// Mark attempts the admission write. Offline or transiently failing
// writes are enqueued, never dropped and never retried synchronously; the
// returned outcome tells the orchestrator which feedback to show. Only a
// failure to persist the queue item itself is returned as an error.
func (w *Writer) Mark(ctx context.Context, rec *model.AttendanceRecord) (WriteOutcome, error) {
	if !w.online() {
		if w.queued(rec.SynapseID, rec.Date) {
			return OutcomeAlreadyMarked, nil
		}
		rec.OfflineScanned = true
		if _, err := w.queue.Enqueue(ctx, *rec); err != nil {
			return 0, err
		}
		return OutcomeQueued, nil
	}

	err := w.attendance.Mark(ctx, rec)
	if err == nil {
		w.emit(ctx, rec)
		return OutcomeCreated, nil
	}
	if errors.Is(err, repository.ErrAlreadyMarked) {
		return OutcomeAlreadyMarked, nil
	}

	// Transient infrastructure failure while nominally online: convert the
	// attempt into a queue item and report success-pending.
	log.Printf("writer: remote write failed, queuing for sync: %v", err)
	if w.queued(rec.SynapseID, rec.Date) {
		return OutcomeAlreadyMarked, nil
	}
	rec.OfflineScanned = true
	if _, qerr := w.queue.Enqueue(ctx, *rec); qerr != nil {
		return 0, qerr
	}
	return OutcomeQueued, nil
}

// queued reports whether an admission for (attendee, date) is already
// waiting in the offline queue. A rescan after the cooldown expires must
// not enqueue a second item or tell the operator "Admitted" twice.
func (w *Writer) queued(synapseID, date string) bool {
	for _, it := range w.queue.List() {
		if it.Record.SynapseID == synapseID && it.Record.Date == date {
			return true
		}
	}
	return false
}

// emit publishes the confirmation event; failures are logged by the
// publisher and ignored here.
func (w *Writer) emit(ctx context.Context, rec *model.AttendanceRecord) {
	_ = w.publish.AttendanceRecorded(ctx, events.AttendanceRecordedEvent{
		AttendanceID:   rec.ID,
		SynapseID:      rec.SynapseID,
		Name:           rec.Name,
		Date:           rec.Date,
		EventID:        rec.EventID,
		EventType:      rec.EventType,
		ScannedBy:      rec.ScannedBy,
		OfflineScanned: rec.OfflineScanned,
		PaymentStatus:  rec.PaymentStatus,
		RecordedAt:     time.Now().UTC().Format(time.RFC3339),
	})
}
