// Package syncer drains the offline queue against the remote store. The
// engine is a small state machine (idle, syncing, synced, sync-failed)
// driven by a periodic timer, a connectivity probe and manual triggers.
// Items are drained strictly in enqueue order; one bad item never blocks
// the rest; a pass already running ignores overlapping triggers.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/synapsefest/scan-gate/internal/events"
	"github.com/synapsefest/scan-gate/internal/localstore"
	"github.com/synapsefest/scan-gate/internal/model"
	"github.com/synapsefest/scan-gate/internal/offline"
	"github.com/synapsefest/scan-gate/internal/repository"
)

// Engine states.
const (
	StateIdle       = "idle"
	StateSyncing    = "syncing"
	StateSynced     = "synced"
	StateSyncFailed = "sync-failed"
)

// Options tunes the engine.
//
// Fields:
//  Interval       – period of the timer-driven sync trigger.
//  ProbeInterval  – period of the connectivity probe.
//  ItemDelay      – fixed pause between queue items during a pass, so a
//                   long queue does not hammer the remote store.
//  RetrySoftLimit – items that have failed this many times are skipped on
//                   timer-driven passes and only retried on connectivity
//                   or manual triggers; they are never dropped.
type Options struct {
	Interval       time.Duration
	ProbeInterval  time.Duration
	ItemDelay      time.Duration
	RetrySoftLimit int
}

// Engine owns connectivity state and the queue drain. It never cancels an
// in-flight remote call: stopping the engine only prevents the next
// scheduled pass.
type Engine struct {
	opts       Options
	queue      *offline.Queue
	attendance *repository.AttendanceRepo
	store      localstore.Store
	probe      func(ctx context.Context) error
	publish    events.Publisher
	now        func() time.Time

	mu        sync.Mutex
	state     string
	online    bool
	lastPass  time.Time
	lastError string

	trigger chan struct{}
}

// New wires an Engine. probe is the remote store's Ping; publish may be
// events.Nop{}.
func New(opts Options, queue *offline.Queue, attendance *repository.AttendanceRepo, store localstore.Store, probe func(ctx context.Context) error, publish events.Publisher) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = 5 * time.Second
	}
	if opts.RetrySoftLimit <= 0 {
		opts.RetrySoftLimit = 10
	}
	if publish == nil {
		publish = events.Nop{}
	}
	return &Engine{
		opts:       opts,
		queue:      queue,
		attendance: attendance,
		store:      store,
		probe:      probe,
		publish:    publish,
		now:        time.Now,
		state:      StateIdle,
		trigger:    make(chan struct{}, 1),
	}
}

// Online reports the last observed connectivity. The orchestrator and the
// attendance writer consult it to choose the direct or queued write path.
func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// State returns the engine's state machine position.
func (e *Engine) State() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Status summarizes the engine for the UI and for local persistence.
func (e *Engine) Status() model.SyncSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.SyncSummary{
		State:     e.state,
		Pending:   e.queue.Len(),
		LastPass:  e.lastPass,
		LastError: e.lastError,
	}
}

// TriggerNow requests a full pass (soft-limited items included). The
// request is coalesced: if a trigger is already pending, this is a no-op.
func (e *Engine) TriggerNow() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Run drives the engine until ctx is cancelled. Cancellation only stops
// scheduling; a pass in progress finishes its current item.
func (e *Engine) Run(ctx context.Context) {
	// The boot probe is a connectivity-regained edge like any other: a
	// queue restored from disk on a connected device drains right away
	// instead of waiting out the first sync interval.
	if e.probeOnce(ctx) {
		e.Drain(ctx, true)
	}

	syncTick := time.NewTicker(e.opts.Interval)
	probeTick := time.NewTicker(e.opts.ProbeInterval)
	defer syncTick.Stop()
	defer probeTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-probeTick.C:
			if e.probeOnce(ctx) {
				// Connectivity regained: drain everything.
				e.Drain(ctx, true)
			}
		case <-syncTick.C:
			if e.Online() {
				e.Drain(ctx, false)
			}
		case <-e.trigger:
			e.probeOnce(ctx)
			if e.Online() {
				e.Drain(ctx, true)
			}
		}
	}
}

// probeOnce pings the remote store and updates connectivity. It returns
// true only on an offline-to-online transition.
func (e *Engine) probeOnce(ctx context.Context) bool {
	err := e.probe(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	was := e.online
	e.online = err == nil
	if !was && e.online {
		log.Printf("syncer: connectivity regained")
		return true
	}
	if was && !e.online {
		log.Printf("syncer: connectivity lost: %v", err)
	}
	return false
}

// Drain performs one sync pass over the queue, strictly in enqueue order.
// force retries soft-limited items as well. Overlapping calls are
// rejected while a pass is running.
func (e *Engine) Drain(ctx context.Context, force bool) {
	if !e.beginPass() {
		return
	}

	items := e.queue.List()
	remaining := 0
	var passErr string
	for i, item := range items {
		if !force && item.Retries >= e.opts.RetrySoftLimit {
			remaining++
			continue
		}
		rec := item.Record
		rec.OfflineScanned = true
		err := e.attendance.Mark(ctx, &rec)
		switch {
		case err == nil:
			e.emit(ctx, rec)
			if derr := e.queue.Dequeue(ctx, item.LocalID); derr != nil {
				log.Printf("syncer: dequeue %s: %v", item.LocalID, derr)
			}
		case errors.Is(err, repository.ErrAlreadyMarked):
			// Already reconciled remotely (raced by another device or an
			// earlier retry of this item). Not a failure.
			if derr := e.queue.Dequeue(ctx, item.LocalID); derr != nil {
				log.Printf("syncer: dequeue %s: %v", item.LocalID, derr)
			}
		default:
			log.Printf("syncer: item %s failed (attempt %d): %v", item.LocalID, item.Retries+1, err)
			if merr := e.queue.MarkRetry(ctx, item.LocalID, err); merr != nil {
				log.Printf("syncer: mark retry %s: %v", item.LocalID, merr)
			}
			remaining++
			passErr = err.Error()
		}
		if e.opts.ItemDelay > 0 && i < len(items)-1 {
			select {
			case <-ctx.Done():
				// Stop scheduling further items; the one just written is
				// already settled. The unprocessed tail is still queued,
				// so count it or the pass would read as synced.
				if passErr == "" {
					passErr = ctx.Err().Error()
				}
				e.endPass(e.queue.Len(), passErr)
				return
			case <-time.After(e.opts.ItemDelay):
			}
		}
	}
	e.endPass(remaining, passErr)
}

// beginPass transitions idle/synced/sync-failed -> syncing; a pass
// already running makes it return false.
func (e *Engine) beginPass() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateSyncing {
		return false
	}
	e.state = StateSyncing
	return true
}

// endPass records the outcome: synced when the queue emptied, otherwise
// sync-failed, which is a valid resting state retried on the next trigger.
func (e *Engine) endPass(remaining int, passErr string) {
	e.mu.Lock()
	if remaining == 0 {
		e.state = StateSynced
		e.lastError = ""
	} else {
		e.state = StateSyncFailed
		e.lastError = passErr
	}
	e.lastPass = e.now()
	e.mu.Unlock()
	e.persistStatus()
}

// persistStatus saves the summary to the device store so the UI can show
// sync health across restarts. Failures are logged, never fatal.
func (e *Engine) persistStatus() {
	raw, err := json.Marshal(e.Status())
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.store.Put(ctx, localstore.KeySyncSummary, raw); err != nil {
		log.Printf("syncer: persist status: %v", err)
	}
}

func (e *Engine) emit(ctx context.Context, rec model.AttendanceRecord) {
	_ = e.publish.AttendanceRecorded(ctx, events.AttendanceRecordedEvent{
		AttendanceID:   rec.ID,
		SynapseID:      rec.SynapseID,
		Name:           rec.Name,
		Date:           rec.Date,
		EventID:        rec.EventID,
		EventType:      rec.EventType,
		ScannedBy:      rec.ScannedBy,
		OfflineScanned: true,
		PaymentStatus:  rec.PaymentStatus,
		RecordedAt:     e.now().UTC().Format(time.RFC3339),
	})
}
