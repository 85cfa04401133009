// Package offline holds attendance writes that could not reach the remote
// store. The queue is strictly FIFO: the sync engine drains items in
// enqueue order, retries never change an item's position, and only a
// confirmed remote write (or an operator clearing the queue) removes one.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synapsefest/scan-gate/internal/localstore"
	"github.com/synapsefest/scan-gate/internal/model"
)

// ErrNotFound is returned when no queued item carries the local id.
var ErrNotFound = errors.New("offline: queue item not found")

// Queue is the durable pending-write buffer. Every mutation is persisted
// to the local store before it returns, so a crash between a scan and the
// next sync pass loses nothing. Single device, single writer; the mutex
// only guards against the HTTP surface and the sync engine touching the
// queue at the same time.
type Queue struct {
	mu    sync.Mutex
	store localstore.Store
	items []model.OfflineQueueItem
	now   func() time.Time
}

// New returns a Queue persisting under the standard key of the store.
func New(store localstore.Store) *Queue {
	return &Queue{store: store, now: time.Now}
}

// Load restores the queue from local storage. A missing key means an
// empty queue; corrupted state is surfaced, not silently dropped.
func (q *Queue) Load(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	raw, err := q.store.Get(ctx, localstore.KeyOfflineQueue)
	if errors.Is(err, localstore.ErrNotFound) {
		q.items = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("offline: load queue: %w", err)
	}
	var items []model.OfflineQueueItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("offline: decode queue: %w", err)
	}
	q.items = items
	return nil
}

// Enqueue appends a pending write and returns its local id.
func (q *Queue) Enqueue(ctx context.Context, rec model.AttendanceRecord) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item := model.OfflineQueueItem{
		LocalID:    uuid.NewString(),
		Record:     rec,
		EnqueuedAt: q.now(),
	}
	q.items = append(q.items, item)
	if err := q.persist(ctx); err != nil {
		q.items = q.items[:len(q.items)-1]
		return "", err
	}
	return item.LocalID, nil
}

// Dequeue removes the item with the given local id.
func (q *Queue) Dequeue(ctx context.Context, localID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it.LocalID == localID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return q.persist(ctx)
		}
	}
	return ErrNotFound
}

// MarkRetry increments the item's retry counter and records the error.
// The item keeps its queue position.
func (q *Queue) MarkRetry(ctx context.Context, localID string, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].LocalID == localID {
			q.items[i].Retries++
			if cause != nil {
				q.items[i].LastError = cause.Error()
			}
			return q.persist(ctx)
		}
	}
	return ErrNotFound
}

// List returns a copy of the queue in enqueue order.
func (q *Queue) List() []model.OfflineQueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.OfflineQueueItem, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear drops every pending item. Operator action only.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	return q.persist(ctx)
}

// persist writes the whole queue as one JSON blob. Caller holds the lock.
func (q *Queue) persist(ctx context.Context) error {
	raw, err := json.Marshal(q.items)
	if err != nil {
		return err
	}
	if err := q.store.Put(ctx, localstore.KeyOfflineQueue, raw); err != nil {
		return fmt.Errorf("offline: persist queue: %w", err)
	}
	return nil
}
