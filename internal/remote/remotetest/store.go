// Package remotetest provides an in-memory remote.Store used by tests to
// exercise the scan pipeline without a database, including fault
// injection for transient-failure and offline scenarios.
package remotetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synapsefest/scan-gate/internal/remote"
)

// ErrUnavailable is the transient error returned while the store is
// "offline" or while injected failures remain.
var ErrUnavailable = errors.New("remotetest: store unavailable")

// Store is a map-backed remote.Store. The zero value is not usable; call
// New. All operations honor the Offline flag and the injected failure
// budget, in that order.
type Store struct {
	mu       sync.Mutex
	colls    map[string]map[string]remote.Document
	order    map[string][]string // insertion order per collection
	offline  bool
	failNext int // number of upcoming write ops to fail transiently
	now      time.Time
	Creates  int // total successful Create calls, for race assertions
}

// New returns an empty store with a fixed logical clock.
func New() *Store {
	return &Store{
		colls: make(map[string]map[string]remote.Document),
		order: make(map[string][]string),
		now:   time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC),
	}
}

// SetOffline toggles connectivity: while offline every call, including
// Ping, fails with ErrUnavailable.
func (s *Store) SetOffline(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = v
}

// FailNextWrites makes the next n Create calls fail transiently.
func (s *Store) FailNextWrites(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// Advance moves the server clock, so ScannedAt ordering is controllable.
func (s *Store) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

// Seed inserts a document with a fixed id, bypassing fault injection.
func (s *Store) Seed(collection, id string, data map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(collection, id, data)
}

func (s *Store) put(collection, id string, data map[string]interface{}) {
	if s.colls[collection] == nil {
		s.colls[collection] = make(map[string]remote.Document)
	}
	cp := make(map[string]interface{}, len(data))
	for k, v := range data {
		cp[k] = v
	}
	s.colls[collection][id] = remote.Document{ID: id, Data: cp, CreatedAt: s.now, UpdatedAt: s.now}
	s.order[collection] = append(s.order[collection], id)
}

func (s *Store) Get(_ context.Context, collection, id string) (*remote.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return nil, ErrUnavailable
	}
	doc, ok := s.colls[collection][id]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return &doc, nil
}

func (s *Store) Query(_ context.Context, collection string, filter map[string]interface{}) ([]remote.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return nil, ErrUnavailable
	}
	var out []remote.Document
	for _, id := range s.order[collection] {
		doc, ok := s.colls[collection][id]
		if !ok {
			continue // deleted
		}
		match := true
		for k, want := range filter {
			if fmt.Sprintf("%v", doc.Data[k]) != fmt.Sprintf("%v", want) {
				match = false
				break
			}
		}
		if match {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *Store) Create(_ context.Context, collection string, data map[string]interface{}) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return "", ErrUnavailable
	}
	if s.failNext > 0 {
		s.failNext--
		return "", ErrUnavailable
	}
	id := uuid.NewString()
	s.put(collection, id, data)
	s.Creates++
	return id, nil
}

func (s *Store) Update(_ context.Context, collection, id string, patch map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return ErrUnavailable
	}
	doc, ok := s.colls[collection][id]
	if !ok {
		return remote.ErrNotFound
	}
	for k, v := range patch {
		doc.Data[k] = v
	}
	doc.UpdatedAt = s.now
	s.colls[collection][id] = doc
	return nil
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return ErrUnavailable
	}
	if _, ok := s.colls[collection][id]; !ok {
		return remote.ErrNotFound
	}
	delete(s.colls[collection], id)
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return ErrUnavailable
	}
	return nil
}

// Count returns how many documents currently exist in a collection.
func (s *Store) Count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.colls[collection])
}
