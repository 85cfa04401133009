package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/synapsefest/scan-gate/internal/model"
	"github.com/synapsefest/scan-gate/internal/remote"
)

const attendanceCollection = "attendance"

// AttendanceRepo owns the attendance collection: the check-then-write
// admission path and the administrative dedup sweep. The at-most-one
// admission per (attendee, date) invariant is enforced optimistically:
// Mark queries for an existing record and then creates, as two separate
// remote calls. Two volunteers inside the same round-trip window can both
// pass the check; that race is accepted as a rare, bounded failure mode
// and reconciled by RemoveDuplicates rather than paid for with a
// distributed lock or a remote unique constraint.
type AttendanceRepo struct {
	store remote.Store
}

// NewAttendanceRepo returns an AttendanceRepo bound to the given store.
func NewAttendanceRepo(store remote.Store) *AttendanceRepo {
	return &AttendanceRepo{store: store}
}

// FindByAttendeeDate returns the attended record for the pair, or nil when
// none exists. Transport failures are returned as-is so callers can tell
// "no record" from "could not check".
func (r *AttendanceRepo) FindByAttendeeDate(ctx context.Context, synapseID, date string) (*model.AttendanceRecord, error) {
	docs, err := r.store.Query(ctx, attendanceCollection, map[string]interface{}{
		"synapseId": synapseID,
		"date":      date,
		"attended":  true,
	})
	if err != nil {
		return nil, fmt.Errorf("attendance lookup: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	rec, err := docToRecord(docs[0])
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Mark performs the admission write: check for an existing (attendee,
// date) record, reject with ErrAlreadyMarked when found, otherwise create.
// On success the created document id is written back into rec.ID.
func (r *AttendanceRepo) Mark(ctx context.Context, rec *model.AttendanceRecord) error {
	existing, err := r.FindByAttendeeDate(ctx, rec.SynapseID, rec.Date)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyMarked
	}
	data, err := recordToDoc(rec)
	if err != nil {
		return err
	}
	id, err := r.store.Create(ctx, attendanceCollection, data)
	if err != nil {
		return fmt.Errorf("attendance create: %w", err)
	}
	rec.ID = id
	return nil
}

// ListByDate returns every attended record for a calendar date, ordered by
// the server-assigned creation time.
func (r *AttendanceRepo) ListByDate(ctx context.Context, date string) ([]model.AttendanceRecord, error) {
	docs, err := r.store.Query(ctx, attendanceCollection, map[string]interface{}{
		"date":     date,
		"attended": true,
	})
	if err != nil {
		return nil, fmt.Errorf("attendance list: %w", err)
	}
	out := make([]model.AttendanceRecord, 0, len(docs))
	for _, d := range docs {
		rec, err := docToRecord(d)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

// RemoveDuplicates is the administrative dedup sweep over one calendar
// date. Records are grouped by attendee; within each group the earliest
// scannedAt survives and the rest are deleted. Returns the number of
// deleted records.
func (r *AttendanceRepo) RemoveDuplicates(ctx context.Context, date string) (int, error) {
	docs, err := r.store.Query(ctx, attendanceCollection, map[string]interface{}{
		"date":     date,
		"attended": true,
	})
	if err != nil {
		return 0, fmt.Errorf("dedup query: %w", err)
	}
	byAttendee := make(map[string][]remote.Document)
	for _, d := range docs {
		sid, _ := d.Data["synapseId"].(string)
		if sid == "" {
			continue
		}
		byAttendee[sid] = append(byAttendee[sid], d)
	}
	removed := 0
	for _, group := range byAttendee {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return group[i].CreatedAt.Before(group[j].CreatedAt)
		})
		for _, dup := range group[1:] {
			if err := r.store.Delete(ctx, attendanceCollection, dup.ID); err != nil {
				return removed, fmt.Errorf("dedup delete %s: %w", dup.ID, err)
			}
			removed++
		}
	}
	return removed, nil
}

// docToRecord converts a raw document into a typed record via a JSON
// round-trip, ignoring unknown fields. The server-assigned creation time
// becomes ScannedAt.
func docToRecord(d remote.Document) (*model.AttendanceRecord, error) {
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return nil, err
	}
	var rec model.AttendanceRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("attendance decode %s: %w", d.ID, err)
	}
	rec.ID = d.ID
	rec.ScannedAt = d.CreatedAt
	return &rec, nil
}

// recordToDoc flattens a record into a schemaless document body. Server
// fields (id, scannedAt) are stripped; the store assigns them.
func recordToDoc(rec *model.AttendanceRecord) (map[string]interface{}, error) {
	clean := *rec
	clean.ID = ""
	clean.ScannedAt = time.Time{}
	raw, err := json.Marshal(clean)
	if err != nil {
		return nil, err
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}
