package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/synapsefest/scan-gate/internal/model"
	"github.com/synapsefest/scan-gate/internal/remote"
)

const volunteersCollection = "volunteers"

// VolunteerRepo reads volunteer documents. Volunteers are owned by the
// admin back office; the scanner only ever reads them, at login and when
// stamping scannedBy onto attendance records.
type VolunteerRepo struct {
	store remote.Store
}

// NewVolunteerRepo returns a VolunteerRepo bound to the given store.
func NewVolunteerRepo(store remote.Store) *VolunteerRepo {
	return &VolunteerRepo{store: store}
}

// GetByID fetches a volunteer by document id.
func (r *VolunteerRepo) GetByID(ctx context.Context, id string) (*model.Volunteer, error) {
	doc, err := r.store.Get(ctx, volunteersCollection, id)
	if errors.Is(err, remote.ErrNotFound) {
		return nil, ErrVolunteerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("volunteer lookup: %w", err)
	}
	return docToVolunteer(*doc)
}

// GetByUserID finds the volunteer linked to an auth-provider user id.
func (r *VolunteerRepo) GetByUserID(ctx context.Context, userID string) (*model.Volunteer, error) {
	docs, err := r.store.Query(ctx, volunteersCollection, map[string]interface{}{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("volunteer lookup: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrVolunteerNotFound
	}
	return docToVolunteer(docs[0])
}

// IsVolunteer reports whether the user id maps to an active volunteer.
func (r *VolunteerRepo) IsVolunteer(ctx context.Context, userID string) (bool, error) {
	v, err := r.GetByUserID(ctx, userID)
	if err == ErrVolunteerNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v.Active, nil
}

func docToVolunteer(d remote.Document) (*model.Volunteer, error) {
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return nil, err
	}
	var v model.Volunteer
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("volunteer decode %s: %w", d.ID, err)
	}
	v.ID = d.ID
	return &v, nil
}
