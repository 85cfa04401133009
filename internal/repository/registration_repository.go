package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/synapsefest/scan-gate/internal/model"
	"github.com/synapsefest/scan-gate/internal/remote"
)

const attendeesCollection = "attendees"

// registrationCollections maps a ticket registration type to the
// collection its source document lives in.
var registrationCollections = map[string]string{
	model.RegistrationDayPass:     "day_passes",
	model.RegistrationCompetition: "competition_registrations",
	model.RegistrationEvent:       "event_registrations",
}

// PaymentInfo is the outcome of a payment lookup for one registration.
type PaymentInfo struct {
	Status   string // pending, paid or free
	Verified bool
}

// RegistrationRepo resolves ticket registrations against their source
// collections for the payment gate, and loads attendee identity records.
type RegistrationRepo struct {
	store remote.Store
}

// NewRegistrationRepo returns a RegistrationRepo bound to the given store.
func NewRegistrationRepo(store remote.Store) *RegistrationRepo {
	return &RegistrationRepo{store: store}
}

// PaymentStatus looks up the registration's source document and evaluates
// payment. A zero-amount registration is auto-verified as free; a nonzero
// amount verifies only when paymentStatus is "paid". Unknown registration
// types and missing documents return ErrRegistrationNotFound.
func (r *RegistrationRepo) PaymentStatus(ctx context.Context, reg model.Registration) (PaymentInfo, error) {
	coll, ok := registrationCollections[reg.Type]
	if !ok {
		return PaymentInfo{}, ErrRegistrationNotFound
	}
	doc, err := r.store.Get(ctx, coll, reg.ID)
	if errors.Is(err, remote.ErrNotFound) {
		return PaymentInfo{}, ErrRegistrationNotFound
	}
	if err != nil {
		return PaymentInfo{}, fmt.Errorf("registration lookup: %w", err)
	}

	amount := 0.0
	if v, ok := doc.Data["amount"].(float64); ok {
		amount = v
	}
	if amount == 0 {
		return PaymentInfo{Status: model.PaymentFree, Verified: true}, nil
	}
	status, _ := doc.Data["paymentStatus"].(string)
	if status == "" {
		status = model.PaymentPending
	}
	return PaymentInfo{Status: status, Verified: status == model.PaymentPaid}, nil
}

// GetAttendee loads the identity record for a synapse id. The orchestrator
// uses it to snapshot contact fields onto the attendance record and to
// verify the ticket's gov-id fragment.
func (r *RegistrationRepo) GetAttendee(ctx context.Context, synapseID string) (*model.Attendee, error) {
	docs, err := r.store.Query(ctx, attendeesCollection, map[string]interface{}{"synapseId": synapseID})
	if err != nil {
		return nil, fmt.Errorf("attendee lookup: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrAttendeeNotFound
	}
	raw, err := json.Marshal(docs[0].Data)
	if err != nil {
		return nil, err
	}
	var a model.Attendee
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("attendee decode %s: %w", docs[0].ID, err)
	}
	return &a, nil
}
