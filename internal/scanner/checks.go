// Package scanner contains the per-scan control flow: the policy gates,
// the attendance writer and the orchestrator state machine that sequences
// them for every decoded frame.
package scanner

import (
	"context"
	"errors"
	"fmt"

	"github.com/synapsefest/scan-gate/internal/model"
	"github.com/synapsefest/scan-gate/internal/repository"
)

// Policy rejection sentinels. These short-circuit the scan before any
// write is attempted and are surfaced to the operator with the specific
// reason; they are never retried automatically.
var (
	ErrSelfScan      = errors.New("volunteers cannot scan their own ticket")
	ErrNotAuthorized = errors.New("not authorized to scan this event")
	ErrUnpaid        = errors.New("registration payment is not verified")
	ErrIDMismatch    = errors.New("government id fragment does not match")
)

// Authorize fails closed: a volunteer with scoping restrictions may only
// scan targets those restrictions name. A volunteer without restrictions
// is authorized for everything.
func Authorize(v *model.Volunteer, eventID, eventType string) error {
	if len(v.AssignedEvents) > 0 && !contains(v.AssignedEvents, eventID) {
		return ErrNotAuthorized
	}
	if len(v.AllowedEventTypes) > 0 && !contains(v.AllowedEventTypes, eventType) {
		return ErrNotAuthorized
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// PaymentGate resolves and verifies payment for the registration being
// admitted. It returns the payment snapshot to stamp onto the attendance
// record, or ErrUnpaid when the registration exists but is not verified.
type PaymentGate struct {
	regs *repository.RegistrationRepo
}

// NewPaymentGate returns a gate reading from the given registration repo.
func NewPaymentGate(regs *repository.RegistrationRepo) *PaymentGate {
	return &PaymentGate{regs: regs}
}

// Verify checks the registration's payment. Lookup failures propagate so
// the caller can distinguish policy rejection from infrastructure error.
func (g *PaymentGate) Verify(ctx context.Context, reg model.Registration) (repository.PaymentInfo, error) {
	info, err := g.regs.PaymentStatus(ctx, reg)
	if err != nil {
		return repository.PaymentInfo{}, err
	}
	if !info.Verified {
		return info, fmt.Errorf("%w (status: %s)", ErrUnpaid, info.Status)
	}
	return info, nil
}

// pickRegistration selects which of the ticket's registrations the scan
// admits. A station bound to an event type admits the first registration
// of that type; an unbound station admits the first registration.
func pickRegistration(regs []model.Registration, eventType string) (model.Registration, bool) {
	if len(regs) == 0 {
		return model.Registration{}, false
	}
	if eventType == "" {
		return regs[0], true
	}
	for _, r := range regs {
		if r.Type == eventType {
			return r, true
		}
	}
	return model.Registration{}, false
}
