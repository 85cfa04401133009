package model

import "time"

// Registration types accepted on a ticket. A single ticket may carry any
// mix of these; the scanner only cares about the type when evaluating a
// volunteer's allowed_event_types restriction.
const (
	RegistrationDayPass     = "day-pass"
	RegistrationCompetition = "competition"
	RegistrationEvent       = "event"
)

// Registration is one entitlement printed into the ticket QR code.
//
// Fields:
//  Type – one of day-pass, competition, event.
//  ID   – identifier of the registration in its source collection.
//  Name – human-readable label shown to the volunteer.
type Registration struct {
	Type string `json:"type"` // registration type (day-pass/competition/event)
	ID   string `json:"id"`   // id in the source collection
	Name string `json:"name"` // display label
}

// TicketPayload is the decoded content of an attendee's QR code. It is
// produced once by the issuing system at registration time and treated as
// immutable by the scanner: nothing in the scan pipeline ever mutates a
// decoded payload.
//
// Fields:
//  SynapseID     – attendee identifier across the festival systems.
//  GovIDFragment – truncated government-ID fragment used as a secondary
//                  identity check against the attendee record.
//  Registrations – ordered list of entitlements carried by the ticket.
//  IssuedAt      – when the ticket was issued.
type TicketPayload struct {
	SynapseID     string         `json:"synapseId"`
	GovIDFragment string         `json:"govIdFragment"`
	Registrations []Registration `json:"registrations"`
	IssuedAt      time.Time      `json:"issuedAt"`
}
