package model

import "time"

// Payment status values stored on an attendance record.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFree    = "free"
)

// AttendanceRecord is the durable admission fact written to the remote
// store when an attendee is admitted. For a given (SynapseID, Date) pair at
// most one record with Attended=true may exist; the attendance writer
// enforces this with an optimistic check-then-write and an administrative
// dedup sweep cleans up the rare race between concurrent volunteers.
// Records are never mutated by the scan flow after creation.
//
// Fields:
//  ID              – remote document id (empty until created).
//  SynapseID       – attendee identifier from the ticket.
//  Name/Email/Phone – attendee contact snapshot, looked up at scan time
//                    when online; may be empty for offline scans.
//  Date            – calendar day, local to the event, as YYYY-MM-DD.
//  Attended        – always true for records created by the scanner.
//  ScannedBy       – id of the volunteer who performed the scan.
//  ScannedAt       – server-assigned timestamp; zero until the remote
//                    store confirms the write.
//  OfflineScanned  – true when the record was replayed from the offline
//                    queue rather than written directly.
//  EventID/EventType – optional target event the scan was for.
//  PaymentStatus   – pending, paid or free.
//  PaymentVerified – outcome of the payment check at scan time.
//  Registrations   – snapshot of the ticket's registrations at scan time.
type AttendanceRecord struct {
	ID              string         `json:"id,omitempty"`
	SynapseID       string         `json:"synapseId"`
	Name            string         `json:"name,omitempty"`
	Email           string         `json:"email,omitempty"`
	Phone           string         `json:"phone,omitempty"`
	Date            string         `json:"date"`
	Attended        bool           `json:"attended"`
	ScannedBy       string         `json:"scannedBy"`
	ScannedAt       time.Time      `json:"scannedAt,omitempty"`
	OfflineScanned  bool           `json:"offlineScanned"`
	EventID         string         `json:"eventId,omitempty"`
	EventType       string         `json:"eventType,omitempty"`
	PaymentStatus   string         `json:"paymentStatus,omitempty"`
	PaymentVerified bool           `json:"paymentVerified,omitempty"`
	Registrations   []Registration `json:"registrations,omitempty"`
}

// Attendee is the identity record kept in the remote store for every
// registered person. The scanner reads it to snapshot contact fields onto
// the attendance record and to verify the ticket's gov-id fragment.
type Attendee struct {
	SynapseID     string `json:"synapseId"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	GovIDFragment string `json:"govIdFragment,omitempty"`
}
