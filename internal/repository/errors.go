// Package repository wraps the remote document store with typed access to
// the collections the scanner touches. These sentinel values allow higher
// layers such as the orchestrator and handlers to distinguish between
// policy rejections (already marked, unknown volunteer) and transient
// infrastructure failures, which stay as wrapped transport errors.
package repository

import "errors"

// ErrAlreadyMarked is returned by AttendanceRepo.Mark when a record with
// attended=true already exists for the (attendee, date) pair. The
// orchestrator surfaces it as a policy rejection; the sync engine treats
// it as already reconciled and drops the queued item.
var ErrAlreadyMarked = errors.New("attendance already marked for this date")

// ErrVolunteerNotFound is returned when no volunteer document matches the
// requested id or user id.
var ErrVolunteerNotFound = errors.New("volunteer not found")

// ErrRegistrationNotFound is returned by the payment lookup when the
// registration referenced by a ticket does not exist in its source
// collection.
var ErrRegistrationNotFound = errors.New("registration not found")

// ErrAttendeeNotFound is returned when no attendee document exists for a
// synapse id.
var ErrAttendeeNotFound = errors.New("attendee not found")
