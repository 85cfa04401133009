// Package events defines messages published to the broker when admissions
// are confirmed, and the background consumer that turns them into an ops
// audit log. Publishing is fire-and-forget: a broker outage never blocks
// or fails a scan.
package events

// AttendanceRecordedEvent is published after the remote store confirms an
// admission, whether written directly or replayed from the offline queue.
// It carries enough for downstream consumers to log, notify, or feed the
// festival dashboard without querying the primary store.
type AttendanceRecordedEvent struct {
	AttendanceID   string `json:"attendance_id"`
	SynapseID      string `json:"synapse_id"`
	Name           string `json:"name,omitempty"`
	Date           string `json:"date"`
	EventID        string `json:"event_id,omitempty"`
	EventType      string `json:"event_type,omitempty"`
	ScannedBy      string `json:"scanned_by"`
	OfflineScanned bool   `json:"offline_scanned"`
	PaymentStatus  string `json:"payment_status,omitempty"`
	RecordedAt     string `json:"recorded_at"`
}
