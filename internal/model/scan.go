package model

import "time"

// ScanResult is the value produced at the end of every orchestrator cycle
// and returned to the device UI for display and feedback.
//
// Fields:
//  Success – whether the attendee was admitted (or queued for admission).
//  Offline – true when the admission was queued rather than confirmed.
//  Message – human-readable outcome ("Welcome!", "Already marked", ...).
//  Data    – optional context for the UI, e.g. the attendee's
//            registrations on an already-marked rejection.
type ScanResult struct {
	Success bool        `json:"success"`
	Offline bool        `json:"offline,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ScanHistoryItem is one entry in the bounded local scan journal. History
// exists for operator visibility and forensic replay only; no correctness
// decision ever reads it.
type ScanHistoryItem struct {
	ID        string    `json:"id"`
	SynapseID string    `json:"synapseId"`
	Name      string    `json:"name,omitempty"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Offline   bool      `json:"offline"`
	ScannedAt time.Time `json:"scannedAt"`
}

// OfflineQueueItem is a locally durable attendance write that has not yet
// been acknowledged by the remote store. Items live until the sync engine
// confirms the corresponding remote write or an operator clears the queue.
//
// Fields:
//  LocalID    – device-local unique id, never sent to the remote store.
//  Record     – the attendance payload minus server-assigned fields.
//  EnqueuedAt – local wall-clock time of enqueue.
//  Retries    – number of failed drain attempts so far.
//  LastError  – last observed error from a drain attempt.
type OfflineQueueItem struct {
	LocalID    string           `json:"localId"`
	Record     AttendanceRecord `json:"record"`
	EnqueuedAt time.Time        `json:"enqueuedAt"`
	Retries    int              `json:"retries"`
	LastError  string           `json:"lastError,omitempty"`
}

// SyncSummary is the persisted status of the sync engine, exposed to the
// UI through the status endpoint and kept in the device-local store so it
// survives restarts.
type SyncSummary struct {
	State     string    `json:"state"` // idle, syncing, synced, sync-failed
	Pending   int       `json:"pending"`
	LastPass  time.Time `json:"lastPass,omitempty"`
	LastError string    `json:"lastError,omitempty"`
}
