package domain

import "time"

// Audit event kinds.
const (
	AuditSessionStart = "session_start"
	AuditSessionEnd   = "session_end"
)

// AuditEvent is an append-only record of a session lifecycle occurrence.
// Timestamp is assigned by the sink at write time.
type AuditEvent struct {
	ID        string
	Kind      string
	SessionID string
	Details   map[string]any
	Timestamp time.Time
}
