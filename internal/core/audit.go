package core

import "time"

type AuditEntry struct {
	// ID is the unique request ID (X-Correlation-ID)
	ID string `json:"id"`

	// Time is the timestamp of the event
	Time time.Time `json:"time"`

	// Action describing what happened ("token.issue" or "stream.open")
	Action string `json:"action"`

	// TokenFingerprint identifies the token without revealing it
	TokenFingerprint string `json:"token_fingerprint,omitempty"`

	// DestinationHost is the host part of the destination.
	// The full destination is not written to keep query secrets out of the audit log.
	DestinationHost string `json:"destination_host,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	// Metadata contains extra details (frames relayed, session id, ...)
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Auditor interface {
	Log(entry AuditEntry) error
	Close() error
}

// QueryableAuditor is implemented by auditors that keep entries around for inspection.
type QueryableAuditor interface {
	Auditor
	GetRecent(limit int) ([]AuditEntry, error)
	Find(filter func(entry AuditEntry) bool, limit int) ([]AuditEntry, error)
}
