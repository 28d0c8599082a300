package core

import "time"

// TokenEntry is what a token grants access to.
// It is stored by value, so a holder cannot change the registry through it.
type TokenEntry struct {
	// Destination is the address of the upstream stream (e.g. "wss://feed.example.com/ticks").
	// It is never shown to the party that redeems the token.
	Destination string `json:"destination"`

	// ExpiresAt is the point in time after which the token no longer authorizes proxying.
	ExpiresAt time.Time `json:"expires_at"`

	// IssuedAt is the time the token was registered.
	IssuedAt time.Time `json:"issued_at"`
}

// Expired reports whether the entry is no longer valid at the given time.
func (e TokenEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// ProbeResult is the outcome of a reachability check.
type ProbeResult struct {
	// OK is true if a connection could be established within the timeout.
	OK bool `json:"ok"`

	// Message contains a human-readable cause if OK is false.
	Message string `json:"message,omitempty"`
}
