package service

import "time"

type IssueRequest struct {
	// Destination is the address of the upstream stream. Required.
	Destination string

	// ExpiresAt is the requested expiry. If zero, TTL or the default TTL is used.
	ExpiresAt time.Time

	// TTL is the requested lifetime, relative to now. Ignored if ExpiresAt is set.
	TTL time.Duration

	// ProbeTimeout overrides the configured probe timeout if positive.
	ProbeTimeout time.Duration
}

type IssueResponse struct {
	// Token is the opaque access token.
	Token string `json:"token"`

	// ExpiresAt is when the token stops authorizing proxying.
	ExpiresAt time.Time `json:"expires_at"`
}
