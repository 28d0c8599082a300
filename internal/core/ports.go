package core

import (
	"context"
	"time"
)

// Transport opens connections to upstream streams.
// Implementations: websocket, raw TCP, scheme multiplexer.
type Transport interface {
	// Connect establishes a connection to the given address.
	Connect(ctx context.Context, address string) (Conn, error)
}

// Conn is an established, receive-only upstream connection.
type Conn interface {
	// Receive blocks until the next frame arrives, the connection fails, or ctx is done.
	Receive(ctx context.Context) ([]byte, error)

	// Close releases the connection.
	Close() error
}

// Prober checks whether a destination is reachable within a timeout.
type Prober interface {
	Probe(ctx context.Context, destination string, timeout time.Duration) ProbeResult
}
