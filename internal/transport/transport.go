// Package transport provides the upstream stream clients the relay and the probe dial through.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/decentraminds/osmosis-streaming-driver/internal/core"
)

var ErrUnsupportedScheme = errors.New("unsupported scheme")

// Func adapts a function to core.Transport.
type Func func(ctx context.Context, address string) (core.Conn, error)

func (f Func) Connect(ctx context.Context, address string) (core.Conn, error) {
	return f(ctx, address)
}

var _ core.Transport = (*Mux)(nil)

// Mux routes connections to a transport based on the URL scheme of the address.
type Mux struct {
	mu       sync.RWMutex
	byScheme map[string]core.Transport
}

func NewMux() *Mux {
	return &Mux{
		byScheme: make(map[string]core.Transport),
	}
}

// Handle registers t for scheme, replacing any previous registration.
func (m *Mux) Handle(scheme string, t core.Transport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byScheme[strings.ToLower(scheme)] = t
}

// Schemes returns the registered schemes, sorted.
func (m *Mux) Schemes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	schemes := make([]string, 0, len(m.byScheme))
	for s := range m.byScheme {
		schemes = append(schemes, s)
	}
	slices.Sort(schemes)
	return schemes
}

func (m *Mux) Connect(ctx context.Context, address string) (core.Conn, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("parsing address: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)

	m.mu.RLock()
	t, ok := m.byScheme[scheme]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w '%s' (supported: %s)", ErrUnsupportedScheme, scheme, strings.Join(m.Schemes(), ", "))
	}
	return t.Connect(ctx, address)
}

// receiveErr maps a failed read to the context error once ctx is done.
// The socket deadline mirrors the context deadline and may fire before ctx notices.
func receiveErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
			return context.DeadlineExceeded
		}
	}
	return err
}
