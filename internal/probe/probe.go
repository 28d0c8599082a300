// Package probe checks whether an upstream stream can be reached before a token is issued.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/decentraminds/osmosis-streaming-driver/internal/core"
)

// DefaultTimeout is used when no (or a non-positive) timeout is given.
const DefaultTimeout = 5 * time.Second

var _ core.Prober = (*Prober)(nil)

// Prober opens a connection to a destination and closes it right away.
// The connection attempt runs in its own goroutine so a transport that hangs
// cannot hold the caller past the timeout.
type Prober struct {
	transport      core.Transport
	defaultTimeout time.Duration
}

func New(transport core.Transport, defaultTimeout time.Duration) *Prober {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &Prober{
		transport:      transport,
		defaultTimeout: defaultTimeout,
	}
}

// Probe reports whether destination accepted a connection within timeout.
// On failure, the result message is meant to be shown to the requester.
func (p *Prober) Probe(ctx context.Context, destination string, timeout time.Duration) core.ProbeResult {
	if timeout <= 0 {
		timeout = p.defaultTimeout
	}
	logger := log.Ctx(ctx)

	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// buffered, so the goroutine can always deliver and exit, even if nobody listens anymore
	results := make(chan core.ProbeResult, 1)
	go func() {
		results <- p.attempt(probeCtx, destination)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-results:
		return res
	case <-timer.C:
		logger.Warn().Dur("timeout", timeout).Msg("probe timed out")
		return core.ProbeResult{
			OK:      false,
			Message: fmt.Sprintf("Timeout while trying to connect to '%s'", destination),
		}
	case <-ctx.Done():
		return failed(ctx.Err())
	}
}

func (p *Prober) attempt(ctx context.Context, destination string) (res core.ProbeResult) {
	defer func() {
		if r := recover(); r != nil {
			res = failed(fmt.Errorf("transport panicked: %v", r))
		}
	}()

	conn, err := p.transport.Connect(ctx, destination)
	if err != nil {
		return failed(err)
	}
	// the probe connection is never handed out, the relay dials on its own
	if err := conn.Close(); err != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("closing probe connection failed")
	}
	return core.ProbeResult{OK: true}
}

func failed(err error) core.ProbeResult {
	return core.ProbeResult{
		OK:      false,
		Message: fmt.Sprintf("Unable to connect to stream. Details: '%s'", err),
	}
}
