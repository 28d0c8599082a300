// Package relay streams frames from an upstream destination until a token expires.
package relay

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/decentraminds/osmosis-streaming-driver/internal/core"
)

var (
	// ErrUpstream wraps every error the upstream connection terminated the stream with.
	ErrUpstream = errors.New("upstream failure")

	// ErrSessionConsumed is yielded if Frames is called more than once.
	ErrSessionConsumed = errors.New("session already consumed")
)

// EndReason describes why a session stopped.
type EndReason string

const (
	EndNone     EndReason = ""
	EndExpired  EndReason = "expired"
	EndUpstream EndReason = "upstream"
	EndConsumer EndReason = "consumer"
)

// Session is a single relay from destination to one consumer.
// It owns the upstream connection and closes it exactly once.
type Session struct {
	ID          string
	Destination string
	ExpiresAt   time.Time
	StartedAt   time.Time

	conn core.Conn
	now  func() time.Time

	consumed  atomic.Bool
	closeOnce sync.Once
	closeErr  error

	frames atomic.Int64
	bytes  atomic.Int64
	reason atomic.Value // EndReason
}

type Option func(*Session)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// Open connects to destination and returns a session bound to expiresAt.
// The caller must either range over Frames or call Close.
func Open(
	ctx context.Context,
	transport core.Transport,
	destination string,
	expiresAt time.Time,
	opts ...Option,
) (*Session, error) {
	s := &Session{
		ID:          uuid.NewString(),
		Destination: destination,
		ExpiresAt:   expiresAt,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reason.Store(EndNone)

	conn, err := transport.Connect(ctx, destination)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting: %w", ErrUpstream, err)
	}
	s.conn = conn
	s.StartedAt = s.now()
	return s, nil
}

// Frames returns the lazy sequence of upstream frames.
//
// The sequence ends without error once the expiry is reached (checked before every
// receive, and bounding every receive). An upstream error is yielded once as the last
// element. When the consumer stops early or ctx is cancelled, the sequence ends silently.
// In every case the upstream connection is closed before the sequence returns.
// The sequence can only be consumed once.
func (s *Session) Frames(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		if !s.consumed.CompareAndSwap(false, true) {
			yield(nil, ErrSessionConsumed)
			return
		}
		defer s.Close()

		logger := log.Ctx(ctx)

		// in-flight receives must not outlive the token
		recvCtx, cancel := context.WithDeadline(ctx, s.ExpiresAt)
		defer cancel()

		for {
			if !s.now().Before(s.ExpiresAt) {
				s.end(EndExpired)
				return
			}

			frame, err := s.conn.Receive(recvCtx)
			if err != nil {
				switch {
				case ctx.Err() != nil:
					s.end(EndConsumer)
				case recvCtx.Err() != nil, !s.now().Before(s.ExpiresAt):
					// only the expiry deadline can end recvCtx while ctx is alive
					s.end(EndExpired)
				default:
					s.end(EndUpstream)
					logger.Debug().Err(err).Str("session_id", s.ID).Msg("upstream terminated stream")
					yield(nil, fmt.Errorf("%w: %w", ErrUpstream, err))
				}
				return
			}

			s.frames.Add(1)
			s.bytes.Add(int64(len(frame)))

			if !yield(frame, nil) {
				s.end(EndConsumer)
				return
			}
		}
	}
}

// Close releases the upstream connection. It is safe to call multiple times;
// the connection is only closed once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *Session) end(reason EndReason) {
	s.reason.CompareAndSwap(EndNone, reason)
}

// Stats is a summary of a session, used for logs and audit entries.
type Stats struct {
	Frames   int64         `json:"frames"`
	Bytes    int64         `json:"bytes"`
	Duration time.Duration `json:"duration"`
	Reason   EndReason     `json:"reason,omitempty"`
}

func (s *Session) Stats() Stats {
	return Stats{
		Frames:   s.frames.Load(),
		Bytes:    s.bytes.Load(),
		Duration: s.now().Sub(s.StartedAt),
		Reason:   s.reason.Load().(EndReason),
	}
}
