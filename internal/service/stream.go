package service

import (
	"context"
	"iter"
	"sync"

	"github.com/rs/zerolog"

	"github.com/decentraminds/osmosis-streaming-driver/internal/core"
	"github.com/decentraminds/osmosis-streaming-driver/internal/metrics"
	"github.com/decentraminds/osmosis-streaming-driver/internal/relay"
)

// Stream is a redeemed token with an open upstream connection.
type Stream struct {
	session *relay.Session
	svc     *StreamService
	logger  *zerolog.Logger
	audit   core.AuditEntry

	closeOnce sync.Once
}

func (s *Stream) ID() string {
	return s.session.ID
}

// Frames relays the upstream frames until the token expires, the upstream fails or the
// consumer stops. See relay.Session.Frames.
func (s *Stream) Frames(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for frame, err := range s.session.Frames(ctx) {
			if err == nil {
				s.svc.metrics.Inc(metrics.FramesRelayed)
				s.svc.metrics.Add(metrics.BytesRelayed, int64(len(frame)))
			}
			if !yield(frame, err) {
				return
			}
		}
	}
}

// Close closes the upstream connection and records the outcome of the session.
func (s *Stream) Close() error {
	err := s.session.Close()
	s.closeOnce.Do(func() {
		defer s.svc.open.Done()
		stats := s.session.Stats()

		m := s.svc.metrics
		m.Dec(metrics.SessionsActive)
		switch stats.Reason {
		case relay.EndExpired:
			m.Inc(metrics.SessionsExpired)
		case relay.EndUpstream:
			m.Inc(metrics.SessionsUpstreamFailed)
		case relay.EndConsumer, relay.EndNone:
			m.Inc(metrics.SessionsConsumerClosed)
		}

		s.audit.Metadata["frames"] = stats.Frames
		s.audit.Metadata["bytes"] = stats.Bytes
		s.audit.Metadata["reason"] = string(stats.Reason)
		if logErr := s.svc.auditor.Log(s.audit); logErr != nil {
			s.logger.Error().Err(logErr).Msg("failed to write audit log entry for stream")
		}

		s.logger.Info().
			Int64("frames", stats.Frames).
			Int64("bytes", stats.Bytes).
			Dur("duration", stats.Duration).
			Str("reason", string(stats.Reason)).
			Msg("relay session ended")
	})
	return err
}
