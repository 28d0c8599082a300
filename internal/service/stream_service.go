package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/decentraminds/osmosis-streaming-driver/internal/audit"
	"github.com/decentraminds/osmosis-streaming-driver/internal/core"
	"github.com/decentraminds/osmosis-streaming-driver/internal/logging"
	"github.com/decentraminds/osmosis-streaming-driver/internal/metrics"
	"github.com/decentraminds/osmosis-streaming-driver/internal/policy"
	"github.com/decentraminds/osmosis-streaming-driver/internal/registry"
	"github.com/decentraminds/osmosis-streaming-driver/internal/relay"
)

const (
	DefaultTTL = 2 * time.Minute

	missingDestinationMessage = "You need to provide the URL of your stream."
	missingTokenMessage       = "You need to provide a valid token to start proxying."
	invalidTokenFormat        = "Token '%s' is invalid. Please provide a valid token."
	timeoutMessagePrefix      = "Timeout while trying to connect to"
)

type Options struct {
	// DefaultTTL is the token lifetime if the request does not carry one.
	DefaultTTL time.Duration

	// MaxTTL caps requested lifetimes. Zero means unlimited.
	MaxTTL time.Duration

	// ProbeTimeout is passed to the prober. Zero lets the prober decide.
	ProbeTimeout time.Duration

	// Policy restricts destinations. nil allows everything.
	Policy *policy.Guard

	Auditor core.Auditor
	Metrics *metrics.Recorder

	// Clock replaces time.Now.
	Clock func() time.Time
}

// StreamService issues tokens for reachable destinations and opens relay sessions for them.
type StreamService struct {
	registry  *registry.Registry
	prober    core.Prober
	transport core.Transport

	defaultTTL   time.Duration
	maxTTL       time.Duration
	probeTimeout time.Duration
	policy       *policy.Guard
	auditor      core.Auditor
	metrics      *metrics.Recorder
	now          func() time.Time

	open sync.WaitGroup
}

func NewStreamService(
	registry *registry.Registry,
	prober core.Prober,
	transport core.Transport,
	opts Options,
) *StreamService {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.Auditor == nil {
		opts.Auditor = audit.NewNoopAuditor()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRecorder()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &StreamService{
		registry:     registry,
		prober:       prober,
		transport:    transport,
		defaultTTL:   opts.DefaultTTL,
		maxTTL:       opts.MaxTTL,
		probeTimeout: opts.ProbeTimeout,
		policy:       opts.Policy,
		auditor:      opts.Auditor,
		metrics:      opts.Metrics,
		now:          opts.Clock,
	}
}

// IssueToken probes the destination and, if it is reachable, registers a new token for it.
func (s *StreamService) IssueToken(ctx context.Context, req IssueRequest) (*IssueResponse, error) {
	logger := log.Ctx(ctx)

	auditEntry := core.AuditEntry{
		ID:     logging.CorrelationID(ctx),
		Time:   s.now(),
		Action: "token.issue",
	}
	defer func() {
		if !auditEntry.Success {
			s.metrics.Inc(metrics.TokensRejected)
		}
		if err := s.auditor.Log(auditEntry); err != nil {
			logger.Error().Err(err).Msg("failed to write audit log entry for token issuance")
		}
	}()

	if req.Destination == "" {
		auditEntry.Error = "missing destination"
		return nil, httpError(http.StatusBadRequest, missingDestinationMessage, ErrInvalidInput)
	}
	auditEntry.DestinationHost = audit.DestinationHost(req.Destination)

	withHost := logger.With().Str("destination_host", auditEntry.DestinationHost).Logger()
	logger = &withHost

	expiresAt, err := s.expiry(req)
	if err != nil {
		auditEntry.Error = err.Error()
		return nil, httpError(http.StatusBadRequest, err.Error(), fmt.Errorf("%w: %w", ErrInvalidInput, err))
	}

	if err := s.policy.Allow(req.Destination); err != nil {
		auditEntry.Error = "policy denied"
		if errors.Is(err, policy.ErrDenied) {
			logger.Warn().Msg("destination denied by policy")
			return nil, httpError(http.StatusForbidden, "Destination is not allowed.", fmt.Errorf("%w: %w", ErrPolicyDenied, err))
		}
		logger.Error().Err(err).Msg("policy evaluation failed")
		return nil, httpError(http.StatusInternalServerError, "Policy evaluation failed.", err)
	}

	timeout := s.probeTimeout
	if req.ProbeTimeout > 0 {
		timeout = req.ProbeTimeout
	}
	result := s.prober.Probe(ctx, req.Destination, timeout)
	if !result.OK {
		auditEntry.Error = result.Message
		if strings.HasPrefix(result.Message, timeoutMessagePrefix) {
			s.metrics.Inc(metrics.ProbeTimeouts)
		} else {
			s.metrics.Inc(metrics.ProbeFailures)
		}
		logger.Warn().Str("reason", result.Message).Msg("destination failed reachability probe")
		return nil, httpError(http.StatusInternalServerError, result.Message,
			fmt.Errorf("%w: %s", ErrUpstreamUnreachable, result.Message))
	}

	token, err := s.registry.Register(req.Destination, expiresAt)
	if err != nil {
		auditEntry.Error = err.Error()
		if errors.Is(err, registry.ErrInvalidInput) {
			return nil, httpError(http.StatusBadRequest, err.Error(), fmt.Errorf("%w: %w", ErrInvalidInput, err))
		}
		logger.Error().Err(err).Msg("failed to register token")
		return nil, httpError(http.StatusInternalServerError, "Could not issue a token.", err)
	}

	auditEntry.Success = true
	auditEntry.TokenFingerprint = audit.Fingerprint(token)
	auditEntry.Metadata = map[string]any{"expires_at": expiresAt}
	s.metrics.Inc(metrics.TokensIssued)

	logger.Info().
		Str("token_fingerprint", auditEntry.TokenFingerprint).
		Time("expires_at", expiresAt).
		Msg("token issued")

	return &IssueResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *StreamService) expiry(req IssueRequest) (time.Time, error) {
	now := s.now()

	var expiresAt time.Time
	switch {
	case !req.ExpiresAt.IsZero():
		expiresAt = req.ExpiresAt
	case req.TTL < 0:
		return time.Time{}, fmt.Errorf("ttl must not be negative")
	case req.TTL > 0:
		expiresAt = now.Add(req.TTL)
	default:
		expiresAt = now.Add(s.defaultTTL)
	}

	if !expiresAt.After(now) {
		return time.Time{}, fmt.Errorf("expiry %s is not in the future", expiresAt.Format(time.RFC3339))
	}
	if s.maxTTL > 0 && expiresAt.Sub(now) > s.maxTTL {
		return time.Time{}, fmt.Errorf("requested lifetime exceeds the maximum of %s", s.maxTTL)
	}
	return expiresAt, nil
}

// OpenStream redeems a token and connects to its destination.
// The returned Stream must be closed by the caller.
func (s *StreamService) OpenStream(ctx context.Context, token string) (*Stream, error) {
	logger := log.Ctx(ctx)

	auditEntry := core.AuditEntry{
		ID:               logging.CorrelationID(ctx),
		Time:             s.now(),
		Action:           "stream.open",
		TokenFingerprint: audit.Fingerprint(token),
	}

	fail := func(err HTTPError) (*Stream, error) {
		auditEntry.Error = err.Message
		if logErr := s.auditor.Log(auditEntry); logErr != nil {
			logger.Error().Err(logErr).Msg("failed to write audit log entry for stream")
		}
		return nil, err
	}

	if token == "" {
		return fail(httpError(http.StatusBadRequest, missingTokenMessage, ErrInvalidInput))
	}

	entry, ok := s.registry.Resolve(token)
	if !ok || entry.Expired(s.now()) {
		s.metrics.Inc(metrics.UnauthorizedRedemptions)
		// unknown and expired tokens are reported the same way
		logger.Warn().
			Str("token_fingerprint", auditEntry.TokenFingerprint).
			Bool("known", ok).
			Msg("rejected invalid token")
		return fail(httpError(http.StatusUnauthorized, fmt.Sprintf(invalidTokenFormat, token), ErrTokenInvalid))
	}
	auditEntry.DestinationHost = audit.DestinationHost(entry.Destination)

	session, err := relay.Open(ctx, s.transport, entry.Destination, entry.ExpiresAt, relay.WithClock(s.now))
	if err != nil {
		s.metrics.Inc(metrics.SessionsUpstreamFailed)
		logger.Warn().Err(err).Str("destination_host", auditEntry.DestinationHost).Msg("could not connect to upstream")
		return fail(httpError(http.StatusBadGateway, "Unable to connect to stream.",
			fmt.Errorf("%w: %w", ErrUpstreamFailure, err)))
	}

	s.metrics.Inc(metrics.SessionsStarted)
	s.metrics.Inc(metrics.SessionsActive)

	sessionLogger := logger.With().
		Str("session_id", session.ID).
		Str("destination_host", auditEntry.DestinationHost).
		Logger()
	logger = &sessionLogger
	logger.Info().Time("expires_at", entry.ExpiresAt).Msg("relay session started")

	auditEntry.Success = true
	auditEntry.Metadata = map[string]any{"session_id": session.ID}
	s.open.Add(1)
	return &Stream{
		session: session,
		svc:     s,
		logger:  logger,
		audit:   auditEntry,
	}, nil
}

// Snapshot returns all registered tokens, including expired ones.
func (s *StreamService) Snapshot() map[string]core.TokenEntry {
	return s.registry.Snapshot()
}

// EvictExpired removes expired tokens from the registry.
func (s *StreamService) EvictExpired() int {
	n := s.registry.Purge(s.now())
	s.metrics.Add(metrics.TokensEvicted, int64(n))
	return n
}

// WaitStreams blocks until every opened stream has been closed or ctx is done.
func (s *StreamService) WaitStreams(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.open.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Metrics returns the current counters.
func (s *StreamService) Metrics() map[string]int64 {
	return s.metrics.Snapshot()
}
