package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/decentraminds/osmosis-streaming-driver/internal/api/presenter"
	"github.com/decentraminds/osmosis-streaming-driver/internal/service"
)

// handleIssue issues a token for the stream given in stream_url.
func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	q := r.URL.Query()
	req := service.IssueRequest{
		Destination: q.Get("stream_url"),
	}

	if raw := q.Get("expires_at"); raw != "" {
		expiresAt, err := ParseExpiry(raw)
		if err != nil {
			logger.Warn().Err(err).Str("expires_at", raw).Msg("invalid expires_at parameter")
			presenter.Error(w, r, "invalid expires_at parameter", http.StatusBadRequest)
			return
		}
		req.ExpiresAt = expiresAt
	}

	if raw := q.Get("ttl"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			logger.Warn().Err(err).Str("ttl", raw).Msg("invalid ttl parameter")
			presenter.Error(w, r, "invalid ttl parameter", http.StatusBadRequest)
			return
		}
		req.TTL = ttl
	}

	resp, err := s.streams.IssueToken(ctx, req)
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, resp, http.StatusOK)
}

// seconds representable as nanoseconds since the epoch (year 2262)
const maxUnixSeconds = math.MaxInt64 / int64(time.Second)

// ParseExpiry accepts an RFC 3339 timestamp or unix seconds.
func ParseExpiry(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("'%s' is neither RFC 3339 nor unix seconds", raw)
	}
	if math.IsNaN(secs) || math.Abs(secs) > float64(maxUnixSeconds) {
		return time.Time{}, fmt.Errorf("'%s' is out of range", raw)
	}
	whole := int64(secs)
	return time.Unix(whole, int64((secs-float64(whole))*float64(time.Second))), nil
}
