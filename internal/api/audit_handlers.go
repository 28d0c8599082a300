package api

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/decentraminds/osmosis-streaming-driver/internal/api/presenter"
	"github.com/decentraminds/osmosis-streaming-driver/internal/core"
)

const defaultAuditLimit = 50

// handleAdminAudit processes requests to retrieve audit log entries.
func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	queryable, ok := s.auditor.(core.QueryableAuditor)
	if !ok {
		presenter.Error(w, r, "the configured auditor cannot be queried", http.StatusNotImplemented)
		return
	}

	// filters
	q := r.URL.Query()
	limitStr := q.Get("limit")

	filterCorrelationID := q.Get("correlation_id")
	filterFingerprint := q.Get("fingerprint")
	filterAction := q.Get("action")

	limit := defaultAuditLimit
	if limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 0 {
			logger.Warn().Err(err).Str("limit", limitStr).Msg("invalid limit parameter")
			presenter.Error(w, r, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = v
	}

	var entries []core.AuditEntry
	var err error

	if filterCorrelationID != "" || filterFingerprint != "" || filterAction != "" {
		entries, err = queryable.Find(func(entry core.AuditEntry) bool {
			if filterCorrelationID != "" && entry.ID != filterCorrelationID {
				return false
			}
			if filterFingerprint != "" && entry.TokenFingerprint != filterFingerprint {
				return false
			}
			if filterAction != "" && entry.Action != filterAction {
				return false
			}
			return true
		}, limit)
	} else {
		entries, err = queryable.GetRecent(limit)
	}

	if err != nil {
		logger.Error().Err(err).Msg("failed to retrieve audit logs")
		presenter.Error(w, r, "failed to retrieve audit logs", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}

	presenter.JSON(w, r, entries, http.StatusOK)
}
