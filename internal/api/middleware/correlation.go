package middleware

import (
	"net/http"

	"github.com/rs/xid"

	"github.com/decentraminds/osmosis-streaming-driver/internal/logging"
)

const CorrelationIDHeader = "X-Correlation-ID"

// maxCorrelationIDLength limits client supplied IDs that end up in logs and audit entries.
const maxCorrelationIDLength = 64

func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationIDHeader)
		if id == "" || len(id) > maxCorrelationIDLength {
			id = xid.New().String()
		}
		w.Header().Set(CorrelationIDHeader, id)

		ctx := logging.WithCorrelationID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
