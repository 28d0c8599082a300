package presenter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/decentraminds/osmosis-streaming-driver/internal/logging"
	"github.com/decentraminds/osmosis-streaming-driver/internal/service"
)

type ErrorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func JSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write json response")
	}
}

func Error(w http.ResponseWriter, r *http.Request, msg string, status int) {
	JSON(w, r, ErrorResponse{
		Error:         msg,
		CorrelationID: logging.CorrelationID(r.Context()),
	}, status)
}

// Err writes a service error. Only the message of a service.HTTPError reaches the client,
// anything else is reported as an internal error.
func Err(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.Ctx(r.Context())

	var httpErr service.HTTPError
	if !errors.As(err, &httpErr) {
		logger.Error().Err(err).Msg("unhandled service error")
		Error(w, r, "internal server error", http.StatusInternalServerError)
		return
	}

	if httpErr.StatusCode >= http.StatusInternalServerError {
		logger.Warn().Err(err).Int("status", httpErr.StatusCode).Msg("request failed")
	} else {
		logger.Debug().Err(err).Int("status", httpErr.StatusCode).Msg("request rejected")
	}
	Error(w, r, httpErr.Message, httpErr.StatusCode)
}
