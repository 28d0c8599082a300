package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/decentraminds/osmosis-streaming-driver/internal/api/presenter"
)

// handleProxy relays the stream behind token to the client as text/plain, one flush per frame.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	stream, err := s.streams.OpenStream(ctx, r.URL.Query().Get("token"))
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	defer func() {
		if err := stream.Close(); err != nil {
			logger.Debug().Err(err).Msg("closing upstream connection")
		}
	}()

	rc := http.NewResponseController(w)
	// the stream lives until the token expires, not until the server write timeout
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		logger.Debug().Err(err).Msg("cannot clear write deadline")
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Session-ID", stream.ID())
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	for frame, err := range stream.Frames(ctx) {
		if err != nil {
			// headers are out already, all we can do is end the response
			logger.Warn().Err(err).Msg("upstream ended the stream")
			return
		}
		if _, err := w.Write(frame); err != nil {
			logger.Debug().Err(err).Msg("client went away")
			return
		}
		if err := rc.Flush(); err != nil {
			logger.Debug().Err(err).Msg("flushing frame")
			return
		}
	}
}
