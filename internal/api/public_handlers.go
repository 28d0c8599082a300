package api

import (
	"net/http"

	"github.com/decentraminds/osmosis-streaming-driver/internal/api/presenter"
	"github.com/decentraminds/osmosis-streaming-driver/internal/buildinfo"
)

// handleHealth responds with a simple OK status to indicate the server is healthy.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleAbout responds with service information including version and commit hash.
func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, buildinfo.GetBuildInfo(), http.StatusOK)
}

// handleInfo dumps the token registry.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, s.streams.Snapshot(), http.StatusOK)
}

func (s *Server) handleAdminMetrics(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, s.streams.Metrics(), http.StatusOK)
}
