package api

import (
	"net/http"

	"github.com/decentraminds/osmosis-streaming-driver/internal/api/middleware"
	"github.com/decentraminds/osmosis-streaming-driver/internal/audit"
	"github.com/decentraminds/osmosis-streaming-driver/internal/core"
	"github.com/decentraminds/osmosis-streaming-driver/internal/service"
	"github.com/decentraminds/osmosis-streaming-driver/internal/tasks"
)

type Server struct {
	streams     *service.StreamService
	taskManager *tasks.Manager
	auditor     core.Auditor
}

func NewServer(
	streams *service.StreamService,
	taskManager *tasks.Manager,
	auditor core.Auditor,
) *Server {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	return &Server{
		streams:     streams,
		taskManager: taskManager,
		auditor:     auditor,
	}
}

// Routes builds the HTTP handler. If adminSigningKey is empty, introspection and
// admin routes are served without authentication.
func (s *Server) Routes(adminSigningKey []byte) http.Handler {
	guard := func(next http.Handler) http.Handler { return next }
	if len(adminSigningKey) > 0 {
		guard = middleware.AdminAuth(adminSigningKey)
	}

	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)

	mux.HandleFunc("GET "+IssueTokenRoute, s.handleIssue)
	mux.HandleFunc("GET "+ProxyRoute, s.handleProxy)
	mux.Handle("GET "+InfoRoute, guard(http.HandlerFunc(s.handleInfo)))

	// admin routes
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET "+MetricsRoute, s.handleAdminMetrics)
	adminMux.HandleFunc("GET "+ListAuditsRoute, s.handleAdminAudit)
	adminMux.HandleFunc("GET "+ListTasksRoute, s.handleListTasks)
	adminMux.HandleFunc("POST "+TriggerTaskRoute, s.handleTriggerTask)
	adminMux.HandleFunc("GET "+LogsForTaskRoute, s.handleLogsForTask)
	mux.Handle(AdminParent, guard(adminMux))

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				mux)))
}
