package api

import (
	"net/http"

	"github.com/keylease/keylease/internal/api/middleware"
	"github.com/keylease/keylease/internal/audit"
	"github.com/keylease/keylease/internal/broker"
	"github.com/keylease/keylease/internal/core"
	"github.com/keylease/keylease/internal/lease"
	"github.com/keylease/keylease/internal/tasks"
)

type Server struct {
	broker      *broker.Broker
	leases      *lease.Manager
	taskManager *tasks.Manager
	auditor     core.Auditor
}

func NewServer(
	b *broker.Broker,
	leases *lease.Manager,
	taskManager *tasks.Manager,
	auditor core.Auditor,
) *Server {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	return &Server{
		broker:      b,
		leases:      leases,
		taskManager: taskManager,
		auditor:     auditor,
	}
}

func (s *Server) Routes(adminSigningKey []byte) http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)

	// workload routes
	mux.HandleFunc("POST "+ExchangeRoute, s.handleExchange)
	mux.HandleFunc("POST "+LeaseRenewRoute, s.handleLeaseRenew)
	mux.HandleFunc("POST "+LeaseRevokeRoute, s.handleLeaseRevoke)

	// admin routes
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET "+ListAuditsRoute, s.handleAdminAudits)
	adminMux.HandleFunc("GET "+ListLeasesRoute, s.handleAdminLeases)
	adminMux.HandleFunc("POST "+ExplainRoute, s.handleExplain)
	adminMux.HandleFunc("GET "+ListTasksRoute, s.handleListTasks)
	adminMux.HandleFunc("POST "+TriggerTaskRoute, s.handleTriggerTask)
	adminMux.HandleFunc("GET "+LogsForTaskRoute, s.handleLogsForTask)
	mux.Handle(AdminParent, middleware.AdminAuth(adminSigningKey)(adminMux))

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				mux)))
}
