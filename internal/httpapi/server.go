// Package httpapi implements the HTTP surface of spec.md §6 over
// gorilla/mux, grounded on the teacher's server.Server route-registration
// style (internal/server/server.go).
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/agentbridge/agentbridge/internal/agent"
	"github.com/agentbridge/agentbridge/internal/audit"
	"github.com/agentbridge/agentbridge/internal/auth"
	"github.com/agentbridge/agentbridge/internal/command"
	"github.com/agentbridge/agentbridge/internal/metrics"
	"github.com/agentbridge/agentbridge/internal/policy"
	"github.com/agentbridge/agentbridge/internal/ratelimit"
	"github.com/agentbridge/agentbridge/internal/store"
)

// Server bundles every collaborator the HTTP handlers need, constructed
// once in cmd/agentbridged and injected, mirroring the teacher's
// server.NewServer(store, spawner, mcpServer, ...) wiring.
type Server struct {
	Router *mux.Router

	Agents      *agent.Registry
	Dispatcher  *command.Dispatcher
	Commands    *store.CommandRepo
	AuditLog    *audit.Logger
	Authorizer  *policy.Authorizer
	PolicyLoad  func() error
	Pipeline    *auth.Pipeline
	RateLimiter *ratelimit.Limiter
	Metrics     *metrics.Registry
	Hub         *OpsHub
	Log         *zap.Logger

	LongPollMin time.Duration
	LongPollMax time.Duration
}

// NewRouter builds the full route table.
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(SecurityHeadersMiddleware)

	authMw := AuthMiddleware(s.Pipeline, s.Log)
	rateMw := RateLimitMiddleware(s.RateLimiter, s.Log)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(authMw, rateMw)

	api.HandleFunc("/agent/register", s.handleAgentRegister).Methods(http.MethodPost)
	api.HandleFunc("/agent/commands/wait/{deployment_hash}", s.handleAgentWait).Methods(http.MethodGet)
	api.HandleFunc("/agent/commands/report", s.handleAgentReport).Methods(http.MethodPost)

	api.HandleFunc("/commands", s.handleCreateCommand).Methods(http.MethodPost)
	api.HandleFunc("/commands/{deployment_hash}", s.handleListCommands).Methods(http.MethodGet)
	api.HandleFunc("/commands/{deployment_hash}/{command_id}", s.handleGetCommand).Methods(http.MethodGet)
	api.HandleFunc("/commands/{deployment_hash}/{command_id}/cancel", s.handleCancelCommand).Methods(http.MethodPost)
	api.HandleFunc("/commands/{deployment_hash}/{command_id}/history", s.handleCommandHistory).Methods(http.MethodGet)

	api.HandleFunc("/deployments/{deployment_hash}/capabilities", s.handleCapabilities).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(AuthorizeMiddleware(s.Authorizer, "admin", "manage", s.Log))
	admin.HandleFunc("/policy/reload", s.handlePolicyReload).Methods(http.MethodPost)

	api.Handle("/audit", AuthorizeMiddleware(s.Authorizer, "audit", "read", s.Log)(http.HandlerFunc(s.handleAuditQuery))).Methods(http.MethodGet)
	api.HandleFunc("/ops/stream", s.handleOpsStream).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	s.Router = r
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
