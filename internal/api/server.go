// Package api serves the agent state and payout allowlist over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/wiktac/node-agent/internal/allowlist"
	"github.com/wiktac/node-agent/internal/api/middleware"
	"github.com/wiktac/node-agent/internal/config"
	"github.com/wiktac/node-agent/internal/health"
	"github.com/wiktac/node-agent/internal/log"
	"github.com/wiktac/node-agent/internal/state"
)

// Server wires the state document, the payout allowlist and the health
// endpoints into one router.
type Server struct {
	cfg     config.Config
	store   *state.Store
	payouts *allowlist.Holder
	health  *health.Manager
	version string
	logger  zerolog.Logger
}

// New constructs the API server.
func New(cfg config.Config, store *state.Store, payouts *allowlist.Holder, healthMgr *health.Manager, version string) *Server {
	return &Server{
		cfg:     cfg,
		store:   store,
		payouts: payouts,
		health:  healthMgr,
		version: version,
		logger:  log.WithComponent("api"),
	}
}

// Router builds the HTTP handler with the canonical middleware stack applied.
func (s *Server) Router() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        s.cfg.AllowedOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        "wiktac-api",
		EnableLogging:         true,
		EnableRateLimit:       s.cfg.RateLimitEnabled,
		RateLimitRPM:          s.cfg.RateLimitRPM,
	})
	s.registerRoutes(r)
	return r
}

func (s *Server) registerRoutes(r chi.Router) {
	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)

	r.Get("/", s.handleIndex)
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/allowlist", s.handleAllowlistGet)
		r.With(middleware.WriteRateLimit()).Post("/allowlist", s.handleAllowlistSet)
	})
}
