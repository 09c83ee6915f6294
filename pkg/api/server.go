// Package api exposes the HTTP surface of the quorum orchestrator:
// the reasoning endpoints, agent analytics, health, metrics, and the
// WebSocket event stream.
package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeready-toolchain/quorum/pkg/analytics"
	"github.com/codeready-toolchain/quorum/pkg/config"
	"github.com/codeready-toolchain/quorum/pkg/database"
	"github.com/codeready-toolchain/quorum/pkg/events"
	"github.com/codeready-toolchain/quorum/pkg/reasoning"
)

// Server wires the orchestrator and its supporting services into an
// echo router. Optional collaborators (analytics, database, hub) may be
// nil; the corresponding endpoints degrade gracefully.
type Server struct {
	cfg          *config.Config
	orchestrator *reasoning.Orchestrator
	analytics    *analytics.Service
	dbClient     *database.Client
	hub          *events.Hub

	e          *echo.Echo
	httpServer *http.Server
}

// NewServer creates the API server and registers all routes.
func NewServer(
	cfg *config.Config,
	orchestrator *reasoning.Orchestrator,
	analyticsSvc *analytics.Service,
	dbClient *database.Client,
	hub *events.Hub,
) *Server {
	s := &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		analytics:    analyticsSvc,
		dbClient:     dbClient,
		hub:          hub,
		e:            echo.New(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.e.Use(securityHeaders())

	perMinute := 0
	if s.cfg != nil {
		perMinute = s.cfg.Server.RateLimitPerMinute
	}
	limited := rateLimit(newRateLimiter(perMinute))

	s.e.POST("/ask", s.askHandler, limited)
	s.e.POST("/collaborate", s.collaborateHandler, limited)

	s.e.GET("/analytics/conversation/:id", s.conversationAnalyticsHandler)
	s.e.GET("/analytics/performance", s.performanceHandler)
	s.e.GET("/analytics/tasks", s.taskDistributionHandler)
	s.e.GET("/analytics/errors", s.commonErrorsHandler)

	s.e.GET("/healthz", s.healthHandler)
	s.e.GET("/ws", s.wsHandler)

	metricsHandler := promhttp.Handler()
	s.e.GET("/metrics", func(c *echo.Context) error {
		metricsHandler.ServeHTTP(c.Response(), c.Request())
		return nil
	})
}

// Router returns the underlying echo instance, mainly for tests.
func (s *Server) Router() *echo.Echo {
	return s.e
}

// Start runs the HTTP server on addr. It blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
