// Package api provides the HTTP/SSE surface for the council server.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/codeready-toolchain/llmcouncil/pkg/config"
	"github.com/codeready-toolchain/llmcouncil/pkg/contextmgr"
	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
	"github.com/codeready-toolchain/llmcouncil/pkg/council"
)

// Server is the HTTP API server. A single Orchestrator, wired (by
// cmd/councild) with a provider.Hybrid that dispatches each model ID to the
// right backend, serves every request; provider-hint only ever narrows
// which council members are eligible for a turn (council.ProviderLocal
// filtering) — it never changes which Orchestrator handles the request.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg          *config.Config
	store        conversation.Store
	orchestrator *council.Orchestrator
	contextMgr   *contextmgr.Manager
	locks        *conversation.LockRegistry
	configStore  config.Store

	// listLocalModels backs GET /api/available-models?provider=local. Nil
	// if no local runtime is configured.
	listLocalModels func(ctx context.Context) ([]string, error)
	// listRemoteModels backs GET /api/available-models?provider=remote. Nil
	// if no remote gateway is configured.
	listRemoteModels func(ctx context.Context) ([]string, error)
}

// NewServer creates a new API server with Echo v5.
func NewServer(
	cfg *config.Config,
	store conversation.Store,
	orchestrator *council.Orchestrator,
	contextMgr *contextmgr.Manager,
	locks *conversation.LockRegistry,
	configStore config.Store,
	listLocalModels func(ctx context.Context) ([]string, error),
	listRemoteModels func(ctx context.Context) ([]string, error),
) *Server {
	e := echo.New()

	s := &Server{
		echo:             e,
		cfg:              cfg,
		store:            store,
		orchestrator:     orchestrator,
		contextMgr:       contextMgr,
		locks:            locks,
		configStore:      configStore,
		listLocalModels:  listLocalModels,
		listRemoteModels: listRemoteModels,
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers all API routes.
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())

	s.echo.GET("/api/healthz", s.healthzHandler)

	conversations := s.echo.Group("/api/conversations")
	conversations.GET("", s.listConversationsHandler)
	conversations.POST("", s.createConversationHandler)
	conversations.GET("/:id", s.getConversationHandler)
	conversations.DELETE("/:id", s.deleteConversationHandler)

	conversations.POST("/:id/message", s.sendMessageHandler)
	conversations.POST("/:id/message/stream", s.sendMessageStreamHandler)
	conversations.POST("/:id/pending/retry", s.retryHandler)
	conversations.POST("/:id/pending/retry/stream", s.retryStreamHandler)
	conversations.POST("/:id/pending/remove", s.removePendingHandler)
	conversations.POST("/:id/user-message/status", s.updateUserMessageStatusHandler)

	s.echo.GET("/api/available-models", s.availableModelsHandler)
	s.echo.GET("/api/council-config", s.getCouncilConfigHandler)
	s.echo.POST("/api/council-config", s.setCouncilConfigHandler)
}

// Start starts the HTTP server on the given address (non-blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.echo,
	}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener. Used
// by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthzHandler handles GET /api/healthz.
func (s *Server) healthzHandler(c *echo.Context) error {
	_, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	return c.JSON(http.StatusOK, &HealthResponse{Status: "healthy"})
}
