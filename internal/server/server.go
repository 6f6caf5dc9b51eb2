// Package server exposes the lifecycle engine to the board views: a gin
// HTTP API serving the queue, station, timer and preparation-detail
// projections plus every transition endpoint, and a websocket feed that
// bridges the notifier's topics to connected clients.
package server

import (
	"expeditor/internal/audit"
	"expeditor/internal/bus"
	"expeditor/internal/engine"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Server handles board projection and transition requests
type Server struct {
	router *gin.Engine
	engine *engine.Engine
	audit  *audit.Store
	hub    *Hub
	logger zerolog.Logger
}

// New creates a server for one engine instance. The notifier is the same
// bus the engine publishes on; the websocket feed subscribes to it
// directly so clients see exactly what peer modules see.
func New(eng *engine.Engine, auditStore *audit.Store, notifier bus.Notifier, logger zerolog.Logger) *Server {
	s := &Server{
		router: gin.New(),
		engine: eng,
		audit:  auditStore,
		hub:    NewHub(notifier, logger),
		logger: logger.With().Str("component", "server").Logger(),
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/ws", s.hub.HandleWS)

	api := s.router.Group("/api")
	{
		api.GET("/orders", s.handleQueueBoard)
		api.GET("/orders/:id", s.handleOrderDetail)
		api.POST("/orders", s.handleCreateOrder)
		api.POST("/orders/:id/start", s.handleStartOrder)
		api.POST("/orders/:id/ready", s.handleOrderReady)
		api.POST("/orders/:id/force-ready", s.handleForceOrderReady)
		api.POST("/orders/:id/complete", s.handleCompleteOrder)
		api.POST("/orders/:id/cancel", s.handleCancelOrder)
		api.POST("/orders/:id/archive", s.handleArchiveOrder)

		api.POST("/orders/:id/items/:itemID/start", s.handleStartItem)
		api.POST("/orders/:id/items/:itemID/ready", s.handleItemReady)
		api.POST("/orders/:id/items/:itemID/force-ready", s.handleForceItemReady)
		api.POST("/orders/:id/items/:itemID/steps/:stepID/start", s.handleStartStep)
		api.POST("/orders/:id/items/:itemID/steps/:stepID/complete", s.handleCompleteStep)

		api.GET("/stations/:station/items", s.handleStationBoard)

		api.GET("/timers", s.handleTimerBoard)
		api.POST("/timers", s.handleStartTimer)
		api.POST("/timers/:id/pause", s.handlePauseTimer)
		api.POST("/timers/:id/resume", s.handleResumeTimer)
		api.POST("/timers/:id/complete", s.handleCompleteTimer)
		api.DELETE("/timers/:id", s.handleDeleteTimer)

		api.GET("/menu", s.handleMenu)
		api.GET("/audit/force-ready", s.handleForceReadyAudit)
	}
}

// Router returns the gin router, for tests and for the HTTP server.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Close shuts down the websocket feed.
func (s *Server) Close() {
	s.hub.Close()
}
