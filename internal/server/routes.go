package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/version", s.handleVersion)

	// Realtime event stream
	s.echo.GET("/ws/events", s.handleWebSocket)

	// Fleet and connection introspection
	s.echo.GET("/api/stats", s.handleStats)
	s.echo.GET("/api/instances", s.handleInstances)
	s.echo.GET("/api/presence/:user_id", s.handlePresence)

	// Event producers
	s.echo.GET("/api/tenants/:id", s.handleGetTenant)
	s.echo.PUT("/api/tenants/:id", s.handleUpdateTenant)
	s.echo.POST("/api/payments/:id/status", s.handleRecordPaymentStatus)
	s.echo.POST("/api/maintenance", s.handleAnnounceMaintenance)
}
