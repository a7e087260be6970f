// Package http assembles the gin server: the health and AI endpoints,
// the operator surface, CORS, and the websocket upgrade route.
package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/robin-raq/collabboard/internal/domain/service"
	"github.com/robin-raq/collabboard/internal/interfaces/http/handlers"
	ws "github.com/robin-raq/collabboard/internal/interfaces/websocket"
)

// Config configures the listener.
type Config struct {
	Host string
	Port int
	Mode string // debug, release
}

// OriginsFunc supplies the live origin allow-list for CORS responses.
type OriginsFunc func() []string

// Server wraps the http.Server around the assembled gin router.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewServer assembles routes and middleware. wsHandler may be nil in
// tests that only exercise the REST surface.
func NewServer(cfg Config, ai *handlers.AIHandler, admin *handlers.AdminHandler, wsHandler *ws.Handler, origins OriginsFunc, logger *zap.Logger) *Server {
	if cfg.Mode == "release" || cfg.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger))
	router.Use(corsMiddleware(origins))

	router.GET("/health", admin.Health)

	api := router.Group("/api")
	{
		api.POST("/ai", ai.Run)
		api.POST("/ai/stream", ai.Stream)

		api.GET("/rooms", admin.ListRooms)
		api.GET("/rooms/:room", admin.InspectRoom)
		api.POST("/rooms/:room/snapshot", admin.SnapshotRoom)

		api.GET("/cache", admin.CacheStats)
		api.POST("/cache/clear", admin.ClearCache)
		api.GET("/providers", admin.ListProviders)
	}

	// Collaboration transport: GET /<room_id> upgrades to a websocket.
	if wsHandler != nil {
		router.GET("/:room", wsHandler.Serve)
	}

	return &Server{
		server: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler: router,
		},
		logger: logger.With(zap.String("component", "http-server")),
	}
}

// Start begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting HTTP server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// corsMiddleware answers preflights with 204 and stamps the allow
// headers on everything else, honoring the origin allow-list.
func corsMiddleware(origins OriginsFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && service.IsOriginAllowed(origin, origins()) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func ginLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		// Websocket upgrades log their own lifecycle.
		if strings.HasPrefix(c.GetHeader("Upgrade"), "websocket") {
			return
		}
		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
