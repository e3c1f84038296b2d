package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/gin-gonic/gin"

	"github.com/Julianb233/acre-notebook-lm/internal/config"
)

// HTTPServer is the gin-based API server.
type HTTPServer struct {
	config *config.Config
	engine *gin.Engine
	server *http.Server
}

// NewHTTPServer creates the API server and registers middlewares and routes.
// Handlers are built by the composition root and injected here.
func NewHTTPServer(cfg *config.Config, handlers ...RouteRegistrar) *HTTPServer {
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	s := &HTTPServer{
		config: cfg,
		engine: engine,
	}

	s.registerMiddlewares()
	s.registerRoutes(handlers)

	return s
}

// RouteRegistrar attaches one handler's routes to the API group.
type RouteRegistrar interface {
	RegisterRoutes(r *gin.RouterGroup)
}

// registerMiddlewares registers middlewares.
func (s *HTTPServer) registerMiddlewares() {
	s.engine.Use(gin.Recovery())
	s.engine.Use(s.loggingMiddleware())
	s.engine.Use(s.corsMiddleware())
}

// loggingMiddleware logs every request and its outcome.
func (s *HTTPServer) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		logx.Info("HTTP request, method %s, path %s, status %d, duration %s",
			method, path, status, duration)
	}
}

// corsMiddleware allows cross-origin calls from the assistant UI.
func (s *HTTPServer) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// registerRoutes wires the API groups.
func (s *HTTPServer) registerRoutes(handlers []RouteRegistrar) {
	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/health", s.handleHealth)

		for _, h := range handlers {
			h.RegisterRoutes(v1)
		}
	}
}

// handleHealth is the liveness endpoint.
func (s *HTTPServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":   200,
		"status": "ok",
	})
}

// Start runs the server until Stop is called.
func (s *HTTPServer) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	logx.Info("✅ HTTP server listening on %s", addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *HTTPServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
