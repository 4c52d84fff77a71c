// Package http exposes the file store and the sheet parser over a gin router.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/sheet-import/internal/ingest"
	"github.com/garyjia/sheet-import/internal/parser"
	"github.com/garyjia/sheet-import/internal/storage"
	"github.com/garyjia/sheet-import/internal/token"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	Mode            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxChunkSize    int64 // bytes accepted per chunk upload
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            "0.0.0.0:8080",
		Mode:            gin.ReleaseMode,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		MaxChunkSize:    32 << 20,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	logger     *zap.Logger
}

// Deps are the services behind the routes. Ingest is optional; without it
// the translate route is not registered.
type Deps struct {
	Store  *storage.FileStore
	Codec  *token.Codec
	Parser *parser.Parser
	Ingest *ingest.Service
}

// NewServer creates the server and registers every route
func NewServer(config ServerConfig, deps Deps, logger *zap.Logger) *Server {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	s := &Server{
		config: config,
		router: gin.New(),
		logger: logger,
	}

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	h := NewHandlers(deps, config.MaxChunkSize, logger)
	s.setupRoutes(h)
	return s
}

// loggingMiddleware logs one line per request
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

func (s *Server) setupRoutes(h *Handlers) {
	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api/v1", h.RequireUser())
	{
		api.POST("/files", h.UploadFile)
		api.POST("/files/url", h.UploadFromURL)
		api.GET("/files/:token", h.GetFile)
		api.DELETE("/files/:token", h.DeleteFile)
		api.POST("/files/:token/preview", h.Preview)
		if h.ingest != nil {
			api.POST("/files/:token/translate", h.Translate)
		}

		api.POST("/files/chunks/start", h.StartChunk)
		api.PUT("/files/chunks/:token/:index", h.PutChunk)
		api.GET("/files/chunks/:token/:index", h.CheckChunk)
		api.POST("/files/chunks/:token/assemble", h.AssembleChunks)
	}
}

// Start serves until ctx is cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", s.config.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
