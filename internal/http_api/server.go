package http_api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/fil-demos/synapse-kit/internal/metrics"
	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/internal/providers"
	"github.com/fil-demos/synapse-kit/pkg/logger"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 10 * time.Second
)

// HTTPServer is the HTTP server struct that will serve the API
type HTTPServer struct {
	// logger is the logger instance
	logger *logger.Logger

	// router is the HTTP router
	router *gin.Engine
	// port is the port on which the server will listen
	port int

	// server is the underlying HTTP server
	server *http.Server

	// ledger is the quota ledger behind the quota and upload endpoints
	ledger models.QuotaService

	// providers is the provider health catalog, nil when none is configured
	providers ProviderCatalog
}

// ProviderCatalog reports the last known health of the storage providers.
type ProviderCatalog interface {
	Providers() []providers.Provider
}

// NewHTTPServer creates a new HTTP server instance
func NewHTTPServer(ledger models.QuotaService, catalog ProviderCatalog, port int, logger *logger.Logger) models.APIServer {
	return newHTTPServer(ledger, catalog, port, logger)
}

func newHTTPServer(ledger models.QuotaService, catalog ProviderCatalog, port int, logger *logger.Logger) *HTTPServer {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Content-Length", "Accept", "Authorization"},
		MaxAge:          12 * time.Hour,
	}))

	server := &HTTPServer{
		router:    router,
		port:      port,
		ledger:    ledger,
		providers: catalog,
		logger:    logger,
	}

	// Define routes
	server.routes()
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return server
}

// Start starts the HTTP server
func (s *HTTPServer) Start() {
	addr := fmt.Sprintf("0.0.0.0:%v", s.port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "address", addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Fatal("Failed to start the HTTP server", "error", err)
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *HTTPServer) Shutdown() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server shut down successfully")
	return nil
}
