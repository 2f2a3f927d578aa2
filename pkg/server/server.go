package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/duynguyendang/blockbaker/pkg/service"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Server holds the state for the REST API server.
type Server struct {
	catalog  *service.CatalogService
	router   *gin.Engine
	logger   *zap.Logger
	validate *validator.Validate
}

// NewServer creates a new Server instance.
func NewServer(catalog *service.CatalogService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(logger), instrument())
	s := &Server{
		catalog:  catalog,
		router:   r,
		logger:   logger,
		validate: validator.New(),
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run starts the server on the specified address.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("REST API listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("Shutting down REST API")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1")
	v1.GET("/projects", s.handleProjects)
	v1.POST("/query", s.handleQuery)
	v1.GET("/tags", s.handleListTags)
	v1.POST("/tags", s.handleCreateTag)
	v1.GET("/tag", s.handleDescribeTag)
	v1.PATCH("/tag", s.handleEditValues)
	v1.DELETE("/tag", s.handleDeleteTag)
	v1.POST("/blocks", s.handleTagBlocks)
	v1.POST("/bake", s.handleBake)
	v1.GET("/verify", s.handleVerify)
}

// Health check
func (s *Server) healthCheck(c *gin.Context) {
	c.Status(http.StatusOK)
}
