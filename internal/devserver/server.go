// Package devserver serves the logs endpoint from local containers so the
// tail command can be exercised without the platform API.
package devserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"turing-log-tail/internal/model"
	"turing-log-tail/pkg/log"
)

// Source returns the log records of one resource instance. Records need not
// be ordered or filtered; the server applies the query with Select.
type Source interface {
	Logs(ctx context.Context, path model.LogsPath, q model.LogsQuery) ([]model.LogRecord, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, path model.LogsPath, q model.LogsQuery) ([]model.LogRecord, error)

func (f SourceFunc) Logs(ctx context.Context, path model.LogsPath, q model.LogsQuery) ([]model.LogRecord, error) {
	return f(ctx, path, q)
}

// Server holds the Gin engine serving the logs endpoint.
type Server struct {
	engine *gin.Engine
	source Source
	addr   string
	prefix string
}

// New creates a dev server listening on addr. The logs route is mounted
// under prefix, e.g. "/v1" to match the API base URL.
func New(source Source, addr, prefix string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	s := &Server{
		engine: engine,
		source: source,
		addr:   addr,
		prefix: strings.TrimSuffix(prefix, "/"),
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := s.engine.Group(s.prefix)
	api.GET("/projects/:project_id/:resource/:resource_id/logs", s.handleLogs)
}

func (s *Server) handleLogs(c *gin.Context) {
	resource, err := model.ParseResource(c.Param("resource"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	path := model.LogsPath{
		ProjectID:  c.Param("project_id"),
		Resource:   resource,
		ResourceID: c.Param("resource_id"),
	}
	q := model.ParseLogsQuery(c.Request.URL.Query())
	if q.ComponentType != "" && !resource.HasComponent(q.ComponentType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown component_type: " + q.ComponentType})
		return
	}

	records, err := s.source.Logs(c.Request.Context(), path, q)
	if err != nil {
		log.Error("failed to read logs", "path", path.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, Select(records, q))
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("dev server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
