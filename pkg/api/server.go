// Package api serves the planner over HTTP as JSON.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harrisonrobin/planner/pkg/logging"
	"github.com/harrisonrobin/planner/pkg/metrics"
	"github.com/harrisonrobin/planner/pkg/planner"
)

const (
	DefaultAddr = "127.0.0.1:8080"

	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
)

// Server is the planner's HTTP API.
type Server struct {
	planner *planner.Planner
	metrics *metrics.Metrics
	logger  *slog.Logger
	router  *gin.Engine
}

// NewServer builds the router. gatherer may be nil, in which case
// /metrics is not mounted.
func NewServer(p *planner.Planner, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	router := gin.New()

	s := &Server{
		planner: p,
		metrics: m,
		logger:  logging.OrDefault(logger),
		router:  router,
	}

	router.Use(gin.Recovery(), s.instrument())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	{
		api.GET("/tasks", s.handleListTasks)
		api.GET("/tasks/grouped", s.handleGroupedTasks)
		api.GET("/stats", s.handleStats)

		api.POST("/domains/:domain/tasks", s.handleCreateTask)
		api.PATCH("/domains/:domain/tasks/:id", s.handleUpdateTask)
		api.POST("/domains/:domain/tasks/:id/toggle", s.handleToggleTask)
		api.DELETE("/domains/:domain/tasks/:id", s.handleDeleteTask)

		api.GET("/containers/:kind", s.handleListContainers)
		api.POST("/containers/:kind", s.handleAddContainer)
		api.DELETE("/containers/:kind/:id", s.handleDeleteContainer)
		api.POST("/containers/:kind/:id/toggle", s.handleToggleContainer)

		api.GET("/jobapps", s.handleJobApps)
		api.POST("/jobapps/increment", s.handleIncrementJobApps)
		api.POST("/jobapps/reset", s.handleResetJobApps)

		api.GET("/calendar/status", s.handleCalendarStatus)
		api.POST("/calendar/sync", s.handleCalendarSync)
		api.GET("/calendar/events", s.handleCalendarEvents)
	}

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting api server", "addr", addr)
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

	s.logger.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// instrument records request counts and latencies by route pattern.
func (s *Server) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
		s.logger.Debug("request", "method", c.Request.Method, "route", route, "status", c.Writer.Status())
	}
}
