// Package server exposes the management HTTP surface: the health
// endpoint for external monitoring, prometheus metrics, and the query
// route the web frontend calls.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iambrandonn/graphgate/internal/gateway"
	"github.com/iambrandonn/graphgate/internal/health"
	"github.com/iambrandonn/graphgate/internal/observability"
)

// Server serves /healthz, /metrics, and /query.
type Server struct {
	addr    string
	gateway *gateway.Gateway
	prober  *health.Prober
	logger  *slog.Logger
	router  *gin.Engine
}

// New builds the HTTP surface. The prober and gateway stay independent:
// a failed probe never triggers the gateway's fallback path.
func New(addr string, gw *gateway.Gateway, prober *health.Prober, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:    addr,
		gateway: gw,
		prober:  prober,
		logger:  logger,
		router:  router,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Use(s.requestLog())

	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.POST("/query", s.handleQuery)
}

func (s *Server) handleHealth(c *gin.Context) {
	report := s.prober.Probe(c.Request.Context())
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

type queryRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
}

type queryResponse struct {
	Answer string `json:"answer"`
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	if req.TopK < 1 {
		req.TopK = 5
	}
	answer := s.gateway.Answer(c.Request.Context(), req.Query, req.TopK)
	c.JSON(http.StatusOK, queryResponse{Answer: answer})
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}

// Handler returns the underlying router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	observability.RegisterMetrics()

	srv := &http.Server{Addr: s.addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("management surface listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
