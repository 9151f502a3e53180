// Package api is the HTTP surface over the orchestrator.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"council/internal/events"
	"council/internal/execution"
	"council/internal/jobs"
	"council/internal/logger"
	"council/internal/orchestrator"

	"github.com/gin-gonic/gin"
)

// Service is the subset of *orchestrator.Service the handlers call.
type Service interface {
	Deliberate(ctx context.Context, query string) (orchestrator.Deliberation, error)
	Trade(ctx context.Context, req orchestrator.TradeRequest) (orchestrator.TradeResult, error)
	Submit(ctx context.Context, kind string, payload any) (jobs.Job, error)
	Job(ctx context.Context, id string) (jobs.Job, error)
	Jobs(ctx context.Context, limit int) ([]jobs.Job, error)
}

type ServerConfig struct {
	Addr     string
	Service  Service
	Events   events.Lister
	Accounts *execution.Registry
}

type Server struct {
	addr   string
	router *gin.Engine
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("api server requires a service")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9992"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	h := &handlers{svc: cfg.Service, events: cfg.Events, accounts: cfg.Accounts}
	h.register(router.Group("/api"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path += "?" + q
		}
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", c.Request.Method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("api: listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
