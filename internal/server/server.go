// Package server assembles the gin engine and runs the HTTP listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/config"
	v1 "github.com/dmehra2102/prod-golang-projects/telecare/internal/handler/v1"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	readinessTimeout  = 3 * time.Second
	limiterCleanEvery = time.Minute
)

// Check is a named readiness probe, e.g. the database ping.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

type Options struct {
	Config   *config.Config
	Log      *zap.Logger
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer
	Tokens   middleware.TokenValidator
	Handlers *v1.Handlers
	Checks   []Check
}

type Server struct {
	http     *http.Server
	log      *zap.Logger
	limiters []*middleware.IPRateLimiter
	timeout  time.Duration
}

func New(o Options) *Server {
	cfg := o.Config
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	global := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.BurstSize)
	credentials := middleware.PerMinute(cfg.RateLimit.AuthRequestsPerMinute)

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(o.Log),
		middleware.Tracing(cfg.Tracing.ServiceName),
		middleware.Logger(o.Log),
		middleware.Metrics(o.Metrics),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.CORS),
	)
	engine.HandleMethodNotAllowed = true
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found", "code": "NOT_FOUND"})
	})

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": cfg.App.Version})
	})
	engine.GET("/readyz", readiness(o.Checks))
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(o.Gatherer, promhttp.HandlerOpts{})))

	api := engine.Group("/api/v1", global.Middleware())
	v1.RegisterRoutes(api, o.Handlers, o.Tokens, credentials.Middleware())

	return &Server{
		http: &http.Server{
			Addr:              cfg.Server.Address(),
			Handler:           engine,
			ReadTimeout:       cfg.Server.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.Server.WriteTimeout,
			IdleTimeout:       cfg.Server.IdleTimeout,
		},
		log:      o.Log,
		limiters: []*middleware.IPRateLimiter{global, credentials},
		timeout:  cfg.Server.ShutdownTimeout,
	}
}

// Handler exposes the engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is cancelled and then drains in-flight requests for
// at most the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	for _, l := range s.limiters {
		go l.RunCleanup(limiterCleanEvery, stop)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("http server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("shutting down http server", zap.Duration("timeout", s.timeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func readiness(checks []Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		failed := map[string]string{}
		for _, chk := range checks {
			if err := chk.Fn(ctx); err != nil {
				failed[chk.Name] = err.Error()
			}
		}
		if len(failed) > 0 {
			names := make([]string, 0, len(failed))
			for n := range failed {
				names = append(names, n)
			}
			sort.Strings(names)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failing": names, "details": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
