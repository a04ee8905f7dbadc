// Package httpserver serves listings over HTTP.
//
// Server follows the start, poll, stop protocol expected by the service: Start returns
// immediately and the outcome is observed through Started and Failed.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/martin-sucha/proxy-listing/api"
	"github.com/martin-sucha/proxy-listing/logging"
	"github.com/martin-sucha/proxy-listing/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const (
	RequestIDHeader = "X-Request-Id"
	MetricsPath     = "/metrics"

	defaultShutdownTimeout = 5 * time.Second
)

type Options struct {
	// Addr is the host:port to listen on.
	Addr   string
	Logger *slog.Logger
	// Metrics instruments requests when set. Gatherer, when set as well, is exposed at /metrics.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	// RateLimit is the number of requests per second served. Zero disables the limit.
	RateLimit       rate.Limit
	RateBurst       int
	ShutdownTimeout time.Duration
}

type Server struct {
	opts   Options
	logger *slog.Logger
	engine *gin.Engine
	srv    *http.Server

	started atomic.Bool
	mu      sync.Mutex
	failed  error
	addr    net.Addr
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	s := &Server{
		opts:   opts,
		logger: opts.Logger,
		engine: gin.New(),
	}
	s.engine.Use(requestIDMiddleware())
	s.engine.Use(accessLogMiddleware(s.logger))
	s.engine.Use(gin.Recovery())
	if opts.Metrics != nil {
		s.engine.Use(metricsMiddleware(opts.Metrics))
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.engine.Use(rateLimitMiddleware(rate.NewLimiter(opts.RateLimit, burst), opts.Metrics))
	}
	if opts.Gatherer != nil {
		s.engine.GET(MetricsPath, gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Route serves the listing produced by h as a JSON array at path.
func (s *Server) Route(path string, h api.Handler) {
	s.engine.GET(path, func(c *gin.Context) {
		c.JSON(http.StatusOK, h())
	})
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start binds the listener and serves in the background.
func (s *Server) Start() {
	go s.serve()
}

func (s *Server) serve() {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		s.fail(fmt.Errorf("listen on %s: %w", s.opts.Addr, err))
		return
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	s.started.Store(true)
	s.logger.Info("http server listening", slog.String("addr", ln.Addr().String()))

	err = s.srv.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.fail(fmt.Errorf("serve: %w", err))
	}
}

func (s *Server) fail(err error) {
	s.logger.Error("http server failed", slog.String("error", err.Error()))
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed == nil {
		s.failed = err
	}
}

// Started reports whether the server is accepting connections.
func (s *Server) Started() bool {
	return s.started.Load()
}

// Failed returns the error the server failed with, or nil.
func (s *Server) Failed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// Addr returns the bound address once started, nil before.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop shuts the server down, waiting up to the shutdown timeout for requests in flight.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func accessLogMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", c.GetString(RequestIDHeader)),
		)
	}
}

func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(path, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}
}

func rateLimitMiddleware(limiter *rate.Limiter, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			if m != nil {
				m.RateLimitedRequests.Inc()
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
