// Package service runs the proxy listing HTTP listener until interrupted.
package service

import (
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/martin-sucha/proxy-listing/api"
	"github.com/martin-sucha/proxy-listing/config"
	"github.com/martin-sucha/proxy-listing/httpserver"
	"github.com/martin-sucha/proxy-listing/logging"
	"golang.org/x/time/rate"
)

type State int32

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

const defaultPollInterval = 100 * time.Millisecond

// Listener is an HTTP listener serving the API.
// Start must not block; startup outcome is reported by Started and Failed.
type Listener interface {
	api.RouteRegistrable
	Start()
	Started() bool
	Failed() error
	Stop() error
}

// ListenerFactory creates a listener bound to addr.
type ListenerFactory func(addr string) Listener

// SignalRegistrar arranges for handler to be called whenever one of sigs is received,
// until the returned function is called.
type SignalRegistrar func(handler func(), sigs ...os.Signal) (unregister func())

type Service struct {
	cfg            config.Config
	api            *api.API
	logger         *slog.Logger
	newListener    ListenerFactory
	registerSignal SignalRegistrar
	sleep          func(time.Duration)

	running atomic.Bool
	state   atomic.Int32
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithListenerFactory(f ListenerFactory) Option {
	return func(s *Service) { s.newListener = f }
}

func WithSignalRegistrar(r SignalRegistrar) Option {
	return func(s *Service) { s.registerSignal = r }
}

// WithSleep replaces the function the wait loops sleep with.
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Service) { s.sleep = sleep }
}

func New(cfg config.Config, a *api.API, opts ...Option) *Service {
	s := &Service{
		cfg:            cfg,
		api:            a,
		registerSignal: NotifySignal,
		sleep:          time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.newListener == nil {
		s.newListener = func(addr string) Listener {
			return httpserver.New(httpserver.Options{
				Addr:            addr,
				Logger:          s.logger,
				RateLimit:       rate.Limit(cfg.RateLimit),
				RateBurst:       cfg.RateBurst,
				ShutdownTimeout: cfg.ShutdownTimeout,
			})
		}
	}
	if s.cfg.PollInterval <= 0 {
		s.cfg.PollInterval = defaultPollInterval
	}
	return s
}

// Run starts the listener and blocks until Stop is called or an interrupt is received.
// A listener startup failure is returned as is, before the service ever runs.
func (s *Service) Run() error {
	unregister := s.registerSignal(s.Stop, os.Interrupt, syscall.SIGTERM)
	defer unregister()

	s.state.Store(int32(Starting))
	s.running.Store(true)

	ln := s.newListener(s.cfg.Listen)
	s.api.Register(ln)
	ln.Start()
	for {
		if err := ln.Failed(); err != nil {
			s.running.Store(false)
			s.state.Store(int32(Stopped))
			s.logger.Error("listener failed to start", slog.String("addr", s.cfg.Listen), slog.String("error", err.Error()))
			return err
		}
		if ln.Started() {
			break
		}
		s.sleep(s.cfg.PollInterval)
	}

	s.state.CompareAndSwap(int32(Starting), int32(Running))
	s.logger.Info("proxy listing service running",
		slog.String("addr", s.cfg.Listen),
		slog.String("alias_sites", s.cfg.AliasSites),
		slog.String("proxy_sites", s.cfg.ProxySites),
	)
	for s.running.Load() {
		s.sleep(s.cfg.PollInterval)
	}

	s.state.Store(int32(Stopping))
	s.logger.Info("proxy listing service stopping")
	return ln.Stop()
}

// Stop makes Run return. It only flips a flag, so it is safe to call any number of times
// and from any goroutine.
func (s *Service) Stop() {
	s.running.Store(false)
	s.state.CompareAndSwap(int32(Running), int32(Stopping))
}

func (s *Service) Running() bool {
	return s.running.Load()
}

func (s *Service) State() State {
	return State(s.state.Load())
}

// NotifySignal is the SignalRegistrar backed by os/signal.
func NotifySignal(handler func(), sigs ...os.Signal) func() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, sigs...)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range c {
			handler()
		}
	}()
	return func() {
		signal.Stop(c)
		close(c)
		<-done
	}
}
