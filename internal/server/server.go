// Package server serves published bundles over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Maeiro/MMMMM/internal/config"
	"github.com/Maeiro/MMMMM/internal/logging"
	"github.com/Maeiro/MMMMM/internal/metrics"
)

const defaultShutdownTimeout = 5 * time.Second

// Config holds the listener and content settings.
type Config struct {
	Host       string
	Port       int
	Root       string
	MaxWorkers int

	ShutdownTimeout time.Duration
}

// FromConfig maps loaded configuration onto server settings. A relative
// root is resolved against instanceDir.
func FromConfig(instanceDir string, c config.ServerConfig) Config {
	root := c.Root
	if root == "" {
		root = config.DefaultSharedDir
	}
	if !filepath.IsAbs(root) {
		root = filepath.Join(instanceDir, filepath.FromSlash(root))
	}
	return Config{Host: c.Host, Port: c.Port, Root: root, MaxWorkers: c.MaxWorkers}
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics records request metrics.
func WithMetrics(m metrics.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger replaces the default "server" logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server is a restartable static file server rooted at Config.Root.
type Server struct {
	metrics metrics.Metrics
	logger  *log.Logger
	slots   chan struct{}

	mu       sync.Mutex
	cfg      Config
	root     string
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

func New(cfg Config, opts ...Option) *Server {
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = config.DefaultMaxWorkers
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		root = filepath.Clean(cfg.Root)
	}

	s := &Server{
		metrics: metrics.Noop{},
		logger:  logging.New("server"),
		slots:   make(chan struct{}, cfg.MaxWorkers),
		cfg:     cfg,
		root:    root,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the listener and serves in the background. Calling Start on a
// running server does nothing.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("serve error", "error", err)
		}
	}()

	s.srv, s.listener, s.done = srv, listener, done
	s.logger.Info("file server started", "address", listener.Addr().String(), "root", s.root)
	return nil
}

// Stop shuts the listener down and waits for in-flight requests up to the
// shutdown timeout. Stopping a stopped server does nothing.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(ctx)
}

func (s *Server) stopLocked(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	err := s.srv.Shutdown(shutdownCtx)
	if err != nil {
		// Deadline hit: drop remaining connections.
		_ = s.srv.Close()
	}
	<-s.done

	s.srv, s.listener, s.done = nil, nil, nil
	s.logger.Info("file server stopped")
	return err
}

// Restart rebinds on port when it differs from the current one, or starts
// the server when it is not running.
func (s *Server) Restart(ctx context.Context, port int) error {
	s.mu.Lock()
	running := s.srv != nil
	same := port == s.cfg.Port
	if running && same {
		s.mu.Unlock()
		return nil
	}
	if running {
		if err := s.stopLocked(ctx); err != nil {
			s.logger.Warn("shutdown before restart", "error", err)
		}
	}
	s.cfg.Port = port
	s.mu.Unlock()

	s.logger.Info("restarting file server", "port", port)
	return s.Start(ctx)
}

func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.srv != nil
}

// Addr returns the bound host:port, or "" when stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Port returns the bound port while running, otherwise the configured one.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
			return tcp.Port
		}
	}
	return s.cfg.Port
}

// Root returns the absolute directory being served.
func (s *Server) Root() string {
	return s.root
}
