// Package server runs the accept loop that feeds every connection to the
// protocol dispatcher.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/luciancaetano/ecochat/internal/logging"
)

var (
	ErrAlreadyRunning = errors.New("server already running")
	ErrNoHandler      = errors.New("server needs a handler")
)

// startupGrace is how long Start waits for an immediate serve error.
const startupGrace = 100 * time.Millisecond

type Config struct {
	Addr    string
	Handler http.Handler
	Logger  *slog.Logger
}

// Server owns the listener. The handler is normally a
// router.ProtocolTypeRouter.
type Server struct {
	addr    string
	handler http.Handler
	logger  *slog.Logger

	mu       sync.Mutex
	running  bool
	server   *http.Server
	listener net.Listener
}

func New(cfg Config) (*Server, error) {
	if cfg.Handler == nil {
		return nil, ErrNoHandler
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		addr:    cfg.Addr,
		handler: cfg.Handler,
		logger:  logger.With("component", "server"),
	}, nil
}

// Start binds the listener and begins serving in the background. It returns
// an error if the address cannot be bound or serving fails right away.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.server = srv
	s.listener = ln
	s.running = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		s.mu.Lock()
		if s.server == srv {
			s.running = false
		}
		s.mu.Unlock()
		s.logger.Error("serve failed", "addr", ln.Addr().String(), "error", err)
		errChan <- err
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(stopCtx)
	case <-time.After(startupGrace):
		s.logger.Info("listening", "addr", ln.Addr().String())
		return nil
	}
}

// Stop shuts the server down gracefully. Stopping a server that is not
// running is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	srv := s.server
	s.mu.Unlock()

	s.logger.Info("shutting down")
	return srv.Shutdown(ctx)
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
