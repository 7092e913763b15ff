// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

package sioecho

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// IServer is a standalone Socket.IO server: a Handler mounted on a path of its
// own http.Server.
type IServer interface {
	// Start listens on the configured port and serves until stopped.
	Start() error

	// StartWithContext is Start, shutting down when ctx is done.
	StartWithContext(ctx context.Context) error

	// Stop closes every session and the listener immediately.
	Stop() error

	// StopGracefully closes every session and waits up to timeout for
	// in-flight HTTP requests.
	StopGracefully(timeout time.Duration) error

	// Of returns the namespace with the given name, creating it when needed.
	Of(name string) *Namespace

	// Sessions returns the live engine sessions.
	Sessions() []*Session

	// Stats returns a snapshot of the server counters.
	Stats() Stats
}

type Server struct {
	handler   *Handler
	config    *ServerConfig
	server    *http.Server
	listener  net.Listener
	isRunning bool
	mu        sync.RWMutex
}

var _ IServer = (*Server)(nil)

// NewServer returns a Server listening on port 3000 and path /socket.io/ unless
// options say otherwise.
func NewServer(options ...UniversalOption) (*Server, error) {
	s := &Server{
		handler: newHandler(),
		config:  DefaultServerConfig(),
	}

	for _, o := range options {
		if err := o(s); err != nil {
			return nil, err
		}
	}

	s.handler.init()
	return s, nil
}

func (s *Server) Handler() *Handler {
	return s.handler
}

func (s *Server) Config() ServerConfig {
	return *s.config
}

func (s *Server) Of(name string) *Namespace {
	return s.handler.Of(name)
}

func (s *Server) Sessions() []*Session {
	return s.handler.hub.Sessions()
}

func (s *Server) Stats() Stats {
	return s.handler.Stats()
}

// Addr returns the bound address while the server is running.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Start() error {
	ln, err := s.listen()
	if err != nil {
		return err
	}

	err = s.serve(ln)
	s.stopped()

	if errors.Is(err, http.ErrServerClosed) {
		s.handler.log(LogTypeServer, LogLevelInfo, "server stopped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) StartWithContext(ctx context.Context) error {
	ln, err := s.listen()
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.stopped()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		s.handler.log(LogTypeServer, LogLevelInfo, "server stopped by context")
		return ctx.Err()

	case err := <-errChan:
		s.stopped()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

func (s *Server) listen() (net.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil, ErrServerAlreadyRunning
	}
	if s.config.Port <= 0 || s.config.Port > 65535 {
		return nil, newInvalidPortError(s.config.Port)
	}
	if s.config.EnableSSL && (s.config.CertFile == "" || s.config.KeyFile == "") {
		return nil, ErrSSLFilesEmpty
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(s.config.Path, s.handler)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.listener = ln
	s.isRunning = true
	return ln, nil
}

func (s *Server) serve(ln net.Listener) error {
	s.handler.log(LogTypeServer, LogLevelInfo, "Listening on port %d", s.config.Port)

	if s.config.EnableSSL {
		return s.server.ServeTLS(ln, s.config.CertFile, s.config.KeyFile)
	}
	return s.server.Serve(ln)
}

// stopped marks the server as not running and closes every session.
func (s *Server) stopped() {
	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()

	s.handler.Close()
}

func (s *Server) Stop() error {
	s.mu.RLock()
	if !s.isRunning || s.server == nil {
		s.mu.RUnlock()
		return ErrServerNotRunning
	}
	s.mu.RUnlock()

	s.stopped()
	return s.server.Close()
}

func (s *Server) StopGracefully(timeout time.Duration) error {
	s.mu.RLock()
	if !s.isRunning || s.server == nil {
		s.mu.RUnlock()
		return ErrServerNotRunning
	}
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.stopped()
	return s.server.Shutdown(ctx)
}
