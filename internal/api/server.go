// Package api exposes the security system over HTTP. Every route is a GET,
// guarded by the numeric access code when one is configured, and maps onto
// a single controller operation tagged with remote origin.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"securitysystem/internal/alarm"
	"securitysystem/internal/auth"
	"securitysystem/internal/config"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Controller is the part of the alarm controller the API drives
type Controller interface {
	Execute(cmd alarm.Command) (alarm.Result, error)
	SetArmingLock(scope string, locked bool) error
	Snapshot() alarm.Snapshot
}

// Authenticator checks the access code supplied with a request
type Authenticator interface {
	Enabled() bool
	Check(supplied string) auth.Result
}

// Server provides the HTTP control endpoints
type Server struct {
	ctrl   Controller
	guard  Authenticator
	hub    *Hub
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a new API server. hub may be nil, in which case the
// websocket stream is not offered.
func NewServer(cfg config.ServerConfig, ctrl Controller, guard Authenticator, hub *Hub, logger *zap.Logger) *Server {
	s := &Server{
		ctrl:   ctrl,
		guard:  guard,
		hub:    hub,
		logger: logger.Named("api"),
	}

	s.server = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Router builds the route table
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoveryMiddleware)
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/status", s.handleStatus)
		r.Get("/triggered", s.handleTrigger)
		r.Get("/home", s.handleMode(alarm.CommandArmHome))
		r.Get("/away", s.handleMode(alarm.CommandArmAway))
		r.Get("/night", s.handleMode(alarm.CommandArmNight))
		r.Get("/off", s.handleMode(alarm.CommandDisarm))
		r.Get("/pause/{value}", s.handlePause)
		r.Get("/arming-lock/{mode}/{value}", s.handleArmingLock)

		if s.hub != nil {
			r.Get("/ws", s.hub.ServeWS)
		}
	})

	return r
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}

	s.logger.Info("Starting HTTP API server", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP API server")

	if s.hub != nil {
		s.hub.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
