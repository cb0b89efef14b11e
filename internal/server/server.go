// Package server exposes the gate-entry pipeline over HTTP, with live
// decisions on an SSE stream and a gRPC health endpoint.
package server

import (
	"log/slog"
	"time"

	"github.com/alfredjeanlab/gatepass/internal/audit"
	"github.com/alfredjeanlab/gatepass/internal/forward"
	"github.com/alfredjeanlab/gatepass/internal/reconcile"
)

// Server holds the handlers' dependencies.
type Server struct {
	engine   *reconcile.Engine
	audit    audit.Log
	hub      *Hub
	replayer *forward.Client
	logger   *slog.Logger
	started  time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithReplay enables POST /v1/forward/replay through c.
func WithReplay(c *forward.Client) Option {
	return func(s *Server) { s.replayer = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New returns a server over engine, reading history from log. hub is the
// SSE hub the engine publishes into; a nil hub gets a private one that
// nothing publishes to.
func New(engine *reconcile.Engine, log audit.Log, hub *Hub, opts ...Option) *Server {
	if hub == nil {
		hub = NewHub()
	}
	s := &Server{
		engine:  engine,
		audit:   log,
		hub:     hub,
		logger:  slog.Default(),
		started: time.Now(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// inputError indicates invalid user input.
// Transport layers map this to 400.
type inputError string

func (e inputError) Error() string { return string(e) }
