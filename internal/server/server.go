// Package server provides the HTTP facade over the gateway manager and the
// dispatch service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/msggate/msggate/internal/dispatch"
	"github.com/msggate/msggate/internal/event"
	"github.com/msggate/msggate/internal/logging"
)

// SessionStatus is the read-only view of the lifecycle manager the facade
// needs. *gateway.Manager satisfies this.
type SessionStatus interface {
	IsReady() bool
	WaitForChallenge(ctx context.Context) (string, error)

	// Reconnect supersedes the active session and dials fresh. After a
	// terminal logout this starts a new pairing exchange.
	Reconnect()
}

// Sender submits outbound messages. *dispatch.Service satisfies this.
type Sender interface {
	Send(ctx context.Context, recipientRaw, message string) dispatch.Result
}

// Config holds server configuration.
type Config struct {
	Port        int
	AdminSecret string
	EnableCORS  bool
	ReadTimeout time.Duration
	// WriteTimeout is zero by default: the event stream endpoint holds
	// its response open.
	WriteTimeout time.Duration
	// PairingWait is how long /api/pairing waits for a challenge.
	PairingWait time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:        8080,
		EnableCORS:  true,
		ReadTimeout: 30 * time.Second,
		PairingWait: 20 * time.Second,
	}
}

// Server is the HTTP server.
type Server struct {
	config  *Config
	router  *chi.Mux
	httpSrv *http.Server
	session SessionStatus
	sender  Sender
	bus     *event.Bus
	log     zerolog.Logger
}

// New creates a new Server instance.
func New(cfg *Config, session SessionStatus, sender Sender, bus *event.Bus) *Server {
	s := &Server{
		config:  cfg,
		router:  chi.NewRouter(),
		session: session,
		sender:  sender,
		bus:     bus,
		log:     logging.Component("server"),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Admin-Secret", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
