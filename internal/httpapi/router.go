package httpapi

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/whisper/ws-relay/internal/relay"
)

// ConnectLimiter guards POST /connect against abusive reconnect loops. It is
// optional — a nil limiter (or a Server built without one) disables the
// check entirely.
type ConnectLimiter interface {
	Allow(ctx context.Context, identifier string) (bool, error)
}

// EventPublisher observes session lifecycle transitions for external
// consumers. It is optional.
type EventPublisher interface {
	SessionCreated(id, upstreamURL string)
	SessionClosed(id, reason string)
}

// Server holds the dependencies the HTTP handlers need and builds the gin
// engine that serves them.
type Server struct {
	registry *relay.Registry
	cfg      relay.Config
	token    string

	limiter ConnectLimiter
	events  EventPublisher

	onSessionCreated func()
	onSessionClosed  func(reason string)
	onFrame          func()
	onLongPollWait   func(time.Duration)
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithLimiter attaches a connect-rate limiter.
func WithLimiter(l ConnectLimiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithEvents attaches a lifecycle event publisher.
func WithEvents(e EventPublisher) Option {
	return func(s *Server) { s.events = e }
}

// WithMetricsHooks attaches counters for session creation, closure, frame
// delivery, and long-poll wait latency without httpapi importing the
// metrics package directly.
func WithMetricsHooks(onCreated func(), onClosed func(reason string), onFrame func(), onLongPollWait func(time.Duration)) Option {
	return func(s *Server) {
		s.onSessionCreated = onCreated
		s.onSessionClosed = onClosed
		s.onFrame = onFrame
		s.onLongPollWait = onLongPollWait
	}
}

// NewServer builds a Server bound to registry and cfg, with auth guarding
// every route except /:id/get and /. token empty disables auth entirely.
func NewServer(registry *relay.Registry, cfg relay.Config, token string, opts ...Option) *Server {
	s := &Server{registry: registry, cfg: cfg, token: token}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine builds the gin engine wired to this Server's handlers.
func (s *Server) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.handleBanner)
	r.GET("/:id/get", s.handleGet)

	guarded := r.Group("/")
	guarded.Use(authGuard(s.token))
	guarded.POST("/connect", s.handleConnect)
	guarded.POST("/:id/send", s.handleSend)
	guarded.DELETE("/:id/close", s.handleClose)

	return r
}
