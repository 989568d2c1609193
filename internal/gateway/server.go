// Package gateway exposes the tenant-facing HTTP API: tenant bootstrap,
// agent management, sessions, message turns, voice turns, and usage.
package gateway

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/turnpike-ai/turnpike/internal/analytics"
	"github.com/turnpike-ai/turnpike/internal/provider"
	"github.com/turnpike-ai/turnpike/internal/store"
	"github.com/turnpike-ai/turnpike/internal/voice"
	"github.com/turnpike-ai/turnpike/pkg/security"
)

// Config holds the server's tunables.
type Config struct {
	// Addr is the listen address (e.g. ":8080").
	Addr string

	// BodyLimit caps request bodies in bytes; voice uploads dominate.
	BodyLimit int

	// APIKeyPepper is mixed into API key hashes.
	APIKeyPepper string
}

// Server is the gateway HTTP server.
type Server struct {
	app  *fiber.App
	cfg  Config
	deps Deps
}

// Deps bundles the server's collaborators.
type Deps struct {
	Store     store.Store
	Turns     voice.TurnHandler
	Voice     *voice.Pipeline
	Reporter  *analytics.Reporter
	Registry  *provider.Registry
	RateLimit *security.RateLimiter
}

// NewServer builds the server and mounts all routes.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 10 * 1024 * 1024
	}

	s := &Server{cfg: cfg, deps: deps}

	app := fiber.New(fiber.Config{
		AppName:               "turnpike",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
	})

	app.Use(cors.New())
	app.Use(s.metricsMiddleware)

	// Tenant bootstrap is the only unauthenticated route.
	app.Post("/tenants", s.handleCreateTenant)

	api := app.Group("/", s.authMiddleware, s.rateLimitMiddleware)
	api.Get("/tenants/me", s.handleTenantMe)

	api.Post("/agents", s.handleCreateAgent)
	api.Get("/agents", s.handleListAgents)
	api.Put("/agents/:id", s.handleUpdateAgent)

	api.Post("/sessions", s.handleCreateSession)
	api.Get("/sessions", s.handleListSessions)
	api.Get("/sessions/:id/transcript", s.handleTranscript)
	api.Post("/sessions/:id/messages", s.handleSendMessage)
	api.Post("/sessions/:id/voice", s.handleVoiceTurn)

	api.Get("/usage", s.handleUsage)

	s.app = app
	return s
}

// Start serves requests until Shutdown.
func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Addr)
}

// Shutdown gracefully stops the server, draining in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
