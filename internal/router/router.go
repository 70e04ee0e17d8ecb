package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/windowpeers/backend/internal/bus"
	"github.com/windowpeers/backend/internal/config"
	"github.com/windowpeers/backend/internal/handlers"
	"github.com/windowpeers/backend/internal/middleware"
	"github.com/windowpeers/backend/internal/peers"
	"github.com/windowpeers/backend/internal/session"
	"github.com/windowpeers/backend/internal/ws"
)

// WSPath is where windows open their socket.
const WSPath = "/ws"

// Deps are the long-lived components the routes are served from.
type Deps struct {
	Bus      *bus.Bus
	Identity *peers.IdentityService
	Groups   *peers.Groups
	Sessions *session.Store
	Socket   *ws.Handler
}

// New builds the HTTP surface. ctx bounds background work such as the rate
// limiter's visitor sweep.
func New(ctx context.Context, cfg *config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewRealIP(cfg.TrustedProxies).Handler)
	r.Use(middleware.RequestContextMiddleware)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middleware.SessionMiddleware(deps.Sessions))

	configHandler := handlers.NewConfigHandler(cfg.EventPrefix, WSPath)
	groupHandler := handlers.NewGroupHandler(deps.Bus, deps.Identity, deps.Groups, deps.Sessions)

	// Upgrades and HTTP joins share one per-IP budget.
	limiter := middleware.NewRateLimiter(ctx, cfg.RateLimitPerMinute)

	r.With(limiter.Middleware).Handle(WSPath, deps.Socket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Health)
		r.Get("/config", configHandler.PublicConfig)
		r.Get("/session", groupHandler.Session)
		r.With(limiter.Middleware).Post("/groups/join", groupHandler.Join)
	})

	return r
}
