package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-identity-service/internal/config"
	"go-identity-service/internal/handler"
	"go-identity-service/internal/middleware"
	"go-identity-service/internal/service"
)

type Handlers struct {
	Auth  *handler.AuthHandler
	User  *handler.UserHandler
	Audit *handler.AuditHandler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, handlers Handlers, health http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.IdentityRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", health)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/identity", func(identity chi.Router) {
			identity.Post("/register", handlers.Auth.Register)
			identity.Post("/login", handlers.Auth.Login)
			identity.Post("/refresh", handlers.Auth.Refresh)
			identity.With(authMiddleware.RequireAuth).Get("/me", handlers.Auth.Me)
		})

		api.With(authMiddleware.RequireAuth, authMiddleware.RequireRoles(service.RoleAdmin)).Get("/users", handlers.User.List)
		api.With(authMiddleware.RequireAuth, authMiddleware.RequireRoles(service.RoleAdmin)).Get("/audit", handlers.Audit.List)
	})

	return r
}
