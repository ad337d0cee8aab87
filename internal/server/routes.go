package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	v1 "github.com/taskflow-io/taskflow/internal/api/v1"
	"github.com/taskflow-io/taskflow/internal/server/middleware"
)

func (s *Server) registerRoutes(ctx context.Context) {
	// Two sub-groups under /api/v1:
	// 1. Unauthenticated auth endpoints, rate limited per IP.
	// 2. Authenticated endpoints, rate limited per user.
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(ctx, 5, 10))

			authConfig := huma.DefaultConfig("TaskFlow Auth API", "1.0.0")
			authConfig.Servers = []*huma.Server{
				{URL: "/api/v1"},
			}
			authAPI := humachi.New(r, authConfig)
			v1.RegisterAuthRoutes(authAPI, s.auth)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(s.cfg.JWT.Secret))
			r.Use(middleware.RateLimit(ctx, 100, 200))

			apiConfig := huma.DefaultConfig("TaskFlow API", "1.0.0")
			apiConfig.Servers = []*huma.Server{
				{URL: "/api/v1"},
			}
			api := humachi.New(r, apiConfig)
			v1.RegisterLogoutRoute(api, s.auth)
			v1.RegisterUserRoutes(api, s.store)
			v1.RegisterProjectRoutes(api, s.store, s.hub, s.recorder)
			v1.RegisterMemberRoutes(api, s.store, s.hub, s.recorder, s.cache)
			v1.RegisterTaskRoutes(api, s.store, s.hub, s.recorder, s.cache)
			v1.RegisterCommentRoutes(api, s.store, s.hub, s.recorder, s.cache)
			v1.RegisterActivityRoutes(api, s.store, s.cfg.Realtime.ActivityLimit)
		})
	})

	// The hub authenticates the websocket handshake itself, token cookie or
	// access_token query parameter.
	s.router.Get("/ws/tasks", s.hub.ServeTasks)

	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
}
