package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"ecosense/internal/handlers"
	"ecosense/internal/middleware"
	"ecosense/internal/websocket"
)

func New(
	resolver middleware.SessionResolver,
	authHandler *handlers.AuthHandler,
	chatHandler *handlers.ChatHandler,
	userHandler *handlers.UserHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per client)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		// ──── Session Routes ────
		r.Group(func(r chi.Router) {
			r.Use(middleware.SessionAuth(resolver))

			r.Get("/me", userHandler.Me)

			r.Get("/chat/history", chatHandler.History)
			r.Post("/chat/message", chatHandler.Send)
			r.Delete("/chat/history", chatHandler.Clear)
		})

		// ──── WebSocket ────
		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerFromQuery)
			r.Use(middleware.SessionAuth(resolver))

			r.Get("/chat/ws", wsHub.HandleWebSocket)
		})
	})

	return r
}
