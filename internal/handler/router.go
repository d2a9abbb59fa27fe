/*
Package handler provides the HTTP handlers and routing setup for the SwiftChat relay.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to specific handlers (API and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"swiftchat/internal/pkg/auth/jwt"
	"swiftchat/internal/pkg/logx"
	"swiftchat/internal/pkg/resp"
)

// Router sets up the main HTTP routing table (chi.Router) for the relay.
// Every /api route runs behind the soft JWT extractor; handlers that need an identity
// reject anonymous callers themselves.
func Router(deps *AppDeps) http.Handler {
	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if deps.Config.IsDevelopment() || origin == "" {
				return true
			}

			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]string{
			"status":  "ok",
			"service": "SwiftChat Relay",
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Get("/protected", HandleProtected(deps))

		api.Route("/v1", func(v1 chi.Router) {
			v1.Route("/auth", func(auth chi.Router) {
				auth.Post("/register", HandleRegister(deps))
				auth.Post("/login", HandleLogin(deps))
			})

			v1.Route("/rooms", func(rooms chi.Router) {
				rooms.Get("/", HandleListRooms(deps))
				rooms.With(deps.CreateLimiter.Middleware).Post("/", HandleCreateRoom(deps))
				rooms.Post("/join", HandleJoinRoom(deps))
				rooms.Delete("/{id}", HandleDeleteRoom(deps))
			})

			v1.Get("/messages", HandleMessages(deps))
		})
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, deps))

	return r
}
