// Package api exposes the relay's HTTP surface: health and version probes,
// the agent info endpoint, and the streaming chat endpoint.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/agentrelay/agentrelay/internal/api/middleware"
	"github.com/agentrelay/agentrelay/internal/config"
	"github.com/agentrelay/agentrelay/internal/relay"
)

// AgentInfo is the static description served by GET /agent-info. It is
// fixed at startup once the agent version is resolved.
type AgentInfo struct {
	Name    string   `json:"name"`
	ID      string   `json:"id"`
	Version int      `json:"version"`
	Model   string   `json:"model,omitempty"`
	Source  string   `json:"source"`
	Tools   []string `json:"tools"`
}

// NewRouter creates the HTTP router with all routes.
func NewRouter(cfg *config.Config, rl *relay.Relay, info AgentInfo) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(middleware.BasicAuth(cfg.Auth.Username, cfg.Auth.Password))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))
	r.Get("/agent-info", agentInfoHandler(info))
	r.Post("/chat", chatHandler(rl))

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "agentrelay",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "agentrelay",
		})
	}
}

func agentInfoHandler(info AgentInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(info)
	}
}
