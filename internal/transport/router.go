package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig wires the HTTP surface around a live Hub: the WebSocket
// upgrade endpoint plus the minimal read-only telemetry surface
// (liveness, prometheus scrape, admin stats) the teacher's own
// internal/api/router.go exposes for its game engine.
type RouterConfig struct {
	Hub            *Hub
	CORSOrigins    []string
	DisableLogging bool
}

// NewRouter constructs the HTTP router. It is pure: no goroutines, no
// listeners, safe to use with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	origins := cfg.CORSOrigins
	if origins == nil {
		origins = allowedOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		cfg.Hub.ServeWS(w, req)
	})
	r.Get("/health", HealthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/admin", func(r chi.Router) {
		r.Get("/stats", adminStatsHandler(cfg.Hub))
	})

	return r
}

type adminStats struct {
	ConnectionsActive int `json:"connectionsActive"`
}

// adminStatsHandler is a read-only telemetry surface, never a gameplay
// path — the per-room/per-player simulation state never crosses it.
func adminStatsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(adminStats{ConnectionsActive: hub.Count()})
	}
}
