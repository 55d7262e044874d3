package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/DoyleJ11/opsboard-relay/internal/audit"
	"github.com/DoyleJ11/opsboard-relay/internal/metrics"
	"github.com/DoyleJ11/opsboard-relay/internal/presence"
	"github.com/DoyleJ11/opsboard-relay/internal/protocol"
	"github.com/DoyleJ11/opsboard-relay/internal/telemetry"
	"github.com/DoyleJ11/opsboard-relay/internal/ws"
)

// Deps is everything the router serves from.
type Deps struct {
	Store     Store
	Bus       Broadcaster
	Presence  *presence.Registry
	Audit     *audit.Log
	Telemetry *telemetry.Stream
	Metrics   *metrics.Collector
	Logger    *zap.Logger

	// Protocol enables /ws when set.
	Protocol  *protocol.Handler
	WSOptions ws.Options

	GameSecret     string
	AllowedOrigins []string
}

func SetupRoutes(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	h := NewHandlers(d)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(Logger(log.Named("access"), d.Metrics))

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", GameSecretHeader},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Get("/boards/{id}", h.GetBoard)
	r.Put("/boards/{id}", h.PutBoard)

	r.Get("/game-config", h.GetGameConfig)
	r.Post("/game-config", h.PostGameConfig)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/logs", h.AdminLogs)
		r.Get("/users", h.AdminUsers)
		r.Get("/stats", h.AdminStats)
	})

	r.Route("/api/roblox", func(r chi.Router) {
		r.Use(RequireGameSecret(d.GameSecret, log.Named("auth")))
		r.Get("/config", h.GetGameConfig)
		r.Post("/logs", h.GameLogs)
		r.Post("/players", h.Players)
	})

	if d.Protocol != nil {
		var obs ws.ConnObserver
		if d.Metrics != nil {
			obs = d.Metrics
		}
		r.Get("/ws", ws.Handler(d.Protocol, d.WSOptions, obs, log))
	}
	return r
}
