package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicore/peds-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Service   *scheduling.Service
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	JWTSecret string
	Logger    zerolog.Logger
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints are unauthenticated.
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Get("/available-slots", availableSlotsHandler(cfg.Service))
		r.Get("/available-slots-range", availableSlotsRangeHandler(cfg.Service))

		r.Post("/appointments", createAppointmentHandler(cfg.Service))
		r.Get("/appointments", listAppointmentsHandler(cfg.Service))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
		r.Patch("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))

		// Staff-only surface.
		r.Group(func(r chi.Router) {
			r.Use(RequireStaff)
			r.Put("/appointments/{id}/status", updateStatusHandler(cfg.Service))
			r.Post("/appointments/{id}/complete-vaccination", completeVaccinationHandler(cfg.Service))
			r.Get("/queue", queueHandler(cfg.Service))
		})
	})

	return r
}
