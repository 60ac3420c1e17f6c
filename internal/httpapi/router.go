package httpapi

import (
	"net/http"

	"foodorder-be/internal/logger"
	"foodorder-be/internal/middleware"
	"foodorder-be/internal/utils"

	"github.com/go-chi/chi/v5"
)

type RouterDeps struct {
	Handler       *Handler
	Metrics       http.Handler
	Limiter       *middleware.RateLimiter
	JWTSecret     string
	AllowedOrigin string
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(middleware.CORS(d.AllowedOrigin))
	r.Use(middleware.AuthMiddleware(d.JWTSecret))
	if d.Limiter != nil {
		r.Use(d.Limiter.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser)
		d.Handler.RegisterRoutes(r)
	})

	return r
}
