package handler

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/session"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/upload"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/taskdash-api/shared/validation"
)

// RouterDeps holds everything the HTTP surface needs.
type RouterDeps struct {
	AuthUsecase  usecase.AuthUsecase
	FaceUsecase  usecase.FaceUsecase
	TokenUsecase usecase.TokenUsecase
	Binder       *session.Binder
	Uploads      *upload.Store
	Validator    *validation.Validator
	HealthCheck  HealthCheck

	// RateLimiter is optional; without it no limits apply.
	RateLimiter RateLimiter

	// TrustedProxies lists the peers whose forwarding headers name the client.
	TrustedProxies []netip.Prefix
	AllowedOrigins []string
	Logger         *zerolog.Logger
}

// NewRouter builds the auth service's HTTP handler.
func NewRouter(deps RouterDeps) http.Handler {
	h := newAuthHTTPHandler(
		deps.AuthUsecase,
		deps.FaceUsecase,
		deps.TokenUsecase,
		deps.Binder,
		deps.Uploads,
		deps.Validator,
		deps.HealthCheck,
		deps.Logger,
	)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(realIP(deps.TrustedProxies))
	r.Use(hlog.NewHandler(*deps.Logger))
	r.Use(requestIDLogger)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{"Retry-After", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	limit := rateLimit(deps.RateLimiter)

	r.Get("/healthz", h.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/register", h.register)
			r.With(limit).Post("/login", h.login)
			r.With(limit).Post("/refresh-token", h.refreshToken)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAuth)
				r.Get("/profile", h.profile)
				r.Post("/logout", h.logout)
			})
		})

		r.Route("/auth", func(r chi.Router) {
			r.Use(limit)
			r.Post("/face-register", h.faceRegister)
			r.Post("/face-login", h.faceLogin)
		})
	})

	return r
}
