package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatsim/internal/api/middleware"
	"github.com/eldtechnologies/chatsim/internal/handlers"
	"github.com/eldtechnologies/chatsim/internal/hub"
	"github.com/eldtechnologies/chatsim/internal/session"
	"github.com/eldtechnologies/chatsim/internal/store"
)

// maxJSONBody caps every JSON request body.
const maxJSONBody = 16 * 1024

// multipartOverhead is the allowance for multipart framing on image uploads.
const multipartOverhead = 64 * 1024

// Options are the dependencies of the router.
type Options struct {
	Session   *session.Session
	Backend   store.Backend
	Hub       *hub.Hub
	Redis     *redis.Client // nil selects in-process rate limiting
	RateLimit middleware.RateLimiterConfig
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	var limiter *middleware.RateLimiter
	if opts.Redis != nil {
		limiter = middleware.NewRedisRateLimiter(opts.Redis, logger, opts.RateLimit)
	} else {
		limiter = middleware.NewLocalRateLimiter(logger, opts.RateLimit)
	}
	r.Use(limiter.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{handlers.WarningHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(opts.Session, opts.Backend, opts.Hub, logger)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", h.Health)
	r.Get("/ws", h.WebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", h.Root)
		r.Get("/stats", h.Stats)
		r.Get("/conversation", h.GetConversation)
		r.Get("/personas", h.ListPersonas)
		r.Get("/theme", h.GetTheme)

		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(maxJSONBody))

			r.Put("/persona", h.SelectPersona)
			r.Put("/theme", h.PutTheme)
			r.Post("/messages", h.PostMessage)
			r.Delete("/messages", h.ClearMessages)
			r.Delete("/messages/{index}", h.DeleteMessage)
			r.Post("/reactions", h.PostReaction)
		})

		r.With(middleware.MaxBodySize(opts.Session.MaxImageBytes() + multipartOverhead)).
			Post("/images", h.UploadImage)
	})

	return r
}

