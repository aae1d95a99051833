package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/farmassist/internal/advisor"
	"github.com/nikhilbhutani/farmassist/internal/api/handlers"
	"github.com/nikhilbhutani/farmassist/internal/api/middleware"
	"github.com/nikhilbhutani/farmassist/internal/auth"
	"github.com/nikhilbhutani/farmassist/internal/config"
	"github.com/nikhilbhutani/farmassist/internal/multimodal"
	"github.com/nikhilbhutani/farmassist/internal/queue"
	"github.com/nikhilbhutani/farmassist/internal/transcribe"
)

// Deps are the services the router exposes. DB, Redis, Queue, Jobs and
// Runs are optional.
type Deps struct {
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Pipeline *transcribe.Pipeline
	Advisor  *advisor.Service
	Vision   *multimodal.VisionService
	Queue    queue.Enqueuer
	Jobs     *queue.JobStore
	Runs     handlers.RunRecorder
	// Binaries must resolve on PATH for /readyz to pass.
	Binaries []string
}

type Router struct {
	mux  *chi.Mux
	cfg  *config.Config
	deps Deps
	jwt  *auth.JWTMiddleware
	rl   *middleware.RateLimiter
}

func NewRouter(cfg *config.Config, deps Deps) *Router {
	rt := &Router{
		mux:  chi.NewRouter(),
		cfg:  cfg,
		deps: deps,
		rl:   middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
	}
	if cfg.Auth.JWTSecret != "" {
		rt.jwt = auth.NewJWTMiddleware(cfg.Auth.JWTSecret)
	}
	return rt
}

// Sweep evicts idle rate limiter entries until ctx ends.
func (rt *Router) Sweep(ctx context.Context) {
	rt.rl.Sweep(ctx, time.Minute, 3*time.Minute)
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.AllowedOrigins))

	health := handlers.NewHealthHandler(rt.deps.DB, rt.deps.Redis, rt.deps.Binaries...)
	r.Get("/", health.Root)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(rt.rl.Limit)
		if rt.jwt != nil {
			r.Use(rt.jwt.Authenticate)
		}

		transcribeH := handlers.NewTranscribeHandler(
			rt.deps.Pipeline,
			rt.cfg.Server.MaxUploadBytes,
			rt.deps.Queue,
			rt.deps.Jobs,
			rt.deps.Runs,
		)
		r.Route("/api/transcribe", func(r chi.Router) {
			r.Post("/", transcribeH.Transcribe)
			r.Post("/jobs", transcribeH.Submit)
			r.Get("/jobs/{id}", transcribeH.Job)
		})

		if rt.deps.Advisor != nil {
			advisorH := handlers.NewAdvisorHandler(rt.deps.Advisor)
			r.Get("/query", advisorH.Query)
			r.Get("/farm-management-chatbot", advisorH.FarmManagement)
			r.Get("/weather-analyst", advisorH.WeatherAnalyst)
		}

		if rt.deps.Vision != nil {
			cropH := handlers.NewCropHandler(rt.deps.Vision, rt.cfg.Server.MaxUploadBytes)
			r.Post("/analyze-crop", cropH.Analyze)
		}
	})

	return r
}
