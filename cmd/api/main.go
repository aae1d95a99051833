package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/farmassist/internal/advisor"
	"github.com/nikhilbhutani/farmassist/internal/api"
	"github.com/nikhilbhutani/farmassist/internal/audit"
	"github.com/nikhilbhutani/farmassist/internal/cache"
	"github.com/nikhilbhutani/farmassist/internal/config"
	"github.com/nikhilbhutani/farmassist/internal/database"
	"github.com/nikhilbhutani/farmassist/internal/llm"
	"github.com/nikhilbhutani/farmassist/internal/multimodal"
	"github.com/nikhilbhutani/farmassist/internal/queue"
	"github.com/nikhilbhutani/farmassist/internal/transcribe"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Warn("incomplete configuration", "error", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	deps := api.Deps{}

	// Database connection (optional)
	var db *pgxpool.Pool
	if cfg.Database.URL != "" {
		db, err = database.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Warn("database unavailable, running without DB", "error", err)
			db = nil
		} else {
			defer db.Close()
			if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsPath); err != nil {
				slog.Warn("migrations failed", "error", err)
			}
		}
	}

	var usage advisor.UsageRecorder
	if db != nil {
		store := audit.NewStore(db)
		deps.DB = db
		deps.Runs = store
		usage = store
	}

	// Redis connection (optional)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	var advisorCache *cache.Cache
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, running without cache or jobs", "error", err)
	} else {
		deps.Redis = rdb
		advisorCache = cache.NewCache(rdb, "advisor")
		deps.Jobs = queue.NewJobStore(cache.NewCache(rdb, "jobs"), cfg.Queue.JobResultTTL)

		qc := queue.NewClient(cfg.Redis, cfg.Queue.JobTimeout)
		defer qc.Close()
		deps.Queue = qc
	}

	pipeline, err := transcribe.FromConfig(cfg, nil)
	if err != nil {
		slog.Error("failed to build transcription pipeline", "error", err)
		os.Exit(1)
	}
	if err := pipeline.Stager().Init(); err != nil {
		slog.Error("failed to create upload directory", "dir", cfg.Transcribe.UploadDir, "error", err)
		os.Exit(1)
	}
	deps.Pipeline = pipeline
	deps.Binaries = pipeline.Binaries()

	deps.Advisor = advisor.NewService(llm.NewGateway(cfg.LLM), cfg.LLM.DefaultModel, advisorCache, cfg.Cache.AdvisorTTL, usage)
	deps.Vision = multimodal.NewVisionService(multimodal.VisionConfig{
		APIKey:  cfg.Vision.APIKey,
		BaseURL: cfg.Vision.BaseURL,
		Model:   cfg.Vision.Model,
	})

	// Setup router
	router := api.NewRouter(cfg, deps)
	handler := router.Setup()
	go router.Sweep(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		// Transcription holds the request open for conversion plus
		// recognition.
		WriteTimeout: cfg.Transcribe.ConvertTimeout + cfg.Transcribe.TranscribeTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server",
			"addr", cfg.Addr(),
			"stt_backend", cfg.STT.Backend,
			"upload_dir", cfg.Transcribe.UploadDir,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
