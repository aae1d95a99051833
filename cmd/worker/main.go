package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/farmassist/internal/audit"
	"github.com/nikhilbhutani/farmassist/internal/cache"
	"github.com/nikhilbhutani/farmassist/internal/config"
	"github.com/nikhilbhutani/farmassist/internal/database"
	"github.com/nikhilbhutani/farmassist/internal/queue"
	"github.com/nikhilbhutani/farmassist/internal/queue/workers"
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

	ctx := context.Background()

	pipeline, err := transcribe.FromConfig(cfg, nil)
	if err != nil {
		slog.Error("failed to build transcription pipeline", "error", err)
		os.Exit(1)
	}
	if err := pipeline.Stager().Init(); err != nil {
		slog.Error("failed to create upload directory", "dir", cfg.Transcribe.UploadDir, "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	jobs := queue.NewJobStore(cache.NewCache(rdb, "jobs"), cfg.Queue.JobResultTTL)

	// Audit trail (optional)
	var runs workers.RunRecorder
	if cfg.Database.URL != "" {
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Warn("database unavailable, running without audit trail", "error", err)
		} else {
			defer db.Close()
			runs = audit.NewStore(db)
		}
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	registry := queue.NewHandlersRegistry()
	registry.Use(workers.Logging)

	// Register workers
	transcriptionWorker := workers.NewTranscriptionWorker(pipeline, jobs, runs)
	registry.Register(queue.TypeTranscribeAudio, asynq.HandlerFunc(transcriptionWorker.ProcessTask))

	slog.Info("starting worker",
		"concurrency", cfg.Queue.Concurrency,
		"stt_backend", cfg.STT.Backend,
		"upload_dir", cfg.Transcribe.UploadDir,
	)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
