// Package audit records transcription runs and upstream model usage in
// postgres.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nikhilbhutani/farmassist/internal/llm"
)

const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

// Execer is the part of pgxpool.Pool the store uses.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// TranscriptionRun is one finished pipeline run.
type TranscriptionRun struct {
	ID       string
	Filename string
	Mode     string
	Outcome  string
	Detail   string
	Chars    int
	Duration time.Duration
}

type Store struct {
	db Execer
}

func NewStore(db Execer) *Store {
	return &Store{db: db}
}

func (s *Store) RecordTranscription(ctx context.Context, run TranscriptionRun) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO transcription_runs (workspace_id, filename, mode, outcome, detail, transcript_chars, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.Filename, run.Mode, run.Outcome, run.Detail, run.Chars, run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert transcription run: %w", err)
	}
	return nil
}

func (s *Store) LogLLMUsage(ctx context.Context, endpoint string, resp *llm.ChatResponse, latency time.Duration) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO llm_usage_logs (provider, model, input_tokens, output_tokens, total_tokens, latency_ms, endpoint)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		resp.Provider, resp.Model, resp.InputTokens, resp.OutputTokens, resp.TotalTokens, latency.Milliseconds(), endpoint,
	)
	if err != nil {
		return fmt.Errorf("insert LLM usage log: %w", err)
	}
	return nil
}

// RecordChat logs usage and swallows failures; usage rows never block an
// answer.
func (s *Store) RecordChat(ctx context.Context, endpoint string, resp *llm.ChatResponse, latency time.Duration) {
	if err := s.LogLLMUsage(ctx, endpoint, resp, latency); err != nil {
		slog.Warn("failed to record llm usage", "endpoint", endpoint, "error", err)
	}
}
