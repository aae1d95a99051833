package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/farmassist/internal/audit"
	"github.com/nikhilbhutani/farmassist/internal/queue"
	"github.com/nikhilbhutani/farmassist/internal/transcribe"
)

// RunRecorder persists one row per finished transcription.
type RunRecorder interface {
	RecordTranscription(ctx context.Context, run audit.TranscriptionRun) error
}

type TranscriptionWorker struct {
	pipeline *transcribe.Pipeline
	jobs     *queue.JobStore
	runs     RunRecorder
}

// NewTranscriptionWorker builds the handler for queue.TypeTranscribeAudio.
// runs may be nil.
func NewTranscriptionWorker(p *transcribe.Pipeline, jobs *queue.JobStore, runs RunRecorder) *TranscriptionWorker {
	return &TranscriptionWorker{pipeline: p, jobs: jobs, runs: runs}
}

// ProcessTask converts and transcribes a staged upload, then stores the
// outcome under the job id. Pipeline failures are job results, not task
// failures, so they return nil.
func (w *TranscriptionWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.TranscribeAudioPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	slog.Info("processing transcription job", "job_id", payload.WorkspaceID, "filename", payload.Filename)
	start := time.Now()

	ws, err := w.pipeline.Stager().Open(payload.WorkspaceID, payload.StagedName)
	if err != nil {
		w.finish(ctx, payload, "", err, time.Since(start))
		return fmt.Errorf("open workspace %s: %w: %w", payload.WorkspaceID, err, asynq.SkipRetry)
	}

	transcript, err := w.pipeline.Process(ctx, ws)
	w.finish(ctx, payload, transcript, err, time.Since(start))
	return nil
}

func (w *TranscriptionWorker) finish(ctx context.Context, p queue.TranscribeAudioPayload, transcript string, err error, took time.Duration) {
	now := time.Now().UTC()
	rec := queue.JobRecord{
		ID:         p.WorkspaceID,
		Filename:   p.Filename,
		FinishedAt: &now,
	}
	if err != nil {
		_, msg, detail := transcribe.Describe(err)
		rec.Status = queue.JobFailed
		rec.Error = msg
		rec.Details = detail
		slog.Warn("transcription job failed", "job_id", p.WorkspaceID, "error", err)
	} else {
		rec.Status = queue.JobCompleted
		rec.Transcription = transcript
		slog.Info("transcription job completed", "job_id", p.WorkspaceID, "chars", len(transcript), "duration", took)
	}

	// The result must outlive a cancelled task context.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if serr := w.jobs.Save(storeCtx, rec); serr != nil {
		slog.Error("failed to store job result", "job_id", p.WorkspaceID, "error", serr)
	}
	if w.runs != nil {
		run := audit.TranscriptionRun{
			ID:       p.WorkspaceID,
			Filename: p.Filename,
			Mode:     audit.ModeAsync,
			Outcome:  transcribe.Outcome(err),
			Detail:   rec.Details,
			Chars:    len(transcript),
			Duration: took,
		}
		if rerr := w.runs.RecordTranscription(storeCtx, run); rerr != nil {
			slog.Warn("failed to record transcription run", "job_id", p.WorkspaceID, "error", rerr)
		}
	}
}

// Logging logs the start and end of every task.
func Logging(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		err := next.ProcessTask(ctx, t)
		if err != nil {
			slog.Error("task failed", "type", t.Type(), "duration", time.Since(start), "error", err)
			return err
		}
		slog.Debug("task done", "type", t.Type(), "duration", time.Since(start))
		return nil
	})
}
