// Package transcribe turns an uploaded audio file into text by staging it,
// converting it to canonical PCM with ffmpeg and handing it to a recognizer.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/farmassist/internal/metrics"
	"github.com/nikhilbhutani/farmassist/internal/multimodal/stt"
)

// State is a step of one pipeline run.
type State string

const (
	StateReceived       State = "received"
	StateStaged         State = "staged"
	StateConverted      State = "converted"
	StateTranscribed    State = "transcribed"
	StateCleanedSuccess State = "cleaned_success"
	StateCleanedFailure State = "cleaned_failure"
)

// Upload is one inbound audio file.
type Upload struct {
	Filename string
	Body     io.Reader
}

// Options configures a Pipeline.
type Options struct {
	Stager            *Stager
	Converter         *Converter
	Recognizer        stt.STTProvider
	Pool              *Pool
	Language          string
	TranscribeTimeout time.Duration
	// OnState observes every transition; runID is the workspace id, or
	// empty before staging.
	OnState func(runID string, s State)
}

// Pipeline sequences stage, convert, transcribe and cleanup.
type Pipeline struct {
	stager            *Stager
	converter         *Converter
	recognizer        stt.STTProvider
	pool              *Pool
	language          string
	transcribeTimeout time.Duration
	onState           func(string, State)
	metrics           *metrics.Metrics
}

func NewPipeline(opts Options) *Pipeline {
	pool := opts.Pool
	if pool == nil {
		pool = NewPool(1)
	}
	return &Pipeline{
		stager:            opts.Stager,
		converter:         opts.Converter,
		recognizer:        opts.Recognizer,
		pool:              pool,
		language:          opts.Language,
		transcribeTimeout: opts.TranscribeTimeout,
		onState:           opts.OnState,
		metrics:           metrics.DefaultMetrics,
	}
}

// Stager exposes the stager so uploads can be staged ahead of Process.
func (p *Pipeline) Stager() *Stager { return p.stager }

// Run executes the whole pipeline for one upload. Every artifact it creates
// is gone by the time Run returns.
func (p *Pipeline) Run(ctx context.Context, up Upload) (string, error) {
	p.transition("", StateReceived)

	start := time.Now()
	ws, err := p.stager.Stage(ctx, up.Filename, up.Body)
	p.observe("stage", start)
	if err != nil {
		p.finish("", err)
		return "", err
	}
	p.transition(ws.ID, StateStaged)

	return p.Process(ctx, ws)
}

// Process runs convert and transcribe on an already staged workspace and
// always cleans it up.
func (p *Pipeline) Process(ctx context.Context, ws *Workspace) (transcript string, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("transcription pipeline panicked", "workspace", ws.ID, "panic", r)
			transcript, err = "", &UnexpectedError{Err: fmt.Errorf("panic: %v", r)}
		}
		ws.Cleanup()
		p.finish(ws.ID, err)
	}()

	start := time.Now()
	err = p.converter.Convert(ctx, ws.StagedPath, ws.CanonicalPath)
	p.observe("convert", start)
	if err != nil {
		return "", err
	}
	p.transition(ws.ID, StateConverted)

	start = time.Now()
	transcript, err = p.recognize(ctx, ws.CanonicalPath)
	p.observe("transcribe", start)
	if err != nil {
		return "", err
	}
	p.transition(ws.ID, StateTranscribed)

	return transcript, nil
}

func (p *Pipeline) recognize(ctx context.Context, path string) (string, error) {
	var resp *stt.TranscriptionResponse
	err := p.pool.Do(ctx, func(ctx context.Context) error {
		if p.transcribeTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.transcribeTimeout)
			defer cancel()
		}
		var err error
		resp, err = p.recognizer.Transcribe(ctx, stt.TranscriptionRequest{
			FilePath: path,
			Language: p.language,
		})
		return err
	})
	if err != nil {
		return "", transcriptionError(err)
	}
	if resp == nil || resp.Text == "" {
		return "", &TranscriptionError{
			Reason: "Transcription failed",
			Detail: "recognizer returned an empty transcript",
		}
	}
	return resp.Text, nil
}

func transcriptionError(err error) error {
	var (
		cErr *stt.ClientError
		uErr *UnexpectedError
	)
	switch {
	case errors.As(err, &uErr):
		return err
	case errors.As(err, &cErr):
		return &TranscriptionError{Reason: "Transcription failed", Detail: cErr.Detail, Err: err}
	case errors.Is(err, context.Canceled):
		return &TranscriptionError{Reason: "Transcription cancelled", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &TranscriptionError{Reason: "Transcription failed", Detail: "recognition timed out", Err: err}
	default:
		return &TranscriptionError{Reason: "Transcription failed", Detail: err.Error(), Err: err}
	}
}

func (p *Pipeline) transition(id string, s State) {
	slog.Debug("transcription state", "workspace", id, "state", string(s))
	if p.onState != nil {
		p.onState(id, s)
	}
}

func (p *Pipeline) finish(id string, err error) {
	outcome := Outcome(err)
	p.metrics.PipelineRuns.WithLabelValues(outcome).Inc()
	if err != nil {
		slog.Warn("transcription failed", "workspace", id, "outcome", outcome, "error", err)
		p.transition(id, StateCleanedFailure)
		return
	}
	slog.Info("transcription completed", "workspace", id)
	p.transition(id, StateCleanedSuccess)
}

func (p *Pipeline) observe(stage string, start time.Time) {
	p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
