package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/farmassist/internal/audit"
	"github.com/nikhilbhutani/farmassist/internal/queue"
	"github.com/nikhilbhutani/farmassist/internal/transcribe"
)

const (
	audioField     = "audio"
	noFilePart     = "No file part"
	uploadTooLarge = "upload too large"
)

var errNoFilePart = errors.New(noFilePart)

// RunRecorder persists finished transcriptions.
type RunRecorder interface {
	RecordTranscription(ctx context.Context, run audit.TranscriptionRun) error
}

type TranscribeHandler struct {
	pipeline *transcribe.Pipeline
	maxBytes int64
	queue    queue.Enqueuer
	jobs     *queue.JobStore
	runs     RunRecorder
}

// NewTranscribeHandler wires the synchronous endpoint. enq and jobs enable
// the job endpoints; runs enables the audit trail. Any of them may be nil.
func NewTranscribeHandler(p *transcribe.Pipeline, maxBytes int64, enq queue.Enqueuer, jobs *queue.JobStore, runs RunRecorder) *TranscribeHandler {
	return &TranscribeHandler{pipeline: p, maxBytes: maxBytes, queue: enq, jobs: jobs, runs: runs}
}

// Transcribe runs the whole pipeline on the uploaded audio and answers with
// the transcript.
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	part, err := h.audioPart(w, r)
	if err != nil {
		h.writeUploadError(w, err)
		return
	}
	defer part.Close()

	transcript, err := h.pipeline.Run(r.Context(), transcribe.Upload{
		Filename: part.FileName(),
		Body:     part,
	})
	h.record(r, part.FileName(), transcript, err, time.Since(start))
	if err != nil {
		h.writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"transcription": transcript})
}

// Submit stages the upload and queues it for a worker.
func (h *TranscribeHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "job queue not configured")
		return
	}

	part, err := h.audioPart(w, r)
	if err != nil {
		h.writeUploadError(w, err)
		return
	}
	defer part.Close()

	ws, err := h.pipeline.Stager().Stage(r.Context(), part.FileName(), part)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}

	err = h.queue.EnqueueTranscription(r.Context(), queue.TranscribeAudioPayload{
		WorkspaceID: ws.ID,
		StagedName:  filepath.Base(ws.StagedPath),
		Filename:    part.FileName(),
	})
	if err != nil {
		ws.Cleanup()
		slog.Error("failed to enqueue transcription", "workspace", ws.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to queue transcription")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": ws.ID, "status": queue.JobPending})
}

// Job reports the state of a queued transcription.
func (h *TranscribeHandler) Job(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "job queue not configured")
		return
	}

	rec, err := h.jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		slog.Error("failed to read job", "job_id", chi.URLParam(r, "id"), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read job")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// audioPart streams the request body up to the audio file part.
func (h *TranscribeHandler) audioPart(w http.ResponseWriter, r *http.Request) (*multipart.Part, error) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, errNoFilePart
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoFilePart
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == audioField && hasFilename(part) {
			return part, nil
		}
		part.Close()
	}
}

// hasFilename distinguishes a file part, even one with an empty filename,
// from a plain form value of the same name.
func hasFilename(p *multipart.Part) bool {
	_, params, err := mime.ParseMediaType(p.Header.Get("Content-Disposition"))
	if err != nil {
		return false
	}
	_, ok := params["filename"]
	return ok
}

func (h *TranscribeHandler) writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, uploadTooLarge)
		return
	}
	writeError(w, http.StatusBadRequest, noFilePart)
}

func (h *TranscribeHandler) writePipelineError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, uploadTooLarge)
		return
	}

	status, msg, detail := transcribe.Describe(err)
	body := map[string]string{"error": msg}
	if detail != "" {
		body["details"] = detail
	}
	writeJSON(w, status, body)
}

func (h *TranscribeHandler) record(r *http.Request, filename, transcript string, err error, took time.Duration) {
	if h.runs == nil {
		return
	}
	_, _, detail := transcribe.Describe(err)
	run := audit.TranscriptionRun{
		ID:       chimiddleware.GetReqID(r.Context()),
		Filename: filename,
		Mode:     audit.ModeSync,
		Outcome:  transcribe.Outcome(err),
		Chars:    len(transcript),
		Duration: took,
	}
	if err != nil {
		run.Detail = detail
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	defer cancel()
	if rerr := h.runs.RecordTranscription(ctx, run); rerr != nil {
		slog.Warn("failed to record transcription run", "error", rerr)
	}
}
