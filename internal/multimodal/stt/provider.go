package stt

import (
	"context"
	"fmt"
)

// TranscriptionRequest holds the parameters for audio transcription.
type TranscriptionRequest struct {
	FilePath string `json:"file_path"`
	Language string `json:"language,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
}

// TranscriptionResponse holds the transcription result.
type TranscriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// STTProvider is the interface for speech-to-text backends.
type STTProvider interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error)
	Name() string
}

// ClientError is returned when a recognizer backend rejected the audio or
// could not be reached. Detail carries the backend's own diagnostic text.
type ClientError struct {
	Backend  string
	ExitCode int
	Detail   string
	Err      error
}

func (e *ClientError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("%s exited with status %d: %s", e.Backend, e.ExitCode, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Backend, e.Detail)
}

func (e *ClientError) Unwrap() error { return e.Err }
