package transcribe

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ValidationError is a client input fault: missing upload, empty filename
// or a container format outside the allow-list.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConversionError reports that the transcoder did not produce canonical
// audio. Stderr is the tool's diagnostic text, verbatim.
type ConversionError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ConversionError) Error() string {
	detail := strings.TrimSpace(e.Stderr)
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	return fmt.Sprintf("Audio conversion failed: %s", detail)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// TranscriptionError reports a recognizer failure, including credential and
// network faults surfaced by the recognition client.
type TranscriptionError struct {
	Reason string
	Detail string
	Err    error
}

func (e *TranscriptionError) Error() string {
	if e.Detail == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// UnexpectedError wraps any other fault reached inside the pipeline.
type UnexpectedError struct {
	Err error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected pipeline error: %v", e.Err)
}

func (e *UnexpectedError) Unwrap() error { return e.Err }

const unexpectedMessage = "An unexpected error occurred"

// Outcome is the metric/log label for a terminal pipeline result.
func Outcome(err error) string {
	var (
		vErr *ValidationError
		cErr *ConversionError
		tErr *TranscriptionError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &vErr):
		return "validation_error"
	case errors.As(err, &cErr):
		return "conversion_error"
	case errors.As(err, &tErr):
		return "transcription_error"
	default:
		return "unexpected_error"
	}
}

// Describe maps a pipeline error to an HTTP status, the message safe to
// show a caller, and the optional diagnostic detail.
func Describe(err error) (status int, message, detail string) {
	var (
		vErr *ValidationError
		cErr *ConversionError
		tErr *TranscriptionError
	)
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, vErr.Message, ""
	case errors.As(err, &cErr):
		return http.StatusInternalServerError, cErr.Error(), ""
	case errors.As(err, &tErr):
		return http.StatusInternalServerError, tErr.Error(), tErr.Detail
	default:
		return http.StatusInternalServerError, unexpectedMessage, ""
	}
}
