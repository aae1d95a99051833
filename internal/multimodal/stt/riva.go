package stt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nikhilbhutani/farmassist/internal/process"
)

// RivaConfig holds configuration for the Riva python client backend.
type RivaConfig struct {
	ClientBin    string // default: "python"
	ClientScript string // path to transcribe_file.py
	Server       string // host:port
	UseSSL       bool
	FunctionID   string
	APIKey       string
	LanguageCode string // default: "en-US"
}

// RivaClient transcribes audio by running the Riva ASR python client as a
// subprocess against a hosted function endpoint.
type RivaClient struct {
	cfg    RivaConfig
	runner process.Runner
}

// NewRivaClient creates a RivaClient. A nil runner uses os/exec.
func NewRivaClient(cfg RivaConfig, runner process.Runner) *RivaClient {
	if cfg.ClientBin == "" {
		cfg.ClientBin = "python"
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if runner == nil {
		runner = process.NewExecRunner()
	}
	return &RivaClient{cfg: cfg, runner: runner}
}

func (c *RivaClient) Name() string { return "riva" }

// Binary is the executable the client is launched with.
func (c *RivaClient) Binary() string { return c.cfg.ClientBin }

// Transcribe runs the client on req.FilePath. The transcript is whatever the
// client printed on stdout.
func (c *RivaClient) Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error) {
	lang := req.Language
	if lang == "" {
		lang = c.cfg.LanguageCode
	}
	args := c.args(req.FilePath, lang)

	res, err := c.runner.Run(ctx, c.cfg.ClientBin, args...)
	slog.Debug("riva client finished",
		"exit_code", res.ExitCode,
		"duration", res.Duration,
		"stdout", res.Stdout,
		"stderr", res.Stderr,
	)
	if err != nil {
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" {
			detail = err.Error()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			detail = "recognition timed out"
		}
		return nil, &ClientError{Backend: c.Name(), ExitCode: res.ExitCode, Detail: detail, Err: err}
	}

	return &TranscriptionResponse{
		Text:     strings.TrimSpace(res.Stdout),
		Language: lang,
	}, nil
}

func (c *RivaClient) args(path, lang string) []string {
	args := []string{c.cfg.ClientScript, "--server", c.cfg.Server}
	if c.cfg.UseSSL {
		args = append(args, "--use-ssl")
	}
	args = append(args,
		"--metadata", "function-id", c.cfg.FunctionID,
		"--metadata", "authorization", fmt.Sprintf("Bearer %s", c.cfg.APIKey),
		"--language-code", lang,
		"--input-file", path,
	)
	return args
}
