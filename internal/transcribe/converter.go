package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nikhilbhutani/farmassist/internal/process"
)

// Converter normalizes arbitrary input audio into mono 16 kHz 16-bit PCM WAV
// by running ffmpeg.
type Converter struct {
	ffmpegPath string
	runner     process.Runner
	timeout    time.Duration
	stat       func(name string) (os.FileInfo, error)
}

func NewConverter(ffmpegPath string, runner process.Runner, timeout time.Duration) *Converter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if runner == nil {
		runner = process.NewExecRunner()
	}
	return &Converter{
		ffmpegPath: ffmpegPath,
		runner:     runner,
		timeout:    timeout,
		stat:       os.Stat,
	}
}

// Binary is the transcoder executable.
func (c *Converter) Binary() string { return c.ffmpegPath }

// Convert writes the canonical rendition of src to dst.
func (c *Converter) Convert(ctx context.Context, src, dst string) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	res, err := c.runner.Run(ctx, c.ffmpegPath, ffmpegArgs(src, dst)...)
	if err != nil {
		slog.Warn("ffmpeg failed", "cmd", res.String(), "exit_code", res.ExitCode, "stderr", res.Stderr)
		cErr := &ConversionError{ExitCode: res.ExitCode, Stderr: res.Stderr, Err: err}
		if errors.Is(err, context.DeadlineExceeded) && cErr.Stderr == "" {
			cErr.Stderr = fmt.Sprintf("ffmpeg timed out after %s", c.timeout)
		}
		return cErr
	}

	if _, err := c.stat(dst); err != nil {
		return &ConversionError{
			Stderr: "ffmpeg completed but output file is missing",
			Err:    err,
		}
	}

	slog.Debug("ffmpeg finished", "cmd", res.String(), "duration", res.Duration)
	return nil
}

// ffmpegArgs decodes src and re-encodes it as single-channel 16 kHz
// pcm_s16le into dst.
func ffmpegArgs(src, dst string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", src,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		dst,
	}
}
