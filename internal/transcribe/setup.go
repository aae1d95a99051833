package transcribe

import (
	"fmt"

	"github.com/nikhilbhutani/farmassist/internal/config"
	"github.com/nikhilbhutani/farmassist/internal/multimodal/stt"
	"github.com/nikhilbhutani/farmassist/internal/process"
)

// FromConfig assembles the pipeline the API and the worker share. A nil
// runner runs real processes.
func FromConfig(cfg *config.Config, runner process.Runner) (*Pipeline, error) {
	if runner == nil {
		runner = process.NewExecRunner()
	}

	recognizer, err := stt.New(cfg.STT, runner)
	if err != nil {
		return nil, fmt.Errorf("recognizer: %w", err)
	}

	return NewPipeline(Options{
		Stager:            NewStager(cfg.Transcribe.UploadDir),
		Converter:         NewConverter(cfg.Transcribe.FFmpegPath, runner, cfg.Transcribe.ConvertTimeout),
		Recognizer:        recognizer,
		Pool:              NewPool(cfg.Transcribe.Workers),
		Language:          cfg.STT.LanguageCode,
		TranscribeTimeout: cfg.Transcribe.TranscribeTimeout,
	}), nil
}

// Binaries lists the executables the pipeline shells out to.
func (p *Pipeline) Binaries() []string {
	bins := []string{p.converter.Binary()}
	if b, ok := p.recognizer.(interface{ Binary() string }); ok {
		bins = append(bins, b.Binary())
	}
	return bins
}
