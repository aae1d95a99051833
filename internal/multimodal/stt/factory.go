package stt

import (
	"fmt"

	"github.com/nikhilbhutani/farmassist/internal/config"
	"github.com/nikhilbhutani/farmassist/internal/process"
)

// New builds the backend selected by cfg.Backend.
func New(cfg config.STTConfig, runner process.Runner) (STTProvider, error) {
	switch cfg.Backend {
	case "", "riva":
		return NewRivaClient(RivaConfig{
			ClientBin:    cfg.ClientBin,
			ClientScript: cfg.ClientScript,
			Server:       cfg.Server,
			UseSSL:       cfg.UseSSL,
			FunctionID:   cfg.FunctionID,
			APIKey:       cfg.APIKey,
			LanguageCode: cfg.LanguageCode,
		}, runner), nil
	case "openai":
		return NewOpenAISTT(OpenAISTTConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}), nil
	case "local":
		return NewLocalSTT(LocalSTTConfig{BaseURL: cfg.LocalBaseURL}), nil
	default:
		return nil, fmt.Errorf("unknown STT backend %q", cfg.Backend)
	}
}
