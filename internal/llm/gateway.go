package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/farmassist/internal/config"
	"github.com/nikhilbhutani/farmassist/internal/metrics"
)

type gateway struct {
	providers        map[string]Provider
	defaultProvider  string
	fallbackProvider string
	fallbackModel    string
}

func NewGateway(cfg config.LLMConfig) Gateway {
	g := &gateway{
		providers:        make(map[string]Provider),
		defaultProvider:  cfg.DefaultProvider,
		fallbackProvider: cfg.FallbackProvider,
		fallbackModel:    cfg.FallbackModel,
	}

	if cfg.APIKey != "" {
		g.providers["openai"] = NewOpenAIProvider(cfg.APIKey, cfg.BaseURL)
	}
	if cfg.AnthropicKey != "" {
		g.providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicKey)
	}

	return g
}

// NewGatewayWithProviders builds a gateway over explicit providers.
func NewGatewayWithProviders(defaultProvider, fallbackProvider, fallbackModel string, providers ...Provider) Gateway {
	g := &gateway{
		providers:        make(map[string]Provider, len(providers)),
		defaultProvider:  defaultProvider,
		fallbackProvider: fallbackProvider,
		fallbackModel:    fallbackModel,
	}
	for _, p := range providers {
		g.providers[p.Name()] = p
	}
	return g
}

func (g *gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	providerName := g.providerFor(req)

	resp, err := g.chat(ctx, providerName, req)
	if err != nil && g.canFallback(providerName) {
		slog.Warn("primary provider failed, trying fallback",
			"primary", providerName,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		return g.chat(ctx, g.fallbackProvider, g.fallbackRequest(req))
	}
	return resp, err
}

func (g *gateway) chat(ctx context.Context, providerName string, req ChatRequest) (*ChatResponse, error) {
	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := p.ChatCompletion(ctx, req)
	record(providerName, start, err)
	return resp, err
}

func (g *gateway) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	providerName := g.providerFor(req)

	p, err := g.Provider(providerName)
	if err == nil {
		var ch <-chan StreamChunk
		start := time.Now()
		ch, err = p.ChatCompletionStream(ctx, req)
		record(providerName, start, err)
		if err == nil {
			return ch, nil
		}
	}
	if !g.canFallback(providerName) {
		return nil, err
	}

	slog.Warn("primary stream failed, trying fallback",
		"primary", providerName,
		"fallback", g.fallbackProvider,
		"error", err,
	)
	fb, fbErr := g.Provider(g.fallbackProvider)
	if fbErr != nil {
		return nil, fmt.Errorf("%w (fallback: %v)", err, fbErr)
	}
	start := time.Now()
	ch, fbErr := fb.ChatCompletionStream(ctx, g.fallbackRequest(req))
	record(g.fallbackProvider, start, fbErr)
	return ch, fbErr
}

func (g *gateway) providerFor(req ChatRequest) string {
	if req.Provider != "" {
		return req.Provider
	}
	return g.defaultProvider
}

func (g *gateway) canFallback(providerName string) bool {
	return g.fallbackProvider != "" && g.fallbackProvider != providerName
}

// fallbackRequest swaps the model, since model names are provider specific.
func (g *gateway) fallbackRequest(req ChatRequest) ChatRequest {
	req.Provider = g.fallbackProvider
	if g.fallbackModel != "" {
		req.Model = g.fallbackModel
	}
	return req
}

func record(provider string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.DefaultMetrics.UpstreamRequests.WithLabelValues(provider, status).Inc()
	metrics.DefaultMetrics.UpstreamLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}
