// Package advisor answers farming questions through the chat gateway.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nikhilbhutani/farmassist/internal/cache"
	"github.com/nikhilbhutani/farmassist/internal/llm"
	"github.com/nikhilbhutani/farmassist/internal/metrics"
)

// Answer is one advisor reply.
type Answer struct {
	Response string `json:"response"`
	Model    string `json:"model,omitempty"`
	Cached   bool   `json:"-"`
}

// UsageRecorder receives one record per upstream call.
type UsageRecorder interface {
	RecordChat(ctx context.Context, endpoint string, resp *llm.ChatResponse, latency time.Duration)
}

type Service struct {
	gateway llm.Gateway
	model   string
	cache   *cache.Cache
	ttl     time.Duration
	usage   UsageRecorder
}

// NewService builds an advisor. cache and usage may be nil.
func NewService(gw llm.Gateway, model string, c *cache.Cache, ttl time.Duration, usage UsageRecorder) *Service {
	return &Service{gateway: gw, model: model, cache: c, ttl: ttl, usage: usage}
}

// Ask answers query in the voice of persona.
func (s *Service) Ask(ctx context.Context, p Persona, query string) (*Answer, error) {
	return s.complete(ctx, p, query)
}

// AnalyzeWeather answers query using the supplied weather observations.
func (s *Service) AnalyzeWeather(ctx context.Context, query string, w *Weather) (*Answer, error) {
	prompt := fmt.Sprintf(
		"User Query: %s\nCurrent Weather Details:\n%s\n\nBased on this weather data, provide the best farming advice relevant to the user's query.",
		query, w.Format(),
	)
	return s.complete(ctx, WeatherAnalyst, prompt)
}

func (s *Service) complete(ctx context.Context, p Persona, prompt string) (*Answer, error) {
	key := p.Name + ":" + cache.Fingerprint(s.model, prompt)
	if ans, ok := s.lookup(ctx, key); ok {
		return ans, nil
	}

	start := time.Now()
	ch, err := s.gateway.ChatStream(ctx, p.request(s.model, prompt))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name, err)
	}
	resp, err := llm.Collect(ctx, ch)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name, err)
	}
	resp.Model = s.model
	if s.usage != nil {
		s.usage.RecordChat(ctx, p.Name, resp, time.Since(start))
	}

	ans := &Answer{Response: strings.TrimSpace(resp.Content), Model: s.model}
	slog.Debug("advisor answered", "persona", p.Name, "chars", len(ans.Response), "latency", time.Since(start))

	if s.cache != nil && ans.Response != "" {
		if err := s.cache.Set(ctx, key, ans, s.ttl); err != nil {
			slog.Warn("advisor cache write failed", "error", err)
		}
	}
	return ans, nil
}

func (s *Service) lookup(ctx context.Context, key string) (*Answer, bool) {
	if s.cache == nil {
		return nil, false
	}
	var ans Answer
	err := s.cache.Get(ctx, key, &ans)
	switch {
	case err == nil:
		metrics.DefaultMetrics.CacheLookups.WithLabelValues("hit").Inc()
		ans.Cached = true
		return &ans, true
	case errors.Is(err, cache.ErrMiss):
		metrics.DefaultMetrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.DefaultMetrics.CacheLookups.WithLabelValues("error").Inc()
		slog.Warn("advisor cache read failed", "error", err)
	}
	return nil, false
}
