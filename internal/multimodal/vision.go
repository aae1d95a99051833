package multimodal

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nikhilbhutani/farmassist/internal/metrics"
)

// MaxInlineImageChars is the longest base64 payload the vision endpoint
// accepts inline.
const MaxInlineImageChars = 180_000

const cropSystemPrompt = "You are a crop detector and disease analyzer. Your Response should be to tell what the crop is which is given in content and if there are any diseases present in the crop, and how to treat them."

// ErrImageTooLarge is returned when the prepared image still exceeds
// MaxInlineImageChars once encoded.
var ErrImageTooLarge = errors.New("Image is too large. To upload larger images, use the assets API.")

// UpstreamError reports a failed call to the vision model.
type UpstreamError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("External API error: %d - %s", e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// VisionConfig holds the vision model endpoint settings.
type VisionConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// VisionService identifies crops and diseases in photos using a
// vision-capable chat model.
type VisionService struct {
	client *openai.Client
	model  string
}

func NewVisionService(cfg VisionConfig) *VisionService {
	if cfg.Model == "" {
		cfg.Model = "microsoft/phi-3.5-vision-instruct"
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &VisionService{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

// CropAnalysis is the model's assessment of one photo.
type CropAnalysis struct {
	Response string `json:"response"`
	Model    string `json:"model,omitempty"`
}

// AnalyzeCrop prepares image and asks the model what crop it shows and
// whether it looks diseased. description is the user's own question.
func (v *VisionService) AnalyzeCrop(ctx context.Context, image []byte, description string) (*CropAnalysis, error) {
	img, err := PrepareImage(image)
	if err != nil {
		return nil, err
	}

	encoded := base64.StdEncoding.EncodeToString(img.Data)
	if len(encoded) >= MaxInlineImageChars {
		return nil, ErrImageTooLarge
	}

	slog.Debug("analyzing crop image",
		"source_format", img.SourceFormat,
		"width", img.Width,
		"height", img.Height,
		"resized", img.Resized,
		"b64_chars", len(encoded),
	)

	start := time.Now()
	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: v.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: cropSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: cropUserContent(description, encoded)},
		},
		MaxTokens:   1024,
		Temperature: 0.7,
		TopP:        0.7,
	})
	metrics.DefaultMetrics.UpstreamLatency.WithLabelValues("vision").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DefaultMetrics.UpstreamRequests.WithLabelValues("vision", "error").Inc()
		return nil, upstreamError(err)
	}
	metrics.DefaultMetrics.UpstreamRequests.WithLabelValues("vision", "ok").Inc()

	if len(resp.Choices) == 0 {
		return nil, &UpstreamError{StatusCode: 200, Body: "response contained no choices"}
	}
	return &CropAnalysis{Response: resp.Choices[0].Message.Content, Model: resp.Model}, nil
}

func cropUserContent(description, b64 string) string {
	return fmt.Sprintf("User's Query: %s\n Image: <img src=\"data:image/jpeg;base64,%s\" />", description, b64)
}

func upstreamError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &UpstreamError{StatusCode: reqErr.HTTPStatusCode, Body: string(reqErr.Body), Err: err}
	}
	return fmt.Errorf("vision request: %w", err)
}
