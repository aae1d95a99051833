package multimodal

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeCropSendsInlineImage(t *testing.T) {
	var body struct {
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float64 `json:"temperature"`
		TopP        float64 `json:"top_p"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","model":"phi","choices":[{"index":0,"message":{"role":"assistant","content":"Tomato leaf with early blight."}}]}`))
	}))
	defer srv.Close()

	svc := NewVisionService(VisionConfig{APIKey: "key2", BaseURL: srv.URL})
	img := encodePNG(t, solid(64, 64, color.NRGBA{G: 200, A: 255}))

	out, err := svc.AnalyzeCrop(context.Background(), img, "what is wrong?")
	require.NoError(t, err)
	assert.Equal(t, "Tomato leaf with early blight.", out.Response)

	assert.Equal(t, "Bearer key2", auth)
	assert.Equal(t, "microsoft/phi-3.5-vision-instruct", body.Model)
	assert.Equal(t, 1024, body.MaxTokens)
	assert.InDelta(t, 0.7, body.Temperature, 1e-6)
	assert.InDelta(t, 0.7, body.TopP, 1e-6)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "system", body.Messages[0].Role)
	user := body.Messages[1].Content
	assert.True(t, strings.HasPrefix(user, "User's Query: what is wrong?\n Image: <img src=\"data:image/jpeg;base64,"))
	assert.True(t, strings.HasSuffix(user, "\" />"))
}

func TestAnalyzeCropRejectsOversizedImage(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	// Noise does not compress, so even at 800x800 the JPEG stays large.
	rng := rand.New(rand.NewSource(1))
	noise := image.NewNRGBA(image.Rect(0, 0, 1000, 1000))
	rng.Read(noise.Pix)
	for i := 3; i < len(noise.Pix); i += 4 {
		noise.Pix[i] = 255
	}

	svc := NewVisionService(VisionConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := svc.AnalyzeCrop(context.Background(), encodePNG(t, noise), "")
	assert.ErrorIs(t, err, ErrImageTooLarge)
	assert.False(t, called)
}

func TestAnalyzeCropReportsUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":{"message":"image payload rejected","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	svc := NewVisionService(VisionConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := svc.AnalyzeCrop(context.Background(), encodePNG(t, solid(8, 8, color.Black)), "leaf")
	require.Error(t, err)

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusUnprocessableEntity, upErr.StatusCode)
	assert.Equal(t, "External API error: 422 - image payload rejected", err.Error())
}

func TestAnalyzeCropInvalidImage(t *testing.T) {
	svc := NewVisionService(VisionConfig{APIKey: "k", BaseURL: "http://127.0.0.1:0"})
	_, err := svc.AnalyzeCrop(context.Background(), []byte("plain text"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode image")
}
