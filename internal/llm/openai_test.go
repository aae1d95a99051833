package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProviderStreamsFromCompatibleEndpoint(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Stream      bool    `json:"stream"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer nvapi-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Rice ", "needs ", "standing water."} {
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewOpenAIProvider("nvapi-key", srv.URL)
	ch, err := p.ChatCompletionStream(context.Background(), ChatRequest{
		Model:       "meta/llama-3.1-405b-instruct",
		Messages:    []Message{{Role: "system", Content: "be brief"}, {Role: "user", Content: "rice?"}},
		MaxTokens:   256,
		Temperature: 0.2,
	})
	require.NoError(t, err)

	resp, err := Collect(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, "Rice needs standing water.", resp.Content)
	assert.True(t, got.Stream)
	assert.Equal(t, 256, got.MaxTokens)
	assert.InDelta(t, 0.2, got.Temperature, 1e-6)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
}

func TestOpenAIProviderChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c2","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"Yes."}}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`)
	}))
	defer srv.Close()

	resp, err := NewOpenAIProvider("k", srv.URL).ChatCompletion(context.Background(), ChatRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "Yes.", resp.Content)
	assert.Equal(t, 4, resp.TotalTokens)
	assert.Equal(t, "openai", resp.Provider)
}

func TestOpenAIProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Authentication failed","type":"auth"}}`)
	}))
	defer srv.Close()

	_, err := NewOpenAIProvider("bad", srv.URL).ChatCompletionStream(context.Background(), ChatRequest{Model: "m"})
	assert.ErrorContains(t, err, "Authentication failed")
}
