package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docpipe/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apiConfig(url string) config.APIConfig {
	cfg := config.Default().API
	cfg.URL = url
	cfg.Timeout = 2 * time.Second
	return cfg
}

func completion(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
}

func TestGenerateSendsChatRequest(t *testing.T) {
	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completion("```latex\n\\documentclass{article}\n```"))
	}))
	defer srv.Close()

	cfg := apiConfig(srv.URL)
	c := NewClient(cfg, "secret")
	text, err := c.Generate(context.Background(), RequestFor(cfg, "sys", "user prompt"))
	require.NoError(t, err)

	assert.Equal(t, "```latex\n\\documentclass{article}\n```", text)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "deepseek-chat", got.Model)
	assert.Equal(t, 4000, got.MaxTokens)
	assert.InDelta(t, 0.3, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "sys", got.Messages[0].Content)
	assert.Equal(t, "user prompt", got.Messages[1].Content)
}

func TestGenerateMissingCredentialShortCircuits(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := NewClient(apiConfig(srv.URL), "")
	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMissingCredential))
	assert.Equal(t, int32(0), calls.Load())
}

func TestGenerateFailuresAreNoResult(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		"unauthorized": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
		},
		"malformed json": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{not json"))
		},
		"no choices": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		},
		"empty content": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(completion("   "))
		},
		"api error body": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":{"message":"quota"}}`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			_, err := NewClient(apiConfig(srv.URL), "k").Generate(context.Background(), Request{Prompt: "p"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrNoResult), "got %v", err)
		})
	}
}

func TestGenerateTimeoutIsNoResult(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := apiConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	_, err := NewClient(cfg, "k").Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNoResult))
}

func TestGenerateUnreachableIsNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(apiConfig(url), "k").Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNoResult))
}
