package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// setupGeminiClient points a GeminiClient at a mock HTTP server with a fast
// backoff policy.
func setupGeminiClient(t *testing.T, handler http.HandlerFunc) (*GeminiClient, *httptest.Server, *observer.ObservedLogs) {
	t.Helper()
	if handler == nil {
		handler = func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected HTTP request")
			w.WriteHeader(http.StatusNotFound)
		}
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	core, logs := observer.New(zap.InfoLevel)
	cfg := getValidLLMConfig()
	cfg.Endpoint = server.URL

	client, err := NewGeminiClient(cfg, zap.New(core))
	require.NoError(t, err)
	client.backoffFactory = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 5 * time.Millisecond
		b.MaxElapsedTime = 2 * time.Second
		return b
	}
	return client, server, logs
}

func writeGeminiText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"candidates":[{"content":{"parts":[{"text":%q}]},"finishReason":"STOP"}],
		"usageMetadata":{"promptTokenCount":100,"candidatesTokenCount":50,"totalTokenCount":150}}`, text)
}

func TestNewGeminiClient(t *testing.T) {
	cfg := getValidLLMConfig()
	client, err := NewGeminiClient(cfg, setupTestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/models/test-model:generateContent", client.endpoint)
	assert.Equal(t, cfg.APITimeout, client.httpClient.Timeout)
	assert.NoError(t, client.Close())

	cfg.APIKey = ""
	_, err = NewGeminiClient(cfg, setupTestLogger(t))
	assert.ErrorContains(t, err, "API key is required")
}

func TestGeminiBuildRequestPayload(t *testing.T) {
	client, _, _ := setupGeminiClient(t, nil)

	req := createTestRequest()
	payload := client.buildRequestPayload(req)
	require.NotNil(t, payload.SystemInstruction)
	assert.Equal(t, req.SystemPrompt, payload.SystemInstruction.Parts[0].Text)
	assert.Equal(t, "user", payload.Contents[0].Role)
	assert.Equal(t, req.UserPrompt, payload.Contents[0].Parts[0].Text)
	assert.Equal(t, 1024, payload.GenerationConfig.MaxOutputTokens, "config supplies the default token cap")
	assert.Empty(t, payload.GenerationConfig.ResponseMimeType)

	req.SystemPrompt = ""
	req.Options.ForceJSONFormat = true
	req.Options.MaxTokens = 64
	payload = client.buildRequestPayload(req)
	assert.Nil(t, payload.SystemInstruction)
	assert.Equal(t, "application/json", payload.GenerationConfig.ResponseMimeType)
	assert.Equal(t, 64, payload.GenerationConfig.MaxOutputTokens)
}

func TestGeminiGenerate_Success(t *testing.T) {
	client, _, logs := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-api-key", r.Header.Get("x-goog-api-key"))

		body, _ := io.ReadAll(r.Body)
		var payload geminiRequest
		if assert.NoError(t, json.Unmarshal(body, &payload)) {
			assert.Equal(t, "User query.", payload.Contents[0].Parts[0].Text)
		}
		writeGeminiText(w, `{"thought":"t","action":{"name":"finish"}}`)
	})

	out, err := client.Generate(context.Background(), createTestRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"thought":"t","action":{"name":"finish"}}`, out)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "LLM generation complete.", entry.Message)
	assert.Equal(t, int64(100), entry.ContextMap()["prompt_tokens"])
	assert.Equal(t, int64(150), entry.ContextMap()["total_tokens"])
}

func TestGeminiGenerate_RetriesTransientErrors(t *testing.T) {
	var attempts int32
	client, _, logs := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("overloaded"))
			return
		}
		writeGeminiText(w, "ok")
	})

	out, err := client.Generate(context.Background(), createTestRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	assert.Equal(t, 2, logs.FilterLevelExact(zap.ErrorLevel).Len())
}

func TestGeminiGenerate_PermanentFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte("API key invalid"))
			},
			wantErr: "status 403",
		},
		{
			name: "no candidates",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"candidates":[]}`))
			},
			wantErr: "no candidates",
		},
		{
			name: "safety block",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`))
			},
			wantErr: "blocked the request",
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{not json`))
			},
			wantErr: "failed to decode",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts int32
			client, _, _ := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&attempts, 1)
				tt.handler(w, r)
			})
			_, err := client.Generate(context.Background(), createTestRequest())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, int32(1), atomic.LoadInt32(&attempts), "permanent errors are not retried")
		})
	}
}

func TestGeminiGenerate_NetworkErrorIsTransient(t *testing.T) {
	client, server, logs := setupGeminiClient(t, nil)
	client.backoffFactory = func() backoff.BackOff { return backoff.NewConstantBackOff(10 * time.Millisecond) }
	server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err := client.Generate(ctx, createTestRequest())
	require.Error(t, err)

	var permanent *backoff.PermanentError
	assert.False(t, errors.As(err, &permanent))
	assert.Greater(t, logs.FilterLevelExact(zap.WarnLevel).Len(), 1)
}

func TestGeminiGenerate_ContextCancellation(t *testing.T) {
	release := make(chan struct{})
	client, _, _ := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Generate(ctx, createTestRequest())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

