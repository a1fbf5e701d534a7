package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t, "SYS\n\nContext: vorher\n\nQuestion: wie?\n\nAnswer:", BuildPrompt("SYS", "vorher", "wie?"))
	assert.Equal(t, "Question: wie?\n\nAnswer:", BuildPrompt("", "  ", "wie?"))
}

func TestErrorsClassify(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	err := classify(ctx, "m", errors.New("dial"))
	assert.True(t, IsTimeout(err))
	assert.False(t, IsFailure(err))

	err = classify(context.Background(), "m", errors.New("connection refused"))
	assert.True(t, IsFailure(err))
	assert.False(t, IsTimeout(err))

	wrapped := fmt.Errorf("dispatch: %w", err)
	assert.True(t, IsFailure(wrapped))
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestNewBackend(t *testing.T) {
	b, err := New("ollama", "", "", 0, Options{}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, b)
	_, ok := b.(Unloader)
	assert.True(t, ok)

	b, err = New("llama-server", "http://x", "", 0, Options{}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &OpenAICompat{}, b)

	_, err = New("grpc", "", "", 0, Options{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestOllama_Invoke(t *testing.T) {
	var got ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Model: got.Model, Response: "  df -h\n", Done: true, PromptEvalCount: 12, EvalCount: 4})
	}))
	defer srv.Close()

	o := NewOllama(OllamaConfig{BaseURL: srv.URL + "/"})
	res, err := o.Invoke(context.Background(), "llama3.2:3b", "Question: disk?", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "df -h", res.Text)
	assert.Equal(t, 12, res.InputTokens)
	assert.Equal(t, 4, res.OutputTokens)
	assert.Equal(t, "llama3.2:3b", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, 0.7, got.Options["temperature"])
	assert.Equal(t, float64(1000), got.Options["num_predict"])
	assert.Nil(t, got.KeepAlive)
}

func TestOllama_InvokeTimeoutAndFailure(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()
	_, err := NewOllama(OllamaConfig{BaseURL: slow.URL}).Invoke(context.Background(), "m", "p", 50*time.Millisecond)
	assert.True(t, IsTimeout(err), "err=%v", err)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer broken.Close()
	_, err = NewOllama(OllamaConfig{BaseURL: broken.URL}).Invoke(context.Background(), "m", "p", time.Second)
	assert.True(t, IsFailure(err), "err=%v", err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestOllama_HealthCheckAndUnload(t *testing.T) {
	var unloaded map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2:3b","model":"llama3.2:3b"},{"name":"phi:latest","model":"phi:latest"}]}`))
		case "/api/generate":
			_ = json.NewDecoder(r.Body).Decode(&unloaded)
			_, _ = w.Write([]byte(`{"done":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	o := NewOllama(OllamaConfig{BaseURL: srv.URL})
	ctx := context.Background()
	assert.True(t, o.HealthCheck(ctx, "llama3.2:3b"))
	assert.True(t, o.HealthCheck(ctx, "phi"))
	assert.False(t, o.HealthCheck(ctx, "llama3.1:70b"))

	require.NoError(t, o.Unload(ctx, "llama3.1:70b"))
	assert.Equal(t, "llama3.1:70b", unloaded["model"])
	assert.Equal(t, float64(0), unloaded["keep_alive"])
	_, hasPrompt := unloaded["prompt"]
	assert.False(t, hasPrompt)
}

func sseServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/completions":
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			var req completionRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.True(t, req.Stream)
			w.Header().Set("Content-Type", "text/event-stream")
			for _, l := range lines {
				_, _ = w.Write([]byte(l + "\n\n"))
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			}
		case "/v1/models":
			_, _ = w.Write([]byte(`{"data":[{"id":"qwen3-coder-30b-local"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestOpenAICompat_Stream(t *testing.T) {
	srv := sseServer(t,
		`data: {"choices":[{"text":"Use "}]}`,
		`: keepalive`,
		`data: {"choices":[{"delta":{"content":"git log"}}]}`,
		`data: not-json`,
		`data: {"choices":[],"usage":{"prompt_tokens":30,"completion_tokens":3}}`,
		`data: [DONE]`,
		`data: {"choices":[{"text":"ignored"}]}`,
	)
	defer srv.Close()

	c := NewOpenAICompat(OpenAIConfig{BaseURL: srv.URL, APIKey: "secret"})
	res, err := c.Invoke(context.Background(), "qwen3-coder-30b-local", "p", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Use git log", res.Text)
	assert.Equal(t, 30, res.InputTokens)
	assert.Equal(t, 3, res.OutputTokens)

	assert.True(t, c.HealthCheck(context.Background(), "qwen3-coder-30b-local"))
	assert.False(t, c.HealthCheck(context.Background(), "other"))
}

func TestOpenAICompat_NativeContentAndWordCount(t *testing.T) {
	srv := sseServer(t, `data: {"content":"eins zwei drei"}`)
	defer srv.Close()
	res, err := NewOpenAICompat(OpenAIConfig{BaseURL: srv.URL, APIKey: "secret"}).Invoke(context.Background(), "m", "p", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "eins zwei drei", res.Text)
	assert.Equal(t, 3, res.OutputTokens)
}

func TestOpenAICompat_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(strings.Repeat("boom", 3)))
	}))
	defer srv.Close()
	_, err := NewOpenAICompat(OpenAIConfig{BaseURL: srv.URL}).Invoke(context.Background(), "m", "p", time.Second)
	assert.True(t, IsFailure(err))
	assert.Contains(t, err.Error(), "500")
}
