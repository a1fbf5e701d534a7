// Package backend talks to the inference services that host the tier models.
package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Backend runs one completion against a hosted model.
type Backend interface {
	// Invoke generates an answer for prompt on modelID. timeout bounds the
	// whole call; failures are reported as Timeout or Failure errors.
	Invoke(ctx context.Context, modelID, prompt string, timeout time.Duration) (Result, error)
	// HealthCheck reports whether modelID is reachable and served.
	HealthCheck(ctx context.Context, modelID string) bool
}

// Unloader is implemented by backends that can evict a model from memory.
type Unloader interface {
	Unload(ctx context.Context, modelID string) error
}

// Result is a completed generation.
type Result struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
}

// Options are the sampling parameters sent with every request.
type Options struct {
	Temperature float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP        float64 `json:"top_p" yaml:"top_p" toml:"top_p"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
}

// DefaultOptions returns the stock sampling parameters.
func DefaultOptions() Options {
	return Options{Temperature: 0.7, TopP: 0.9, MaxTokens: 1000}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Temperature <= 0 {
		o.Temperature = d.Temperature
	}
	if o.TopP <= 0 {
		o.TopP = d.TopP
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = d.MaxTokens
	}
	return o
}

// DefaultSystemPrompt frames every question.
const DefaultSystemPrompt = "You are an experienced Linux system administrator. " +
	"Answer precisely and practically. Prefer concrete shell commands with a short explanation. " +
	"Warn before destructive operations."

// BuildPrompt renders the prompt sent to the model. The context block is
// omitted when history is blank.
func BuildPrompt(system, history, question string) string {
	var b strings.Builder
	if s := strings.TrimSpace(system); s != "" {
		b.WriteString(s)
		b.WriteString("\n\n")
	}
	if c := strings.TrimSpace(history); c != "" {
		b.WriteString("Context: ")
		b.WriteString(c)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

// New builds the backend named by kind ("ollama" or "openai").
func New(kind, baseURL, apiKey string, connectTimeout time.Duration, opts Options, log zerolog.Logger) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "ollama":
		return NewOllama(OllamaConfig{BaseURL: baseURL, ConnectTimeout: connectTimeout, Options: opts, Logger: log}), nil
	case "openai", "llama-server", "llama_server":
		return NewOpenAICompat(OpenAIConfig{BaseURL: baseURL, APIKey: apiKey, ConnectTimeout: connectTimeout, Options: opts, Logger: log}), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", kind)
	}
}
