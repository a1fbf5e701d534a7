package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// OllamaConfig configures an Ollama client.
type OllamaConfig struct {
	BaseURL        string
	ConnectTimeout time.Duration
	Options        Options
	Logger         zerolog.Logger
}

// Ollama calls the /api/generate endpoint of an Ollama daemon.
type Ollama struct {
	baseURL    string
	opts       Options
	httpClient *http.Client
	log        zerolog.Logger
}

// NewOllama constructs a client. BaseURL defaults to http://localhost:11434.
func NewOllama(cfg OllamaConfig) *Ollama {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "http://localhost:11434"
	}
	return &Ollama{
		baseURL:    base,
		opts:       cfg.Options.withDefaults(),
		httpClient: newHTTPClient(cfg.ConnectTimeout),
		log:        cfg.Logger,
	}
}

type ollamaGenerateRequest struct {
	Model     string         `json:"model"`
	Prompt    string         `json:"prompt,omitempty"`
	Stream    bool           `json:"stream"`
	Options   map[string]any `json:"options,omitempty"`
	KeepAlive *int           `json:"keep_alive,omitempty"`
}

type ollamaGenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

func (o *Ollama) Invoke(ctx context.Context, modelID, prompt string, timeout time.Duration) (Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	payload := ollamaGenerateRequest{
		Model:  modelID,
		Prompt: prompt,
		Stream: false,
		Options: map[string]any{
			"temperature": o.opts.Temperature,
			"top_p":       o.opts.TopP,
			"num_predict": o.opts.MaxTokens,
		},
	}
	var out ollamaGenerateResponse
	if err := o.postJSON(ctx, "/api/generate", payload, &out); err != nil {
		return Result{}, classify(ctx, modelID, err)
	}
	res := Result{
		Text:         strings.TrimSpace(out.Response),
		InputTokens:  out.PromptEvalCount,
		OutputTokens: out.EvalCount,
		Duration:     time.Since(start),
	}
	o.log.Debug().Str("model", modelID).Int("output_tokens", res.OutputTokens).Dur("took", res.Duration).Msg("ollama generate")
	return res, nil
}

// HealthCheck lists local models and looks for modelID. A bare name matches
// its ":latest" tag.
func (o *Ollama) HealthCheck(ctx context.Context, modelID string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false
	}
	for _, m := range tags.Models {
		for _, name := range []string{m.Name, m.Model} {
			if name == modelID || name == modelID+":latest" {
				return true
			}
		}
	}
	return false
}

// Unload asks Ollama to drop modelID from memory (keep_alive 0).
func (o *Ollama) Unload(ctx context.Context, modelID string) error {
	zero := 0
	if err := o.postJSON(ctx, "/api/generate", ollamaGenerateRequest{Model: modelID, KeepAlive: &zero}, nil); err != nil {
		return classify(ctx, modelID, err)
	}
	o.log.Info().Str("model", modelID).Msg("ollama unload requested")
	return nil
}

func (o *Ollama) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ollama http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
