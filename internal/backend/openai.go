package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// OpenAIConfig configures a client for an OpenAI-compatible completion
// server such as llama.cpp's llama-server.
type OpenAIConfig struct {
	BaseURL        string
	APIKey         string
	ConnectTimeout time.Duration
	Options        Options
	Logger         zerolog.Logger
}

// OpenAICompat streams /v1/completions and assembles the answer.
type OpenAICompat struct {
	baseURL    string
	apiKey     string
	opts       Options
	httpClient *http.Client
	log        zerolog.Logger
}

// NewOpenAICompat constructs a client. BaseURL defaults to http://localhost:8080.
func NewOpenAICompat(cfg OpenAIConfig) *OpenAICompat {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "http://localhost:8080"
	}
	return &OpenAICompat{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		opts:       cfg.Options.withDefaults(),
		httpClient: newHTTPClient(cfg.ConnectTimeout),
		log:        cfg.Logger,
	}
}

type completionRequest struct {
	Model         string  `json:"model,omitempty"`
	Prompt        string  `json:"prompt"`
	MaxTokens     int     `json:"max_tokens,omitempty"`
	Temperature   float64 `json:"temperature,omitempty"`
	TopP          float64 `json:"top_p,omitempty"`
	Stream        bool    `json:"stream"`
	StreamOptions *struct {
		IncludeUsage bool `json:"include_usage"`
	} `json:"stream_options,omitempty"`
}

type completionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type completionChunk struct {
	Choices []struct {
		Text  string `json:"text"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *completionUsage `json:"usage"`
	// llama-server native fields
	Content string `json:"content"`
}

func (c *OpenAICompat) Invoke(ctx context.Context, modelID, prompt string, timeout time.Duration) (Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	payload := completionRequest{
		Model:       modelID,
		Prompt:      prompt,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
		TopP:        c.opts.TopP,
		Stream:      true,
	}
	payload.StreamOptions = &struct {
		IncludeUsage bool `json:"include_usage"`
	}{IncludeUsage: true}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, ErrFailure(modelID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, ErrFailure(modelID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, classify(ctx, modelID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, ErrFailure(modelID, errors.New("completion http error: "+resp.Status+": "+string(b)))
	}

	var (
		text  strings.Builder
		usage completionUsage
	)
	r := bufio.NewReader(resp.Body)
	for {
		line, rerr := r.ReadString('\n')
		if done := c.consumeLine(strings.TrimSpace(line), &text, &usage); done {
			break
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return Result{}, classify(ctx, modelID, rerr)
		}
	}
	if usage.CompletionTokens == 0 {
		usage.CompletionTokens = len(strings.Fields(text.String()))
	}
	return Result{
		Text:         strings.TrimSpace(text.String()),
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		Duration:     time.Since(start),
	}, nil
}

// consumeLine handles one SSE line and reports whether the stream ended.
func (c *OpenAICompat) consumeLine(line string, text *strings.Builder, usage *completionUsage) bool {
	if line == "" || !strings.HasPrefix(strings.ToLower(line), "data:") {
		return false
	}
	data := strings.TrimSpace(line[len("data:"):])
	if data == "[DONE]" {
		return true
	}
	var chunk completionChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		c.log.Debug().Str("line", line).Msg("unknown stream line")
		return false
	}
	if chunk.Usage != nil {
		*usage = *chunk.Usage
	}
	for _, ch := range chunk.Choices {
		text.WriteString(ch.Text)
		text.WriteString(ch.Delta.Content)
	}
	if len(chunk.Choices) == 0 {
		text.WriteString(chunk.Content)
	}
	return false
}

// HealthCheck queries /v1/models. Servers that host one unnamed model
// report healthy for any id.
func (c *OpenAICompat) HealthCheck(ctx context.Context, modelID string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return false
	}
	if len(list.Data) == 0 {
		return true
	}
	for _, m := range list.Data {
		if m.ID == modelID {
			return true
		}
	}
	return false
}
