package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lukman83/adscout/internal/httputil"
	"github.com/lukman83/adscout/internal/logging"
)

// Completer sends one prompt to a language model and returns its text.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	URL       string // chat completions endpoint, or an Ollama /api/generate URL
	Model     string
	APIKey    string
	MaxTokens int
	Timeout   time.Duration
	Rate      float64 // requests per second, 0 for unlimited
	Retries   int
	Logger    *slog.Logger
}

// Client talks to an OpenAI-compatible chat completions endpoint. Ollama's
// generate endpoint is also supported and selected by URL.
type Client struct {
	url       string
	model     string
	apiKey    string
	maxTokens int
	retries   int
	hc        *http.Client
	logger    *slog.Logger
}

func NewClient(opts ClientOptions) *Client {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 600
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	transport := httputil.NewThrottledTransport(nil, opts.Rate, httputil.JSONHeaders())
	return &Client{
		url:       opts.URL,
		model:     opts.Model,
		apiKey:    opts.APIKey,
		maxTokens: opts.MaxTokens,
		retries:   opts.Retries,
		hc:        httputil.NewHTTPClient(transport, opts.Timeout),
		logger:    opts.Logger.With("component", "llm", "model", opts.Model),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type generateRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

func (c *Client) ollama() bool {
	return strings.HasSuffix(strings.TrimRight(c.url, "/"), "/api/generate")
}

// Complete performs one exchange. Non-2xx responses are errors.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	var body any
	if c.ollama() {
		body = generateRequest{
			Model:   c.model,
			System:  system,
			Prompt:  prompt,
			Options: map[string]any{"num_predict": c.maxTokens},
		}
	} else {
		body = chatRequest{
			Model: c.model,
			Messages: []chatMessage{
				{Role: "system", Content: system},
				{Role: "user", Content: prompt},
			},
			MaxTokens: c.maxTokens,
		}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("llm marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("llm new request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := httputil.DoWithRetry(c.hc, req, c.retries)
	if err != nil {
		c.logger.Warn("llm request failed", "error", err, "latency", time.Since(start))
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := httputil.ReadBody(resp)
	if err != nil {
		return "", fmt.Errorf("llm read response: %w", err)
	}
	c.logger.Debug("llm response", "status", resp.StatusCode, "latency", time.Since(start), "bytes", len(respBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm status %d: %s", resp.StatusCode, truncate(string(respBody), 300))
	}
	return responseText(respBody), nil
}

// responseText pulls the generated text out of the common response shapes:
// chat completions, legacy completions, Ollama generate and Ollama chat.
// Bodies that are not JSON are returned as-is.
func responseText(body []byte) string {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return string(bytes.TrimSpace(body))
	}

	if arr, ok := m["choices"].([]any); ok && len(arr) > 0 {
		if first, ok := arr[0].(map[string]any); ok {
			if s := messageContent(first["message"]); s != "" {
				return s
			}
			if s, ok := first["text"].(string); ok && s != "" {
				return s
			}
		}
	}
	for _, key := range []string{"response", "text"} {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	if s := messageContent(m["message"]); s != "" {
		return s
	}
	return ""
}

func messageContent(v any) string {
	msg, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := msg["content"].(string)
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
