package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// Client talks to an OpenAI-compatible inference API: /v1/embeddings for
// retrieval vectors and /v1/chat/completions for verdicts. Requests are
// rate-limited client-side and embeddings are cached by input text, since
// the same listing text is embedded once per routed domain.
type Client struct {
	Host       string
	APIKey     string
	EmbedModel string
	ChatModel  string

	httpClient *http.Client
	limiter    *rate.Limiter
	embedCache *expirable.LRU[string, []float32]
	logger     *slog.Logger
}

type Config struct {
	Host       string
	APIKey     string
	EmbedModel string
	ChatModel  string
	// Requests per second across both endpoints. Zero means 5 rps.
	RateLimit float64
	Logger    *slog.Logger
}

type leveledSlog struct {
	inner *slog.Logger
}

// re-writes HTTP client ERROR to WARN level (because of retries)
func (l leveledSlog) Error(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Info(msg string, keysAndValues ...interface{}) {
	l.inner.Info(msg, keysAndValues...)
}

func (l leveledSlog) Debug(msg string, keysAndValues ...interface{}) {
	l.inner.Debug(msg, keysAndValues...)
}

// Generates an HTTP client with decent defaults around timeouts and retries.
// Retries on connection errors, 5xx status (except 501), and 429 responses,
// respecting the 'Retry-After' header.
func robustHTTPClient(logger *slog.Logger) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(leveledSlog{logger})
	client := retryClient.StandardClient()
	client.Timeout = 60 * time.Second
	return client
}

func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("subsystem", "aiclient")
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		Host:       cfg.Host,
		APIKey:     cfg.APIKey,
		EmbedModel: cfg.EmbedModel,
		ChatModel:  cfg.ChatModel,
		httpClient: robustHTTPClient(logger),
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		embedCache: expirable.NewLRU[string, []float32](5000, nil, 30*time.Minute),
		logger:     logger,
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.embedCache.Get(text); ok {
		embedCacheHits.Inc()
		return vec, nil
	}
	embedCacheMisses.Inc()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var resp embeddingResponse
	err := c.post(ctx, "/v1/embeddings", embeddingRequest{
		Model: c.EmbedModel,
		Input: []string{text},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	vec := resp.Data[0].Embedding
	c.embedCache.Add(text, vec)
	return vec, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Ask sends a system+user prompt pair and extracts the JSON object from the
// model's reply. The schema is appended to the system prompt so models
// without native structured output still answer in the right shape.
func (c *Client) Ask(ctx context.Context, system, user, schema string) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	sys := system
	if schema != "" {
		sys = system + "\n\nRespond with a single JSON object matching this schema, and nothing else:\n" + schema
	}

	var resp chatResponse
	err := c.post(ctx, "/v1/chat/completions", chatRequest{
		Model: c.ChatModel,
		Messages: []chatMessage{
			{Role: "system", Content: sys},
			{Role: "user", Content: user},
		},
		Temperature: 0.1,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat response contained no choices")
	}
	return ExtractJSON(resp.Choices[0].Message.Content)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.Host+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("inference API request failed", "path", path, "status", resp.StatusCode)
		return fmt.Errorf("inference API request failed: %s %s", path, resp.Status)
	}
	return json.Unmarshal(raw, out)
}
