package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/solvetrace/solvetrace/internal/config"
	obsmetrics "github.com/solvetrace/solvetrace/internal/observability/metrics"
)

// UnavailableMarker appears in completions when the upstream model is
// degraded. A completion carrying it is treated as a failed attempt so the
// caller falls back to heuristics instead of persisting the marker text.
const UnavailableMarker = "AI analysis temporarily unavailable"

var (
	ErrNotConfigured   = errors.New("ai: api key not configured")
	ErrEmptyCompletion = errors.New("ai: completion returned no content")
)

// Client wraps the Perplexity chat-completions API. Perplexity speaks the
// OpenAI wire format, so the stock client is pointed at its base URL.
type Client struct {
	api     *openai.Client
	cfg     config.AIConfig
	log     *zap.Logger
	metrics *obsmetrics.Metrics

	backoff time.Duration
}

type ClientParam struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics `optional:"true"`
}

func NewClient(p ClientParam) *Client {
	cfg := p.Cfg.AI

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		cfg:     cfg,
		log:     p.Log.Named("ai"),
		metrics: p.Metrics,
		backoff: time.Second,
	}
}

// Configured reports whether an API key is present. Without one every call
// short-circuits to ErrNotConfigured and the caller uses heuristics.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

// Analyze sends the activity summary prompt and returns the raw completion
// text. Transient failures are retried with exponential backoff before the
// error is surfaced.
func (c *Client) Analyze(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	var lastErr error
	attempts := c.cfg.MaxRetries + 1
	backoff := c.backoff

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if c.metrics != nil {
				c.metrics.RecordAIRetry(ctx, retryReason(lastErr))
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		content, err := c.complete(ctx, prompt)
		if err == nil {
			return content, nil
		}
		lastErr = err
		c.log.Warn("analysis completion attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return "", lastErr
}

// Healthy probes the API with a minimal completion. Used by the analysis
// health endpoint to report whether AI-backed analysis is available.
func (c *Client) Healthy(ctx context.Context) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "Respond with OK."},
		},
		MaxTokens: 8,
	})
	if err != nil {
		return err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return ErrEmptyCompletion
	}
	return nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: float32(c.cfg.Temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" || strings.Contains(content, UnavailableMarker) {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

func retryReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrEmptyCompletion):
		return "empty_completion"
	default:
		return "upstream"
	}
}
