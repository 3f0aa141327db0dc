// Package llm implements the AI completion port on the OpenAI chat API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"autoreply/core/port/out"
	"autoreply/pkg/httputil"
	"autoreply/pkg/resilience"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 150
	DefaultTemperature = 0.4
)

// Config holds OpenAI client configuration.
type Config struct {
	APIKey      string
	BaseURL     string // optional, e.g. a compatible gateway ending in /v1
	Model       string
	MaxTokens   int
	Temperature *float64 // nil selects DefaultTemperature; 0 is honoured
	HTTPClient  *http.Client
}

// Client implements out.Completer.
type Client struct {
	client      *openai.Client
	configured  bool
	model       string
	maxTokens   int
	temperature float32
	cb          *gobreaker.CircuitBreaker
	log         zerolog.Logger
}

var _ out.Completer = (*Client)(nil)

// NewClient creates the AI client. With an empty API key every call fails
// with out.ErrAINotConfigured.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	temperature := float32(DefaultTemperature)
	if cfg.Temperature != nil {
		temperature = float32(*cfg.Temperature)
	}
	// The request field is omitempty, so a literal zero would fall back to
	// the server default.
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httputil.OpenAIClient()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = cfg.HTTPClient

	bc := resilience.DefaultBreakerConfig("openai")
	bc.IsSuccessful = func(err error) bool { return err == nil || isClientError(err) }

	return &Client{
		client:      openai.NewClientWithConfig(oc),
		configured:  cfg.APIKey != "",
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: temperature,
		cb:          resilience.NewBreaker(bc, log),
		log:         log,
	}
}

// Complete sends one system and one user message and returns the trimmed
// content of the first choice.
func (c *Client) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if !c.configured {
		return "", out.ErrAINotConfigured
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userMessage},
			},
		})
	})
	if err != nil {
		if resilience.IsOpen(err) {
			return "", fmt.Errorf("openai unavailable: %w", err)
		}
		c.log.Debug().Err(err).Msg("chat completion failed")
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	resp := result.(openai.ChatCompletionResponse)
	if len(resp.Choices) == 0 {
		return "", out.ErrEmptyCompletion
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", out.ErrEmptyCompletion
	}

	c.log.Debug().
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("chat completion")
	return content, nil
}

// isClientError reports 4xx responses other than 429. Those are caller
// mistakes (bad key, bad model) and must not trip the breaker.
func isClientError(err error) bool {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	return status >= 400 && status < 500 && status != http.StatusTooManyRequests
}
