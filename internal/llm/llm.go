// Package llm generates summaries through a third-party generative-text
// provider.
//
// KEY CONCEPTS:
//
//  1. PROVIDER INTERFACE:
//     A Provider turns one prompt into one completion. OpenAIProvider talks to
//     any OpenAI-compatible endpoint (OpenRouter by default), GeminiProvider
//     talks to Google's Gemini API. Tests plug in a fake.
//
//  2. CLIENT:
//     Client owns everything that is the same for every provider: input
//     validation, the prompt template, the timeout, error translation and
//     metrics. One call per request, no retries.
//
//  3. ERROR TRANSLATION:
//     blank input          → apperror.ErrValidation (400)
//     no provider          → apperror.ErrConfig     (500)
//     provider error,
//     timeout, or empty
//     response             → apperror.ErrUpstream   (502, diagnostic in Details)
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/text-summarizer/internal/apperror"
	"github.com/sakif/text-summarizer/internal/model"
)

// Outcome labels reported to Metrics.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomeEmpty   = "empty"
)

// ErrEmptyResponse is returned by providers whose reply has no text.
var ErrEmptyResponse = errors.New("llm: empty response from provider")

// Provider sends a prompt to a model and returns its reply.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Complete returns the model's reply to prompt. It must honour ctx.
	Complete(ctx context.Context, prompt string) (string, error)
}

// Metrics receives one observation per provider call.
type Metrics interface {
	ObserveSummarization(provider, outcome string, d time.Duration)
}

// Client summarizes text through a Provider.
type Client struct {
	provider Provider
	timeout  time.Duration
	logger   *slog.Logger
	metrics  Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithMetrics reports every provider call to m.
func WithMetrics(m Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a Client. provider may be nil when no API key is
// configured; Summarize then fails with a configuration error.
func NewClient(provider Provider, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		timeout:  timeout,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Available reports whether a provider is configured.
func (c *Client) Available() bool {
	return c.provider != nil
}

// ProviderName returns the configured provider's name, or "" if none.
func (c *Client) ProviderName() string {
	if c.provider == nil {
		return ""
	}
	return c.provider.Name()
}

// Summarize returns a summary of text in the given style and language.
func (c *Client) Summarize(ctx context.Context, text string, style model.Style, language string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", apperror.ValidationFailed("text", "No text to summarize")
	}
	if c.provider == nil {
		return "", apperror.Config("Summarization service is not configured")
	}

	prompt := BuildPrompt(text, style, language)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	reply, err := c.provider.Complete(callCtx, prompt)
	elapsed := time.Since(start)

	if err == nil && strings.TrimSpace(reply) == "" {
		err = ErrEmptyResponse
	}

	outcome := OutcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		outcome = OutcomeTimeout
		err = fmt.Errorf("no reply within %s: %w", c.timeout, err)
	case errors.Is(err, ErrEmptyResponse):
		outcome = OutcomeEmpty
	default:
		outcome = OutcomeError
	}
	if c.metrics != nil {
		c.metrics.ObserveSummarization(c.provider.Name(), outcome, elapsed)
	}

	if err != nil {
		c.logger.Error("summarization failed",
			slog.String("provider", c.provider.Name()),
			slog.String("outcome", outcome),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return "", apperror.Upstream("Failed to generate summary", err)
	}

	c.logger.Debug("summarization complete",
		slog.String("provider", c.provider.Name()),
		slog.Int("input_chars", len(text)),
		slog.Duration("elapsed", elapsed),
	)
	return strings.TrimSpace(reply), nil
}
