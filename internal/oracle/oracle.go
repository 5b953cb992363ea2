// Package oracle wraps the natural-language completion service used as a
// last-resort selector and navigation picker. Responses are untrusted input:
// callers must validate them against the real candidate set before acting.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrExhausted is returned when every retry attempt failed. It is terminal
// for the calling step only; the enclosing batch continues.
var ErrExhausted = errors.New("oracle retry attempts exhausted")

// Oracle is a best-effort natural-language completion.
type Oracle interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// GeminiClient asks the Gemini generateContent endpoint, retrying with a
// fixed delay up to a bounded attempt count.
type GeminiClient struct {
	client      *resty.Client
	apiKey      string
	model       string
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

type GeminiOptions struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxAttempts int
	RetryDelay  time.Duration
	Timeout     time.Duration
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func NewGeminiClient(opts GeminiOptions) (*GeminiClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if opts.Model == "" {
		opts.Model = "gemini-1.5-flash"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("Content-Type", "application/json")
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	return &GeminiClient{
		client:      client,
		apiKey:      opts.APIKey,
		model:       opts.Model,
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		logger:      slog.Default().With("component", "oracle"),
	}, nil
}

// HTTPClient exposes the underlying client for transport injection in tests.
func (g *GeminiClient) HTTPClient() *resty.Client {
	return g.client
}

func (g *GeminiClient) Ask(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(g.retryDelay):
			}
		}

		text, err := g.generate(ctx, prompt)
		if err == nil {
			return text, nil
		}

		lastErr = err
		g.logger.Warn("oracle call failed", "attempt", attempt, "error", err)
	}

	return "", fmt.Errorf("%w after %d attempts: %v", ErrExhausted, g.maxAttempts, lastErr)
}

func (g *GeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	body := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}

	var result generateResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParam("key", g.apiKey).
		SetBody(body).
		SetResult(&result).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", g.model))
	if err != nil {
		return "", fmt.Errorf("failed to call gemini: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("gemini returned status %d", resp.StatusCode())
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	return strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text), nil
}
