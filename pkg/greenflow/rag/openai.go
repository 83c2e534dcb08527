package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/greenflow/pkg/greenflow/config"
)

// HTTPClient interface allows mocking http.Client in tests
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// OpenAICompleter calls an OpenAI compatible chat completions endpoint
type OpenAICompleter struct {
	cfg        config.RAGConfig
	httpClient HTTPClient
}

// ClientOption allows customizing the completer
type ClientOption func(*OpenAICompleter)

// WithHTTPClient allows injecting a custom HTTP client
func WithHTTPClient(client HTTPClient) ClientOption {
	return func(c *OpenAICompleter) {
		c.httpClient = client
	}
}

// NewOpenAICompleter creates a completer from cfg.OpenAI
func NewOpenAICompleter(cfg config.RAGConfig, opts ...ClientOption) *OpenAICompleter {
	c := &OpenAICompleter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *OpenAICompleter) Name() string { return config.ProviderOpenAI }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// errPermanent marks failures that retrying cannot fix
type errPermanent struct{ error }

// Complete sends prompt with retries and exponential backoff
func (c *OpenAICompleter) Complete(ctx context.Context, prompt Prompt) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.OpenAI.Model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		answer, err := c.doRequest(ctx, body)
		if err == nil {
			return answer, nil
		}
		lastErr = err

		var perm errPermanent
		if errors.As(err, &perm) {
			return "", perm.error
		}
		if attempt == c.cfg.MaxRetries {
			break
		}
		klog.V(2).InfoS("Completion request failed, retrying",
			"attempt", attempt+1,
			"maxRetries", c.cfg.MaxRetries,
			"error", err)

		timer := time.NewTimer(c.getBackoffDuration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return "", fmt.Errorf("all retries failed: %w", lastErr)
}

func (c *OpenAICompleter) doRequest(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OpenAI.URL, bytes.NewReader(body))
	if err != nil {
		return "", errPermanent{fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.OpenAI.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", errPermanent{fmt.Errorf("request failed: %w", err)}
		}
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("rate limit exceeded")
	case resp.StatusCode == http.StatusUnauthorized:
		return "", errPermanent{fmt.Errorf("invalid API key")}
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("server error: status %d", resp.StatusCode)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", errPermanent{fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, bytes.TrimSpace(msg))}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Error != nil {
		return "", errPermanent{fmt.Errorf("api error: %s", out.Error.Message)}
	}
	if len(out.Choices) == 0 {
		return "", errPermanent{fmt.Errorf("response contained no choices")}
	}
	return out.Choices[0].Message.Content, nil
}

func (c *OpenAICompleter) getBackoffDuration(attempt int) time.Duration {
	// Exponential backoff with jitter
	backoff := c.cfg.RetryDelay * time.Duration(1<<uint(attempt))
	maxBackoff := 10 * time.Second
	if backoff > maxBackoff {
		backoff = maxBackoff
	}

	// Add jitter (±20%)
	jitter := time.Duration(float64(backoff) * (0.4*rand.Float64() - 0.2))
	return backoff + jitter
}
