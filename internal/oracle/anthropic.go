package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	envAnthropicKey   = "ANTHROPIC_API_KEY"
	envAnthropicModel = "ANTHROPIC_MODEL"
	defaultAnthropic  = "claude-sonnet-4-5-20250929"

	anthropicURL     = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
	anthropicTokens  = 900

	oracleTimeout  = 60 * time.Second
	maxRetries     = 3
	retryBaseDelay = 500 * time.Millisecond
	maxPromptSize  = 200000 // ~200KB
)

type anthropicClient struct {
	apiKey string
	model  string
	http   *http.Client
	logger zerolog.Logger
}

func NewAnthropic(logger zerolog.Logger) (Client, error) {
	key := strings.TrimSpace(os.Getenv(envAnthropicKey))
	if key == "" {
		return nil, fmt.Errorf("missing %s", envAnthropicKey)
	}
	model := strings.TrimSpace(os.Getenv(envAnthropicModel))
	if model == "" {
		model = defaultAnthropic
	}
	model = strings.Trim(model, "\"'")
	return &anthropicClient{
		apiKey: key,
		model:  model,
		http:   &http.Client{Timeout: oracleTimeout},
		logger: logger,
	}, nil
}

func (c *anthropicClient) Name() string { return c.model }

func (c *anthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("empty prompt")
	}
	if len(prompt) > maxPromptSize {
		c.logger.Warn().Int("size", len(prompt)).Msg("prompt too large, truncating")
		prompt = prompt[:maxPromptSize] + "... [truncated]"
	}

	payload := anthropicPayload{
		Model:     c.model,
		MaxTokens: anthropicTokens,
		System:    "You are a precise web automation assistant. Always respond with valid JSON only.",
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: []anthropicContent{{Type: "text", Text: prompt}},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
			c.logger.Info().Int("attempt", attempt).Dur("delay", delay).Msg("retrying Anthropic API call")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		c.logger.Debug().
			Str("model", c.model).
			Int("payload_size", len(body)).
			Msg("Anthropic API request")

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicURL, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			if attempt < maxRetries {
				continue
			}
			return "", lastErr
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			if attempt < maxRetries {
				continue
			}
			return "", lastErr
		}

		c.logger.Debug().
			Int("status", resp.StatusCode).
			Int("response_size", len(data)).
			Msg("Anthropic API response")

		if resp.StatusCode >= 400 {
			var apiErr anthropicError
			if err := json.Unmarshal(data, &apiErr); err != nil || apiErr.Message == "" {
				lastErr = fmt.Errorf("anthropic %d: %s", resp.StatusCode, clip(string(data), 500))
			} else {
				lastErr = fmt.Errorf("anthropic %d: %s (type: %s)", resp.StatusCode, apiErr.Message, apiErr.Type)
			}
			c.logger.Error().
				Int("status", resp.StatusCode).
				Str("error_type", apiErr.Type).
				Int("attempt", attempt).
				Msg("Anthropic API error")

			// Retry on rate limits and server errors only.
			if (resp.StatusCode == 429 || resp.StatusCode >= 500) && attempt < maxRetries {
				continue
			}
			return "", lastErr
		}

		var ar anthropicResponse
		if err := json.Unmarshal(data, &ar); err != nil {
			lastErr = fmt.Errorf("parse response: %w", err)
			if attempt < maxRetries {
				continue
			}
			return "", lastErr
		}

		var buf bytes.Buffer
		for _, content := range ar.Content {
			if content.Type == "text" {
				buf.WriteString(content.Text)
			}
		}
		if buf.Len() == 0 {
			return "", errors.New("empty response content")
		}
		return buf.String(), nil
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

type anthropicPayload struct {
	Model     string             `json:"model"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func clip(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
