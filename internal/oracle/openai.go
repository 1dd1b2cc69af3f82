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
	envOpenAIKey   = "OPENAI_API_KEY"
	envOpenAIModel = "OPENAI_MODEL"
	defaultOpenAI  = "gpt-4o-mini"

	openAIURL    = "https://api.openai.com/v1/chat/completions"
	openAITokens = 900
)

type openAIClient struct {
	apiKey string
	model  string
	http   *http.Client
	logger zerolog.Logger
}

func NewOpenAI(logger zerolog.Logger) (Client, error) {
	key := strings.TrimSpace(os.Getenv(envOpenAIKey))
	if key == "" {
		return nil, fmt.Errorf("missing %s", envOpenAIKey)
	}
	model := strings.TrimSpace(os.Getenv(envOpenAIModel))
	if model == "" {
		model = defaultOpenAI
	}
	model = strings.Trim(model, "\"'")
	return &openAIClient{
		apiKey: key,
		model:  model,
		http:   &http.Client{Timeout: oracleTimeout},
		logger: logger,
	}, nil
}

func (c *openAIClient) Name() string { return c.model }

func (c *openAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("empty prompt")
	}
	if len(prompt) > maxPromptSize {
		c.logger.Warn().Int("size", len(prompt)).Msg("prompt too large, truncating")
		prompt = prompt[:maxPromptSize] + "... [truncated]"
	}

	payload := openAIPayload{
		Model: c.model,
		Messages: []openAIMessage{
			{Role: "system", Content: "You are a precise web automation assistant. Always respond with valid JSON only."},
			{Role: "user", Content: prompt},
		},
		Temperature:    0.2,
		MaxTokens:      openAITokens,
		ResponseFormat: &openAIResponseFormat{Type: "json_object"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
			c.logger.Info().Int("attempt", attempt).Dur("delay", delay).Msg("retrying OpenAI API call")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		c.logger.Debug().
			Str("model", c.model).
			Int("payload_size", len(body)).
			Msg("OpenAI API request")

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIURL, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

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
			Msg("OpenAI API response")

		if resp.StatusCode >= 400 {
			var apiResp openAIResponse
			if err := json.Unmarshal(data, &apiResp); err != nil || apiResp.Error == nil {
				lastErr = fmt.Errorf("openai %d: %s", resp.StatusCode, clip(string(data), 500))
			} else {
				lastErr = fmt.Errorf("openai %d: %s (type: %s, code: %s)", resp.StatusCode, apiResp.Error.Message, apiResp.Error.Type, apiResp.Error.Code)
			}
			c.logger.Error().
				Int("status", resp.StatusCode).
				Int("attempt", attempt).
				Msg("OpenAI API error")

			if (resp.StatusCode == 429 || resp.StatusCode >= 500) && attempt < maxRetries {
				continue
			}
			return "", lastErr
		}

		var apiResp openAIResponse
		if err := json.Unmarshal(data, &apiResp); err != nil {
			return "", fmt.Errorf("parse response: %w", err)
		}
		if len(apiResp.Choices) == 0 {
			return "", errors.New("no choices in response")
		}
		text := apiResp.Choices[0].Message.Content
		if text == "" {
			return "", errors.New("empty response content")
		}

		c.logger.Debug().
			Str("finish_reason", apiResp.Choices[0].FinishReason).
			Int("total_tokens", apiResp.Usage.TotalTokens).
			Msg("OpenAI API success")
		return text, nil
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

type openAIPayload struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    float64               `json:"temperature"`
	MaxTokens      int                   `json:"max_tokens"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}
