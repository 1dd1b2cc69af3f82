// Package oracle holds the language-model clients the interpreter uses.
// The interpreter treats them as a black box: prompt text in, raw text
// (hopefully containing JSON) out.
package oracle

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const envProvider = "ORACLE_PROVIDER" // "anthropic" or "openai"

// Client is what the interpreter depends on.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// FromEnv creates a client based on ORACLE_PROVIDER, defaulting to
// Anthropic.
func FromEnv(logger zerolog.Logger) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv(envProvider)))
	if provider == "" {
		provider = "anthropic"
	}

	switch provider {
	case "openai":
		return NewOpenAI(logger)
	case "anthropic":
		return NewAnthropic(logger)
	default:
		return nil, fmt.Errorf("unknown oracle provider: %s (use 'anthropic' or 'openai')", provider)
	}
}
