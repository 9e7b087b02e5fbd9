package generate

import (
	"context"
	"fmt"
	"time"
)

// Providers accepted by New.
const (
	ProviderNone      = "none"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// Config selects and tunes a provider.
type Config struct {
	Provider      string
	Model         string
	APIKey        string
	Timeout       time.Duration
	RetryAttempts int
}

var defaultModels = map[string]string{
	ProviderAnthropic: "claude-sonnet-4-5",
	ProviderOpenAI:    "gpt-4.1-mini",
	ProviderGemini:    "gemini-2.5-flash",
}

// New builds the Generator described by cfg. Provider "none" (or empty)
// yields Disabled.
func New(ctx context.Context, cfg Config) (Generator, error) {
	if cfg.Provider == "" || cfg.Provider == ProviderNone {
		return Disabled{}, nil
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generate: provider %s: api key is required", cfg.Provider)
	}
	model := cfg.Model
	if model == "" {
		model = defaultModels[cfg.Provider]
	}

	var c Completer
	switch cfg.Provider {
	case ProviderAnthropic:
		c = NewAnthropic(cfg.APIKey, model)
	case ProviderOpenAI:
		c = NewOpenAI(cfg.APIKey, model)
	case ProviderGemini:
		g, err := NewGemini(ctx, cfg.APIKey, model)
		if err != nil {
			return nil, fmt.Errorf("generate: %w", err)
		}
		c = g
	default:
		return nil, fmt.Errorf("generate: unknown provider %q", cfg.Provider)
	}

	retry := DefaultRetryConfig()
	if cfg.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.RetryAttempts
	}
	return NewService(WithRetry(c, retry), cfg.Timeout), nil
}
