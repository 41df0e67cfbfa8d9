package oracle

import (
	"context"
	"fmt"
	"os"

	"github.com/devicelab-dev/qa-pilot/pkg/config"
	"github.com/devicelab-dev/qa-pilot/pkg/core"
)

// Provider names accepted in configuration.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// New builds the configured backend wrapped in retry and rate limiting.
// Empty API keys and hosts are read from the environment.
func New(ctx context.Context, cfg config.OracleConfig) (Oracle, error) {
	opts := Options{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
	if m := os.Getenv("QA_PILOT_MODEL"); m != "" {
		opts.Model = m
	}

	var (
		base Oracle
		err  error
	)
	switch cfg.Provider {
	case ProviderGemini, "":
		opts.APIKey = firstNonEmpty(opts.APIKey, os.Getenv("GOOGLE_API_KEY"), os.Getenv("GEMINI_API_KEY"))
		if m := os.Getenv("GEMINI_MODEL"); m != "" {
			opts.Model = m
		}
		base, err = NewGemini(ctx, opts)
	case ProviderOpenAI:
		opts.APIKey = firstNonEmpty(opts.APIKey, os.Getenv("OPENAI_API_KEY"))
		opts.BaseURL = firstNonEmpty(opts.BaseURL, os.Getenv("OPENAI_BASE_URL"))
		base, err = NewOpenAI(opts)
	case ProviderAnthropic:
		opts.APIKey = firstNonEmpty(opts.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
		base, err = NewAnthropic(opts)
	case ProviderOllama:
		opts.BaseURL = firstNonEmpty(opts.BaseURL, os.Getenv("OLLAMA_HOST"))
		base, err = NewOllama(opts)
	default:
		return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown oracle provider %q", cfg.Provider))
	}
	if err != nil {
		return nil, core.ErrModelUnavailable.WithCause(err)
	}

	policy := DefaultRetryPolicy
	if cfg.MaxRetries >= 0 {
		policy.MaxRetries = uint64(cfg.MaxRetries)
	}
	return WithRateLimit(WithRetry(base, policy), cfg.RequestsPerMinute), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
