package oracle

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o"

// OpenAI calls any OpenAI-compatible chat completions endpoint (OpenAI,
// OpenRouter, Groq, local servers) with an inline image.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewOpenAI creates an OpenAI-compatible client.
func NewOpenAI(opts Options) (*OpenAI, error) {
	if opts.APIKey == "" && opts.BaseURL == "" {
		return nil, fmt.Errorf("openai API key required (set OPENAI_API_KEY)")
	}
	model := opts.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: opts.Timeout}),
		option.WithMaxRetries(0), // WithRetry owns retries
	}
	// OpenRouter, Groq and local servers need a different base URL
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(reqOpts...)
	return &OpenAI{
		client:      &client,
		model:       model,
		temperature: float64(opts.Temperature),
		maxTokens:   opts.MaxTokens,
	}, nil
}

// Infer implements Oracle.
func (o *OpenAI) Infer(ctx context.Context, prompt string, image []byte) (string, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(prompt)}
	if len(image) > 0 {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(image),
		}))
	}

	params := openai.ChatCompletionNewParams{
		Model:       o.model,
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
		Temperature: openai.Opt[float64](o.temperature),
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Opt[int64](int64(o.maxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", wrapStatus("openai", apiErr.StatusCode, err)
		}
		return "", wrapStatus("openai", 0, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
