package oracle

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-sonnet-4-5"

// Anthropic calls the Messages API with an inline image block.
type Anthropic struct {
	client      *anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
}

// NewAnthropic creates an Anthropic client.
func NewAnthropic(opts Options) (*Anthropic, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key required (set ANTHROPIC_API_KEY)")
	}
	model := opts.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: opts.Timeout}),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := anthropic.NewClient(reqOpts...)
	return &Anthropic{
		client:      &client,
		model:       model,
		temperature: float64(opts.Temperature),
		maxTokens:   maxTokens,
	}, nil
}

// Infer implements Oracle.
func (a *Anthropic) Infer(ctx context.Context, prompt string, image []byte) (string, error) {
	var blocks []anthropic.ContentBlockParamUnion
	if len(image) > 0 {
		blocks = append(blocks, anthropic.NewImageBlockBase64("image/png", base64.StdEncoding.EncodeToString(image)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(prompt))

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   a.maxTokens,
		Temperature: anthropic.Float(a.temperature),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", wrapStatus("anthropic", apiErr.StatusCode, err)
		}
		return "", wrapStatus("anthropic", 0, err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
