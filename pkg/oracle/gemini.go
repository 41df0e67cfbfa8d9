package oracle

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "models/gemini-2.5-flash"

// Gemini calls the Gemini API through the genai SDK.
type Gemini struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGemini creates a Gemini client.
func NewGemini(ctx context.Context, opts Options) (*Gemini, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini API key required (set GOOGLE_API_KEY)")
	}
	model := opts.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	clientConfig := &genai.ClientConfig{
		Backend:    genai.BackendGeminiAPI,
		APIKey:     opts.APIKey,
		HTTPClient: &http.Client{Timeout: opts.Timeout},
	}
	if opts.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(opts.MaxTokens)
	}

	return &Gemini{client: client, model: model, config: genConfig}, nil
}

// Infer implements Oracle.
func (g *Gemini) Infer(ctx context.Context, prompt string, image []byte) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if len(image) > 0 {
		parts = append(parts, genai.NewPartFromBytes(image, "image/png"))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, g.config)
	if err != nil {
		return "", wrapStatus("gemini", 0, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
