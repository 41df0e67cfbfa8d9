package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaURL is the local Ollama server.
const DefaultOllamaURL = "http://127.0.0.1:11434"

// DefaultOllamaModel is a vision-capable local model.
const DefaultOllamaModel = "llava"

// Ollama calls a local or remote Ollama server's generate endpoint.
type Ollama struct {
	client  *api.Client
	model   string
	options map[string]any
}

// NewOllama creates an Ollama client.
func NewOllama(opts Options) (*Ollama, error) {
	base := opts.BaseURL
	if base == "" {
		base = DefaultOllamaURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL %q: %w", base, err)
	}
	model := opts.Model
	if model == "" {
		model = DefaultOllamaModel
	}

	httpClient := &http.Client{Timeout: opts.Timeout}
	options := map[string]any{"temperature": opts.Temperature}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}

	return &Ollama{
		client:  api.NewClient(baseURL, httpClient),
		model:   model,
		options: options,
	}, nil
}

// Infer implements Oracle.
func (o *Ollama) Infer(ctx context.Context, prompt string, image []byte) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:   o.model,
		Prompt:  prompt,
		Stream:  &stream,
		Options: o.options,
	}
	if len(image) > 0 {
		req.Images = []api.ImageData{image}
	}

	var sb strings.Builder
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", wrapStatus("ollama", 0, err)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
