// Package oracle sends a prompt plus a screenshot to a vision model and
// returns its text reply.
//
// Backends: Gemini (default), any OpenAI-compatible endpoint, Anthropic
// and Ollama. WithRetry and WithRateLimit wrap any backend.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Oracle answers a prompt about an image. The image is PNG bytes and may be
// nil for text-only prompts. Replies are trimmed of surrounding whitespace.
type Oracle interface {
	Infer(ctx context.Context, prompt string, image []byte) (string, error)
}

// Func adapts a function to Oracle.
type Func func(ctx context.Context, prompt string, image []byte) (string, error)

// Infer calls f.
func (f Func) Infer(ctx context.Context, prompt string, image []byte) (string, error) {
	return f(ctx, prompt, image)
}

// Options configures a backend client.
type Options struct {
	APIKey      string
	Model       string
	BaseURL     string // empty: the provider's default endpoint
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
}

// StatusError is a non-success reply from a model API.
type StatusError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error %d: %v", e.Provider, e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("model returned no text")

// IsRetryable reports whether a failed call may succeed if repeated:
// timeouts, network errors, 429 and 5xx replies. Cancellation is final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// String fallback for untyped errors from third-party libraries
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"rate limit", "resource_exhausted", "unavailable", "eof", "connection reset", "no such host"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func retryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

var statusInMessage = regexp.MustCompile(`(?i)(?:error|status)[ :]*(\d{3})\b`)

// statusFromMessage finds an HTTP status in an error string such as
// "Error 429, Message: ...". Returns 0 when none is present.
func statusFromMessage(msg string) int {
	if m := statusInMessage.FindStringSubmatch(msg); m != nil {
		code, _ := strconv.Atoi(m[1])
		if code >= 400 && code < 600 {
			return code
		}
	}
	return 0
}

// wrapStatus converts err into a *StatusError when a status is known.
func wrapStatus(provider string, code int, err error) error {
	if err == nil {
		return nil
	}
	if code == 0 {
		code = statusFromMessage(err.Error())
	}
	if code == 0 {
		return fmt.Errorf("%s: %w", provider, err)
	}
	return &StatusError{Provider: provider, StatusCode: code, Err: err}
}
