package oracle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"wrapped canceled", fmt.Errorf("call: %w", context.Canceled), false},
		{"deadline", context.DeadlineExceeded, true},
		{"429", &StatusError{Provider: "x", StatusCode: 429, Err: errors.New("slow down")}, true},
		{"503", &StatusError{Provider: "x", StatusCode: 503, Err: errors.New("busy")}, true},
		{"400", &StatusError{Provider: "x", StatusCode: 400, Err: errors.New("bad")}, false},
		{"401", &StatusError{Provider: "x", StatusCode: 401, Err: errors.New("key")}, false},
		{"net error", timeoutErr{}, true},
		{"resource exhausted text", errors.New("RESOURCE_EXHAUSTED: quota"), true},
		{"plain", errors.New("invalid argument"), false},
		{"empty response", ErrEmptyResponse, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestWrapStatusFromMessage(t *testing.T) {
	err := wrapStatus("gemini", 0, errors.New("Error 429, Message: quota exceeded"))
	var statusErr *StatusError
	if assert.ErrorAs(t, err, &statusErr) {
		assert.Equal(t, 429, statusErr.StatusCode)
		assert.Equal(t, "gemini", statusErr.Provider)
	}
	assert.True(t, IsRetryable(err))

	plain := wrapStatus("ollama", 0, errors.New("model not found"))
	assert.False(t, errors.As(plain, &statusErr))
	assert.Contains(t, plain.Error(), "ollama")

	assert.NoError(t, wrapStatus("x", 500, nil))
}

func TestFuncAdapter(t *testing.T) {
	var o Oracle = Func(func(_ context.Context, prompt string, image []byte) (string, error) {
		return fmt.Sprintf("%s:%d", prompt, len(image)), nil
	})
	got, err := o.Infer(context.Background(), "p", []byte{1, 2})
	assert.NoError(t, err)
	assert.Equal(t, "p:2", got)
}

func TestScripted(t *testing.T) {
	s := NewScripted("one", "two")
	s.FailWith(errors.New("boom"))
	ctx := context.Background()

	_, err := s.Infer(ctx, "a", nil)
	assert.EqualError(t, err, "boom")

	got, _ := s.Infer(ctx, "b", []byte{1})
	assert.Equal(t, "one", got)
	got, _ = s.Infer(ctx, "c", nil)
	assert.Equal(t, "two", got)
	got, _ = s.Infer(ctx, "d", nil)
	assert.Equal(t, "two", got, "last reply repeats")

	calls := s.Calls()
	assert.Len(t, calls, 4)
	assert.True(t, calls[1].HasImage)
	assert.Equal(t, "c", calls[2].Prompt)
}

func TestScriptedCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewScripted("x").Infer(ctx, "p", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
