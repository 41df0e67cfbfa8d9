package oracle

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/devicelab-dev/qa-pilot/pkg/logger"
)

// RetryPolicy bounds WithRetry.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries three times starting at one second.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:      3,
	InitialInterval: time.Second,
	MaxInterval:     30 * time.Second,
}

type retrying struct {
	next   Oracle
	policy RetryPolicy
}

// WithRetry retries transient failures of next with exponential backoff.
// Errors for which IsRetryable is false are returned immediately.
func WithRetry(next Oracle, policy RetryPolicy) Oracle {
	return &retrying{next: next, policy: policy}
}

func (r *retrying) Infer(ctx context.Context, prompt string, image []byte) (string, error) {
	b := backoff.NewExponentialBackOff()
	if r.policy.InitialInterval > 0 {
		b.InitialInterval = r.policy.InitialInterval
	}
	if r.policy.MaxInterval > 0 {
		b.MaxInterval = r.policy.MaxInterval
	}
	b.MaxElapsedTime = 0

	var reply string
	attempt := 0
	operation := func() error {
		attempt++
		text, err := r.next.Infer(ctx, prompt, image)
		if err != nil {
			if !IsRetryable(err) {
				return backoff.Permanent(err)
			}
			logger.Warn("oracle attempt %d failed: %v", attempt, err)
			return err
		}
		reply = text
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, r.policy.MaxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}
	return reply, nil
}
