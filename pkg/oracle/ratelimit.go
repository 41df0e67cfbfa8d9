package oracle

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

type limited struct {
	next    Oracle
	limiter *rate.Limiter
}

// WithRateLimit spaces calls to next at most requestsPerMinute per minute.
// A non-positive rate returns next unchanged.
func WithRateLimit(next Oracle, requestsPerMinute int) Oracle {
	if requestsPerMinute <= 0 {
		return next
	}
	interval := time.Minute / time.Duration(requestsPerMinute)
	return &limited{next: next, limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (l *limited) Infer(ctx context.Context, prompt string, image []byte) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.next.Infer(ctx, prompt, image)
}
