package oracle

import (
	"context"
	"sync"
)

// Call records one request seen by Scripted.
type Call struct {
	Prompt   string
	HasImage bool
}

// Scripted replays canned replies in order. Once the script runs out the
// last reply repeats. Handy for exercising the agent without a model.
type Scripted struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   []Call
}

// NewScripted returns an oracle that answers with replies in order.
func NewScripted(replies ...string) *Scripted {
	return &Scripted{replies: replies}
}

// FailWith queues errors returned before any reply is consumed.
func (s *Scripted) FailWith(errs ...error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, errs...)
	return s
}

// Infer implements Oracle.
func (s *Scripted) Infer(ctx context.Context, prompt string, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Prompt: prompt, HasImage: len(image) > 0})
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return "", err
	}
	if len(s.replies) == 0 {
		return "", ErrEmptyResponse
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return reply, nil
}

// Calls returns a copy of the requests seen so far.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}
