// Package agent drives an Android app toward a natural-language objective:
// observe the screen, ask a supervisor whether the objective is met, plan
// the next step, resolve it to a concrete action and execute it.
package agent

import "github.com/devicelab-dev/qa-pilot/pkg/core"

// State is a phase of the control loop.
type State int

const (
	StateObserving State = iota
	StateVerifying
	StatePlanning
	StateResolving
	StateExecuting

	// Terminal states
	StatePassed
	StateFailed
	StateExhausted
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateObserving:
		return "observing"
	case StateVerifying:
		return "verifying"
	case StatePlanning:
		return "planning"
	case StateResolving:
		return "resolving"
	case StateExecuting:
		return "executing"
	case StatePassed:
		return "passed"
	case StateFailed:
		return "failed"
	case StateExhausted:
		return "exhausted"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the loop has stopped.
func (s State) IsTerminal() bool {
	return s >= StatePassed
}

// Outcome maps a terminal state to its run outcome.
func (s State) Outcome() core.Outcome {
	switch s {
	case StatePassed:
		return core.OutcomePassed
	case StateFailed:
		return core.OutcomeFailed
	case StateExhausted:
		return core.OutcomeExhausted
	case StateErrored:
		return core.OutcomeErrored
	default:
		return core.OutcomePending
	}
}
