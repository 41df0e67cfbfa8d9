package core

// Outcome is the terminal state of one objective run.
type Outcome int

const (
	OutcomePending   Outcome = iota // Not yet started
	OutcomePassed                   // Supervisor PASS or planner DONE
	OutcomeFailed                   // Supervisor FAIL after the grace window, or planner FAIL
	OutcomeExhausted                // Step budget used up without a verdict
	OutcomeErrored                  // An action could not be executed on the device
)

// String returns the string representation of Outcome
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomePassed:
		return "passed"
	case OutcomeFailed:
		return "failed"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the outcome is a final state
func (o Outcome) IsTerminal() bool {
	switch o {
	case OutcomePassed, OutcomeFailed, OutcomeExhausted, OutcomeErrored:
		return true
	default:
		return false
	}
}

// MarshalText renders the outcome for JSON reports.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone      ErrorCategory = iota // No error
	ErrCategoryDevice                         // No device, adb missing
	ErrCategoryLookup                         // UI dump missing, element not found
	ErrCategoryModel                          // Oracle failure or unparseable response
	ErrCategoryExecution                      // Device command failed while acting
	ErrCategoryConfig                         // Invalid configuration
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryDevice:
		return "device"
	case ErrCategoryLookup:
		return "lookup"
	case ErrCategoryModel:
		return "model"
	case ErrCategoryExecution:
		return "execution"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}
