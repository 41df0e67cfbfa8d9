package agent

import (
	"context"
	"strings"

	"github.com/devicelab-dev/qa-pilot/pkg/logger"
	"github.com/devicelab-dev/qa-pilot/pkg/oracle"
)

// Verdict is the supervisor's judgement of the current screen.
type Verdict int

const (
	VerdictContinue Verdict = iota
	VerdictPass
	VerdictFail
)

func (v Verdict) String() string {
	switch v {
	case VerdictPass:
		return "PASS"
	case VerdictFail:
		return "FAIL"
	default:
		return "CONTINUE"
	}
}

// Supervisor judges whether an objective is met from a screenshot.
type Supervisor struct {
	oracle oracle.Oracle
}

// NewSupervisor creates a Supervisor.
func NewSupervisor(o oracle.Oracle) *Supervisor {
	return &Supervisor{oracle: o}
}

// Verify returns the verdict and the raw reply. PASS wins over FAIL when
// both appear. Oracle failures count as CONTINUE.
func (s *Supervisor) Verify(ctx context.Context, objective string, screenshot []byte, steps int) (Verdict, string) {
	reply, err := s.oracle.Infer(ctx, supervisorPrompt(objective, steps), screenshot)
	if err != nil {
		logger.Warn("supervisor: oracle call failed: %v", err)
		return VerdictContinue, ""
	}
	return parseVerdict(reply), reply
}

func parseVerdict(reply string) Verdict {
	switch {
	case strings.Contains(reply, "PASS"):
		return VerdictPass
	case strings.Contains(reply, "FAIL"):
		return VerdictFail
	default:
		return VerdictContinue
	}
}
