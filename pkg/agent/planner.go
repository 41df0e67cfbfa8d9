package agent

import (
	"context"
	"strings"

	"github.com/devicelab-dev/qa-pilot/pkg/logger"
	"github.com/devicelab-dev/qa-pilot/pkg/memory"
	"github.com/devicelab-dev/qa-pilot/pkg/oracle"
)

// stepPrefixes are the verbs a planner step line may start with.
var stepPrefixes = []string{"Tap", "Type", "Press", "Swipe", "Scroll", "DONE", "FAIL"}

// Planner asks the oracle for the single next step toward an objective.
type Planner struct {
	oracle oracle.Oracle
	memory *memory.Memory
}

// NewPlanner creates a Planner. mem may be nil.
func NewPlanner(o oracle.Oracle, mem *memory.Memory) *Planner {
	return &Planner{oracle: o, memory: mem}
}

// NextStep returns one natural-language step such as "Tap the 'Create a
// vault' button", "DONE" or "FAIL: <reason>". Oracle failures yield "".
func (p *Planner) NextStep(ctx context.Context, objective string, history []string, screenshot []byte, visibleText string) string {
	summary := ""
	if p.memory != nil {
		summary = p.memory.Summary()
	}

	reply, err := p.oracle.Infer(ctx, plannerPrompt(objective, history, visibleText, summary), screenshot)
	if err != nil {
		logger.Warn("planner: oracle call failed: %v", err)
		return ""
	}
	step := extractStep(reply)
	logger.Debug("planner: reply %q -> step %q", reply, step)
	return step
}

// extractStep picks the step line out of a reply that may carry reasoning.
// The last line starting with a step verb wins, then the last non-empty
// line, then the reply itself.
func extractStep(reply string) string {
	lines := strings.Split(strings.TrimSpace(reply), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := cleanStepLine(lines[i])
		for _, prefix := range stepPrefixes {
			if strings.HasPrefix(line, prefix) {
				return line
			}
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return reply
}

// cleanStepLine strips list bullets and wrapping quotes or backticks.
func cleanStepLine(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-*• ")
	line = strings.Trim(line, "\"`")
	return strings.TrimSpace(line)
}
