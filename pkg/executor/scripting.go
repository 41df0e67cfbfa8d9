package executor

import (
	"context"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/devicelab-dev/qa-pilot/pkg/agent"
	"github.com/devicelab-dev/qa-pilot/pkg/jsengine"
)

// envVarPattern matches ALL_CAPS identifiers that look like env variables
var envVarPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9_]{2,})\b`)

// ScriptEngine handles JavaScript evaluation and variable management.
type ScriptEngine struct {
	js        *jsengine.Engine
	variables map[string]string
}

// NewScriptEngine creates a new script engine.
func NewScriptEngine() *ScriptEngine {
	return &ScriptEngine{
		js:        jsengine.New(),
		variables: make(map[string]string),
	}
}

// SetVariable sets a variable in both Go map and JS engine.
func (se *ScriptEngine) SetVariable(name, value string) {
	se.variables[name] = value
	se.js.SetVariable(name, value)
}

// SetVariables sets multiple variables.
func (se *ScriptEngine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		se.SetVariable(k, v)
	}
}

// ImportSystemEnv imports system environment variables into the script engine.
// Only imports variables matching the pattern (uppercase with underscores).
func (se *ScriptEngine) ImportSystemEnv() {
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if ok && envVarPattern.MatchString(name) {
			se.SetVariable(name, value)
		}
	}
}

// GetVariable returns a variable value.
func (se *ScriptEngine) GetVariable(name string) string {
	return se.variables[name]
}

// ExpandVariables expands ${expr} and $VAR syntax in text.
func (se *ScriptEngine) ExpandVariables(ctx context.Context, text string) string {
	// ${expression} first, so $VAR inside an expression stays JS
	text = se.js.ExpandVariables(ctx, text)
	return se.expandDollarVars(text)
}

// expandDollarVars expands $VAR (without braces), longest names first to
// avoid partial matches.
func (se *ScriptEngine) expandDollarVars(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}
	names := make([]string, 0, len(se.variables))
	for name := range se.variables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return len(names[i]) > len(names[j])
	})

	for _, name := range names {
		text = expandDollarVar(text, name, se.variables[name])
	}
	return text
}

// expandDollarVar replaces $VAR with value, checking word boundaries.
func expandDollarVar(text, name, value string) string {
	pattern := "$" + name
	idx := 0
	for {
		pos := strings.Index(text[idx:], pattern)
		if pos == -1 {
			break
		}
		pos += idx

		// Followed by an identifier character: a different variable
		endPos := pos + len(pattern)
		if endPos < len(text) {
			next := text[endPos]
			if (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') ||
				(next >= '0' && next <= '9') || next == '_' {
				idx = endPos
				continue
			}
		}

		text = text[:pos] + value + text[endPos:]
		idx = pos + len(value)
	}
	return text
}

// SetResult exposes a run outcome to expectations as outcome, steps,
// reason, history and taps.
func (se *ScriptEngine) SetResult(res agent.Result) {
	history := res.History
	if history == nil {
		history = []string{}
	}
	taps := res.Taps
	if taps == nil {
		taps = []agent.TapRecord{}
	}
	se.js.SetVariables(map[string]interface{}{
		"outcome": res.Outcome.String(),
		"steps":   res.Steps,
		"reason":  res.Reason,
		"history": history,
		"taps":    taps,
	})
}

// EvalCondition evaluates a script condition using JavaScript truthiness.
func (se *ScriptEngine) EvalCondition(ctx context.Context, script string) (bool, error) {
	script = jsengine.Unwrap(script)
	script = se.expandDollarVars(script)

	// Undefined env variables are falsy rather than a ReferenceError.
	se.js.DeclareUndefined(envVarPattern.FindAllString(script, -1)...)
	return se.js.EvalBool(ctx, script)
}

// CheckExpectation evaluates expect against res.
func (se *ScriptEngine) CheckExpectation(ctx context.Context, expect string, res agent.Result) (bool, error) {
	se.SetResult(res)
	return se.EvalCondition(ctx, expect)
}
