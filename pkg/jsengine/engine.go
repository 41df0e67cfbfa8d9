// Package jsengine evaluates the JavaScript found in test suites: ${...}
// interpolation in objectives and the expect expression that decides
// whether a run outcome counts as a pass.
package jsengine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/qa-pilot/pkg/logger"
)

// DefaultTimeout bounds a single evaluation.
const DefaultTimeout = 2 * time.Second

// Engine wraps a goja runtime. Safe for concurrent use; evaluations are
// serialized.
type Engine struct {
	mu      sync.Mutex
	runtime *goja.Runtime
	defined map[string]bool
	timeout time.Duration
}

// New creates an engine with console.log routed to the log file.
func New() *Engine {
	e := &Engine{
		runtime: goja.New(),
		defined: make(map[string]bool),
		timeout: DefaultTimeout,
	}
	e.runtime.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	e.setupConsole()
	return e
}

// SetTimeout changes the per-evaluation limit. Zero disables it.
func (e *Engine) SetTimeout(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timeout = d
}

func (e *Engine) setupConsole() {
	logFunc := func(log func(string, ...interface{})) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			args := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				args[i] = fmt.Sprintf("%v", arg.Export())
			}
			log("[js] %s", strings.Join(args, " "))
			return goja.Undefined()
		}
	}
	console := e.runtime.NewObject()
	_ = console.Set("log", logFunc(logger.Info))
	_ = console.Set("warn", logFunc(logger.Warn))
	_ = console.Set("error", logFunc(logger.Error))
	e.runtime.Set("console", console)
}

// SetVariable exposes value to scripts as a global. Struct fields use
// their json names.
func (e *Engine) SetVariable(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defined[name] = true
	e.runtime.Set(name, value)
}

// SetVariables sets several globals.
func (e *Engine) SetVariables(vars map[string]interface{}) {
	for k, v := range vars {
		e.SetVariable(k, v)
	}
}

// DeclareUndefined binds each name that has no value yet to undefined, so
// a reference to it is falsy instead of a ReferenceError.
func (e *Engine) DeclareUndefined(names ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, name := range names {
		if e.defined[name] {
			continue
		}
		if v := e.runtime.Get(name); v != nil && !goja.IsUndefined(v) {
			continue
		}
		e.runtime.Set(name, goja.Undefined())
	}
}

// Eval runs script and exports its value. It stops when ctx is done or
// the engine timeout elapses.
func (e *Engine) Eval(ctx context.Context, script string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.run(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("JS eval error: %w", err)
	}
	return v.Export(), nil
}

// EvalBool evaluates a condition using JavaScript truthiness.
func (e *Engine) EvalBool(ctx context.Context, script string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.run(ctx, script)
	if err != nil {
		return false, fmt.Errorf("JS eval error: %w", err)
	}
	return v.ToBoolean(), nil
}

// run executes script, interrupting the runtime on cancellation. Callers
// hold e.mu.
func (e *Engine) run(ctx context.Context, script string) (goja.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		e.runtime.Interrupt(ctx.Err())
		close(interrupted)
	})
	defer func() {
		// An Interrupt landing after ClearInterrupt would abort the next run.
		if !stop() {
			<-interrupted
		}
		e.runtime.ClearInterrupt()
	}()
	return e.runtime.RunString(script)
}

// ExpandVariables replaces every ${expr} in text with its value. Each expr is
// evaluated as an expression, so object literals work. An expression that
// fails to evaluate is left as written; undefined and null expand to the
// empty string.
func (e *Engine) ExpandVariables(ctx context.Context, text string) string {
	var b strings.Builder
	last := 0
	for _, ex := range Expressions(text) {
		b.WriteString(text[last:ex.Start])
		last = ex.End
		v, err := e.Eval(ctx, "("+ex.Source+"\n)")
		switch {
		case err != nil:
			logger.Debug("leaving ${%s} unexpanded: %v", ex.Source, err)
			b.WriteString(text[ex.Start:ex.End])
		case v != nil:
			fmt.Fprintf(&b, "%v", v)
		}
	}
	b.WriteString(text[last:])
	return b.String()
}

// Compile reports a syntax error in script without running it.
func Compile(name, script string) error {
	_, err := goja.Compile(name, script, false)
	return err
}

// Expression is one ${...} occurrence; Start and End delimit the whole
// placeholder in the source text.
type Expression struct {
	Source     string
	Start, End int
}

// Expressions lists the ${...} placeholders in text. Braces nest, so
// ${ {a: 1}.a } is one expression; an unterminated placeholder is ignored.
func Expressions(text string) []Expression {
	var out []Expression
	start := 0
	for {
		idx := strings.Index(text[start:], "${")
		if idx == -1 {
			return out
		}
		idx += start

		depth := 1
		end := idx + 2
		for end < len(text) && depth > 0 {
			switch text[end] {
			case '{':
				depth++
			case '}':
				depth--
			}
			end++
		}
		if depth != 0 {
			return out
		}
		out = append(out, Expression{Source: text[idx+2 : end-1], Start: idx, End: end})
		start = end
	}
}

// Unwrap strips an optional ${...} around a whole condition.
func Unwrap(script string) string {
	script = strings.TrimSpace(script)
	if strings.HasPrefix(script, "${") && strings.HasSuffix(script, "}") {
		return script[2 : len(script)-1]
	}
	return script
}
