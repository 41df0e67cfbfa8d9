package agent

import (
	"context"
	"strings"
	"time"

	"github.com/devicelab-dev/qa-pilot/pkg/action"
	"github.com/devicelab-dev/qa-pilot/pkg/config"
	"github.com/devicelab-dev/qa-pilot/pkg/core"
	"github.com/devicelab-dev/qa-pilot/pkg/logger"
	"github.com/devicelab-dev/qa-pilot/pkg/memory"
	"github.com/devicelab-dev/qa-pilot/pkg/oracle"
	"github.com/devicelab-dev/qa-pilot/pkg/uitree"
	"github.com/devicelab-dev/qa-pilot/pkg/vision"
)

// pendingGearKey holds a gear tap awaiting confirmation that Settings opened.
const pendingGearKey = "pending_gear_location"

const (
	visibleTextLimit = 20
	memoryContextLen = 100
	uiDumpFailedText = "[UI dump failed]"
)

var (
	// Text that proves a Settings screen is showing.
	settingsIndicators = []string{"appearance", "editor", "files & links", "about", "base color", "accent color", "theme"}

	// Tap targets worth remembering when found in the UI tree.
	memorableTargets = []string{"expand", "menu", "back"}

	// Steps that launch or switch apps and need a longer settle.
	launchWords = []string{"obsidian", "app", "open"}
)

// textClearer is implemented by devices that can empty a focused field.
type textClearer interface {
	ClearText(ctx context.Context) error
}

// Config tunes the control loop.
type Config struct {
	Agent     config.AgentConfig
	Timing    config.Timing
	Region    config.Region
	Artifacts *Artifacts // tap and grid overlays; may be nil

	// Live progress callbacks
	OnStep   func(step int, desc string, intent action.Intent)
	OnVerify func(step int, verdict Verdict, reply string)
}

// DefaultConfig mirrors config.Default.
func DefaultConfig() Config {
	def := config.Default()
	return Config{Agent: def.Agent, Timing: def.Timing, Region: def.Region}
}

// TapRecord is one executed tap.
type TapRecord struct {
	Step    int          `json:"step"`
	X       int          `json:"x"`
	Y       int          `json:"y"`
	Desc    string       `json:"desc"`
	Target  *core.Bounds `json:"target,omitempty"`
	Label   string       `json:"label,omitempty"`
	Overlay string       `json:"overlay,omitempty"`
}

// Result is the outcome of one objective.
type Result struct {
	Objective string
	Outcome   core.Outcome
	Steps     int
	History   []string
	Taps      []TapRecord
	Reason    string // supervisor or planner reply that ended the run
	Err       error  // set when Outcome is errored
	Duration  time.Duration
}

// Loop runs objectives against one device.
type Loop struct {
	device core.Device
	oracle oracle.Oracle
	memory *memory.Memory
	cfg    Config
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewLoop creates a Loop. A nil mem keeps an in-memory store for the run.
func NewLoop(dev core.Device, o oracle.Oracle, mem *memory.Memory, cfg Config) *Loop {
	if mem == nil {
		mem = memory.Open("")
	}
	if cfg.Agent.MaxSteps <= 0 {
		cfg.Agent.MaxSteps = config.Default().Agent.MaxSteps
	}
	return &Loop{device: dev, oracle: o, memory: mem, cfg: cfg, sleep: sleepCtx}
}

// WithArtifacts returns a copy of l writing overlays to a.
func (l *Loop) WithArtifacts(a *Artifacts) *Loop {
	c := *l
	c.cfg.Artifacts = a
	return &c
}

// run is the mutable state of one objective.
type run struct {
	objective  string
	state      State
	step       int
	history    []string
	taps       []TapRecord
	reason     string
	err        error
	screenshot []byte
	index      *uitree.Index
	visible    string
}

// Run drives the device toward objective until a verdict, the step budget
// or an execution error.
func (l *Loop) Run(ctx context.Context, objective string) Result {
	start := time.Now()
	r := &run{objective: objective, state: StateObserving}
	logger.Info("--- starting objective: %s ---", objective)
	// Session hints belong to one objective.
	l.memory.ClearSession()

	l.loop(ctx, r)

	logger.Info("objective finished: %s after %d steps", r.state, r.step)
	return Result{
		Objective: objective,
		Outcome:   r.state.Outcome(),
		Steps:     r.step,
		History:   r.history,
		Taps:      r.taps,
		Reason:    r.reason,
		Err:       r.err,
		Duration:  time.Since(start),
	}
}

func (l *Loop) loop(ctx context.Context, r *run) {
	width, height, err := l.device.ScreenSize(ctx)
	if err != nil {
		l.errored(r, core.ErrDeviceUnavailable.WithMessage("screen size unavailable").WithCause(err))
		return
	}
	logger.Info("screen size: %dx%d", width, height)

	planner := NewPlanner(l.oracle, l.memory)
	supervisor := NewSupervisor(l.oracle)
	resolver := NewResolver(l.oracle, l.memory, ResolverConfig{
		Width:     width,
		Height:    height,
		SidebarX:  l.cfg.Agent.SidebarX,
		Artifacts: l.cfg.Artifacts,
	})
	region := uitree.Region(l.cfg.Region)

	for r.step < l.cfg.Agent.MaxSteps {
		if l.cancelled(ctx, r) {
			return
		}

		r.state = StateObserving
		if err := l.observe(ctx, r); err != nil {
			l.errored(r, err)
			return
		}

		if r.step >= l.cfg.Agent.VerifyAfter {
			r.state = StateVerifying
			if l.verify(ctx, r, supervisor) {
				return
			}
		}

		if l.cancelled(ctx, r) {
			return
		}
		r.state = StatePlanning
		next := planner.NextStep(ctx, r.objective, r.history, r.screenshot, r.visible)
		logger.Info("planner suggests: %q", next)
		if l.concluded(r, next) {
			return
		}

		var intent action.Intent
		var target *detection
		if next == "" {
			intent = action.Wait(1)
		} else {
			r.history = append(r.history, next)
			r.state = StateResolving
			target = l.detect(r, next, width, height, region)
			var hint *core.Bounds
			if target != nil {
				hint = &target.Bounds
			}
			intent = resolver.Resolve(ctx, next, r.screenshot, hint)
		}

		if l.cancelled(ctx, r) {
			return
		}
		r.state = StateExecuting
		if l.cfg.OnStep != nil {
			l.cfg.OnStep(r.step+1, next, intent)
		}
		if err := l.execute(ctx, r, next, intent, target); err != nil {
			if ctx.Err() != nil {
				l.cancelled(ctx, r)
				return
			}
			l.errored(r, core.ErrActionExecution.WithCause(err).WithDetails(map[string]interface{}{
				"step":   r.step + 1,
				"action": intent.String(),
			}))
			return
		}
		r.step++
	}
	r.state = StateExhausted
	r.reason = "step budget exhausted"
}

// observe captures the screen and UI tree and settles any pending gear tap.
func (l *Loop) observe(ctx context.Context, r *run) error {
	shot, err := l.device.Screenshot(ctx)
	if err != nil {
		return core.ErrActionExecution.WithMessage("screenshot failed").WithCause(err)
	}
	r.screenshot = shot

	raw, err := l.device.DumpHierarchy(ctx)
	if err != nil {
		logger.Warn("%v", err)
	}
	r.index = uitree.FromXML(raw)
	if r.index.Empty() {
		r.visible = uiDumpFailedText
	} else {
		r.visible = r.index.VisibleText(visibleTextLimit)
	}
	logger.Debug("visible UI text: %s", r.visible)
	if r.step == 0 && !r.index.Empty() {
		logger.Debug("available UI elements: %q", r.index.Texts())
	}

	if x, y, ok := l.memory.SessionPoint(pendingGearKey); ok {
		lower := strings.ToLower(r.visible)
		for _, indicator := range settingsIndicators {
			if strings.Contains(lower, indicator) {
				logger.Info("gear tap verified, memorizing (%d, %d)", x, y)
				l.memory.RememberLocation("gear", x, y, "Settings screen")
				break
			}
		}
		l.memory.SetSession(pendingGearKey, nil)
	}
	return nil
}

// verify asks the supervisor for a verdict and reports whether the run ended.
func (l *Loop) verify(ctx context.Context, r *run, supervisor *Supervisor) bool {
	verdict, reply := supervisor.Verify(ctx, r.objective, r.screenshot, r.step)
	logger.Info("supervisor status: %s (%q)", verdict, reply)
	if l.cfg.OnVerify != nil {
		l.cfg.OnVerify(r.step, verdict, reply)
	}

	switch verdict {
	case VerdictPass:
		r.state = StatePassed
		r.reason = reply
		return true
	case VerdictFail:
		if r.step > l.cfg.Agent.FailAfter {
			r.state = StateFailed
			r.reason = reply
			return true
		}
		logger.Info("supervisor reports failure at step %d, continuing", r.step)
	}
	return false
}

// concluded handles planner DONE and FAIL steps.
func (l *Loop) concluded(r *run, next string) bool {
	screen := truncate(r.visible, memoryContextLen)
	switch {
	case strings.Contains(next, "DONE"):
		l.memory.RememberSuccess("Completed: "+r.objective, screen)
		r.state = StatePassed
		r.reason = next
		return true
	case strings.Contains(next, "FAIL"):
		l.memory.RememberFailure(next, screen, next)
		r.state = StateFailed
		r.reason = next
		return true
	}
	return false
}

// detect locates the step's target in the UI tree.
func (l *Loop) detect(r *run, step string, width, height int, region uitree.Region) *detection {
	in := &detectInput{
		step:   step,
		lower:  strings.ToLower(step),
		index:  r.index,
		width:  width,
		height: height,
		region: region,
	}

	if in.isSettings() {
		logger.Debug("content-desc values: %q", r.index.ContentDescs())
		for _, e := range r.index.Clickables() {
			if e.Bounds.Bottom() < headerMaxY {
				logger.Debug("header clickable: %s", e)
			}
		}
	}

	found, name, ok := detectTarget(in)
	if ok {
		logger.Info("detector %s: %s at %s", name, found.Label, found.Bounds)
		return &found
	}
	if in.isTap() {
		err := core.ErrElementNotFound.WithDetails(map[string]interface{}{
			"step":      step,
			"available": r.index.Texts(),
		})
		logger.Warn("%v: %q, available elements: %q", err, step, r.index.Texts())
	}
	return nil
}

// execute performs intent and waits for the UI to settle.
func (l *Loop) execute(ctx context.Context, r *run, step string, intent action.Intent, target *detection) error {
	lower := strings.ToLower(step)
	logger.Info("executor action: %s", intent)

	switch intent.Kind {
	case action.KindTap:
		if err := l.tap(ctx, r, step, intent, target); err != nil {
			return err
		}
		delay := l.cfg.Timing.PostTap
		if containsAny(lower, launchWords) {
			delay = l.cfg.Timing.AppLaunch
		}
		if err := l.sleep(ctx, delay); err != nil {
			return err
		}

	case action.KindType:
		if err := l.typeText(ctx, r, lower, intent.Text, target); err != nil {
			return err
		}

	case action.KindKey:
		if err := l.device.KeyEvent(ctx, intent.KeyCode); err != nil {
			return err
		}
		if err := l.sleep(ctx, l.cfg.Timing.PostKey); err != nil {
			return err
		}

	case action.KindSwipe:
		if err := l.device.Swipe(ctx, intent.X, intent.Y, intent.X2, intent.Y2, intent.DurationMs); err != nil {
			return err
		}
		if err := l.sleep(ctx, l.cfg.Timing.PostSwipe); err != nil {
			return err
		}

	case action.KindWait:
		if err := l.sleep(ctx, time.Duration(intent.Seconds*float64(time.Second))); err != nil {
			return err
		}
	}

	return l.sleep(ctx, l.cfg.Timing.Settle)
}

func (l *Loop) tap(ctx context.Context, r *run, step string, intent action.Intent, target *detection) error {
	if err := l.device.Tap(ctx, intent.X, intent.Y); err != nil {
		return err
	}

	rec := TapRecord{Step: r.step + 1, X: intent.X, Y: intent.Y, Desc: step, Label: "Target"}
	if target != nil {
		b := target.Bounds
		rec.Target = &b
		rec.Label = target.Label
	}
	var onScreen []core.Bounds
	for _, tb := range r.index.TextBounds() {
		onScreen = append(onScreen, tb.Bounds)
	}
	rec.Overlay = l.cfg.Artifacts.SaveTap(r.screenshot, vision.TapMark{
		X: intent.X, Y: intent.Y, Index: rec.Step,
		Target:      rec.Target,
		TargetLabel: rec.Label,
		Context:     onScreen,
	})
	r.taps = append(r.taps, rec)

	lower := strings.ToLower(step)
	// Vision-found taps are unverified and never memorized.
	if target != nil {
		for _, kw := range memorableTargets {
			if strings.Contains(lower, kw) {
				l.memory.RememberLocation(kw, intent.X, intent.Y, truncate(r.visible, memoryContextLen))
				break
			}
		}
	}
	if strings.Contains(lower, "gear") || strings.Contains(lower, "settings") {
		l.memory.SetSessionPoint(pendingGearKey, intent.X, intent.Y)
	}
	return nil
}

// typeText focuses the target field unless the previous step already put
// the cursor in the body, types, then dismisses the keyboard with Back.
func (l *Loop) typeText(ctx context.Context, r *run, lower, text string, target *detection) error {
	prevBodyTap := false
	if n := len(r.history); n >= 2 {
		prevBodyTap = strings.Contains(strings.ToLower(r.history[n-2]), "body")
	}

	if !prevBodyTap && target != nil && target.Label != labelBodyArea {
		x, y := target.Bounds.Center()
		logger.Debug("focusing field at (%d, %d)", x, y)
		if err := l.device.Tap(ctx, x, y); err != nil {
			return err
		}
		if err := l.sleep(ctx, l.cfg.Timing.Focus); err != nil {
			return err
		}
	}

	if clearer, ok := l.device.(textClearer); ok && (strings.Contains(lower, "clear") || strings.Contains(lower, "replace")) {
		if err := clearer.ClearText(ctx); err != nil {
			return err
		}
	}

	if err := l.sleep(ctx, l.cfg.Timing.PreType); err != nil {
		return err
	}
	if err := l.device.TypeText(ctx, text); err != nil {
		return err
	}
	if err := l.sleep(ctx, l.cfg.Timing.PostType); err != nil {
		return err
	}
	if err := l.device.KeyEvent(ctx, core.KeyBack); err != nil {
		return err
	}
	return l.sleep(ctx, l.cfg.Timing.KeyboardDismiss)
}

func (l *Loop) cancelled(ctx context.Context, r *run) bool {
	if err := ctx.Err(); err != nil {
		r.state = StateErrored
		r.err = err
		r.reason = "cancelled"
		return true
	}
	return false
}

func (l *Loop) errored(r *run, err error) {
	logger.Error("execution error: %v", err)
	r.state = StateErrored
	r.err = err
	r.reason = err.Error()
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
