package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/devicelab-dev/qa-pilot/pkg/action"
	"github.com/devicelab-dev/qa-pilot/pkg/core"
	"github.com/devicelab-dev/qa-pilot/pkg/logger"
	"github.com/devicelab-dev/qa-pilot/pkg/memory"
	"github.com/devicelab-dev/qa-pilot/pkg/oracle"
	"github.com/devicelab-dev/qa-pilot/pkg/vision"
)

// DefaultSidebarX is the x coordinate swipes are anchored to.
const DefaultSidebarX = 250

// Swipe span as fractions of screen height.
const (
	swipeNear = 0.3
	swipeFar  = 0.7
)

// memorizedKeywords are checked in order against memory before anything else.
var memorizedKeywords = []string{"gear", "settings", "menu", "back", "expand"}

// ResolverConfig sizes the Resolver to the device.
type ResolverConfig struct {
	Width, Height int
	SidebarX      int        // zero uses DefaultSidebarX
	Artifacts     *Artifacts // grid overlays; may be nil
}

// Resolver turns a natural-language step into one concrete action.
type Resolver struct {
	oracle    oracle.Oracle
	memory    *memory.Memory
	cfg       ResolverConfig
	gridCount int
}

// NewResolver creates a Resolver. mem may be nil.
func NewResolver(o oracle.Oracle, mem *memory.Memory, cfg ResolverConfig) *Resolver {
	if cfg.SidebarX == 0 {
		cfg.SidebarX = DefaultSidebarX
	}
	return &Resolver{oracle: o, memory: mem, cfg: cfg}
}

// resolveInput is one step being resolved.
type resolveInput struct {
	step       string
	lower      string
	screenshot []byte
	hint       *core.Bounds
}

type resolutionRule struct {
	name    string
	resolve func(r *Resolver, ctx context.Context, in *resolveInput) (action.Intent, bool)
}

// resolutionRules are evaluated in order; the first match wins. The vision
// rule always matches.
var resolutionRules = []resolutionRule{
	{"memorized-location", (*Resolver).fromMemory},
	{"key-press", (*Resolver).keyPress},
	{"swipe", (*Resolver).swipe},
	{"structured-hint", (*Resolver).fromHint},
	{"quoted-type", (*Resolver).quotedType},
	{"vision", (*Resolver).fromVision},
}

// Resolve returns the action for step. hint is the target bounds found in
// the UI tree, if any. Resolve never fails: when nothing else works it
// returns a one second wait.
func (r *Resolver) Resolve(ctx context.Context, step string, screenshot []byte, hint *core.Bounds) action.Intent {
	in := &resolveInput{step: step, lower: strings.ToLower(step), screenshot: screenshot, hint: hint}
	for _, rule := range resolutionRules {
		if intent, ok := rule.resolve(r, ctx, in); ok {
			logger.Info("resolver: %s -> %s", rule.name, intent)
			return intent
		}
	}
	return action.Wait(1)
}

func (r *Resolver) fromMemory(_ context.Context, in *resolveInput) (action.Intent, bool) {
	if in.hint != nil || r.memory == nil || !strings.Contains(in.lower, "tap") {
		return action.Intent{}, false
	}
	for _, kw := range memorizedKeywords {
		if !strings.Contains(in.lower, kw) {
			continue
		}
		if x, y, ok := r.memory.RecallLocation(kw); ok {
			logger.Info("resolver: using memorized location for %q", kw)
			return action.Tap(x, y), true
		}
	}
	return action.Intent{}, false
}

func (r *Resolver) keyPress(_ context.Context, in *resolveInput) (action.Intent, bool) {
	if strings.Contains(in.lower, "press") && strings.Contains(in.lower, "arrow") {
		switch {
		case strings.Contains(in.lower, "down"):
			return action.Key(core.KeyDpadDown), true
		case strings.Contains(in.lower, "up"):
			return action.Key(core.KeyDpadUp), true
		case strings.Contains(in.lower, "left"):
			return action.Key(core.KeyDpadLeft), true
		case strings.Contains(in.lower, "right"):
			return action.Key(core.KeyDpadRight), true
		}
	}
	if strings.Contains(in.lower, "press enter") || strings.Contains(in.lower, "press return") {
		return action.Key(core.KeyEnter), true
	}
	return action.Intent{}, false
}

func (r *Resolver) swipe(_ context.Context, in *resolveInput) (action.Intent, bool) {
	if !strings.Contains(in.lower, "swipe") && !strings.Contains(in.lower, "scroll") {
		return action.Intent{}, false
	}
	up := strings.Contains(in.lower, "up")
	if !up && !strings.Contains(in.lower, "down") {
		return action.Intent{}, false
	}
	x := r.cfg.SidebarX
	near := int(float64(r.cfg.Height) * swipeNear)
	far := int(float64(r.cfg.Height) * swipeFar)
	if up {
		return action.Swipe(x, far, x, near, action.DefaultSwipeMs), true
	}
	return action.Swipe(x, near, x, far, action.DefaultSwipeMs), true
}

func (r *Resolver) fromHint(_ context.Context, in *resolveInput) (action.Intent, bool) {
	if in.hint == nil || !strings.Contains(in.lower, "tap") {
		return action.Intent{}, false
	}
	x, y := in.hint.Center()
	return action.Tap(x, y), true
}

func (r *Resolver) quotedType(_ context.Context, in *resolveInput) (action.Intent, bool) {
	if !strings.Contains(in.lower, "type") {
		return action.Intent{}, false
	}
	if text, ok := action.QuotedText(in.step); ok {
		return action.Type(text), true
	}
	return action.Intent{}, false
}

// fromVision asks the oracle to locate the target on a gridded screenshot.
func (r *Resolver) fromVision(ctx context.Context, in *resolveInput) (action.Intent, bool) {
	image := in.screenshot
	if grid, err := vision.GridOverlay(in.screenshot); err != nil {
		logger.Warn("resolver: grid overlay failed, sending raw screenshot: %v", err)
	} else {
		image = grid
		r.gridCount++
		r.cfg.Artifacts.SaveGrid(fmt.Sprintf("vision_%d", r.gridCount), grid)
	}

	reply, err := r.oracle.Infer(ctx, executorPrompt(in.step, r.cfg.Width, r.cfg.Height), image)
	if err != nil {
		logger.Warn("resolver: oracle call failed: %v", err)
		return r.visionFallback(in), true
	}

	intent, err := action.Parse(reply)
	if err != nil {
		logger.Warn("resolver: %v", err)
		return r.visionFallback(in), true
	}
	if r.cfg.Width > 0 && r.cfg.Height > 0 && !intent.InBounds(r.cfg.Width, r.cfg.Height) {
		logger.Warn("resolver: %s is off a %dx%d screen, waiting instead", intent, r.cfg.Width, r.cfg.Height)
		return action.Wait(1), true
	}
	return intent, true
}

// visionFallback salvages a type step from its quoted text, else waits.
func (r *Resolver) visionFallback(in *resolveInput) action.Intent {
	if strings.Contains(in.lower, "type") {
		if text, ok := action.SingleQuotedText(in.step); ok {
			return action.Type(text)
		}
	}
	return action.Wait(1)
}
