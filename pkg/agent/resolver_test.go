package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/qa-pilot/pkg/action"
	"github.com/devicelab-dev/qa-pilot/pkg/core"
	"github.com/devicelab-dev/qa-pilot/pkg/memory"
	"github.com/devicelab-dev/qa-pilot/pkg/oracle"
	"github.com/devicelab-dev/qa-pilot/pkg/uitree"
)

func newTestResolver(o oracle.Oracle, mem *memory.Memory) *Resolver {
	return NewResolver(o, mem, ResolverConfig{Width: 1080, Height: 2400})
}

func TestResolve_FastPaths(t *testing.T) {
	hint := core.BoundsFromRect(100, 200, 400, 260)
	tests := []struct {
		name string
		step string
		hint *core.Bounds
		want action.Intent
	}{
		{"hint tap", "Tap the 'Create a vault' button", &hint, action.Tap(250, 230)},
		{"arrow down", "Press down arrow", nil, action.Key(core.KeyDpadDown)},
		{"arrow up", "Press the up arrow", nil, action.Key(core.KeyDpadUp)},
		{"arrow left", "Press left arrow", nil, action.Key(core.KeyDpadLeft)},
		{"arrow right", "Press right arrow", nil, action.Key(core.KeyDpadRight)},
		{"enter", "Press Enter to confirm", nil, action.Key(core.KeyEnter)},
		{"return", "press return", nil, action.Key(core.KeyEnter)},
		{"swipe up", "Swipe up in the sidebar", nil, action.Swipe(250, 1680, 250, 720, 300)},
		{"scroll down", "Scroll down", nil, action.Swipe(250, 720, 250, 1680, 300)},
		{"quoted type", "Type 'Daily Standup'", nil, action.Type("Daily Standup")},
		{"double quoted type", `Type "Meeting Notes" as the title`, nil, action.Type("Meeting Notes")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := oracle.NewScripted()
			got := newTestResolver(o, nil).Resolve(context.Background(), tt.step, nil, tt.hint)
			assert.Equal(t, tt.want, got)
			assert.Empty(t, o.Calls(), "fast paths never call the oracle")
		})
	}
}

func TestResolve_MemorizedLocation(t *testing.T) {
	mem := memory.Open("")
	mem.RememberLocation("gear", 860, 190, "sidebar")
	o := oracle.NewScripted()
	r := newTestResolver(o, mem)

	assert.Equal(t, action.Tap(860, 190), r.Resolve(context.Background(), "Tap the gear icon", nil, nil))
	assert.Empty(t, o.Calls())

	// A UI-tree hint takes priority over memory.
	hint := core.BoundsFromRect(0, 0, 100, 100)
	assert.Equal(t, action.Tap(50, 50), r.Resolve(context.Background(), "Tap the gear icon", nil, &hint))
}

func TestResolve_Vision(t *testing.T) {
	dir := t.TempDir()
	o := oracle.NewScripted("```json\n{\"action\": \"tap\", \"x\": 860, \"y\": 190}\n```")
	r := NewResolver(o, nil, ResolverConfig{Width: 1080, Height: 2400, Artifacts: NewArtifacts(dir)})

	got := r.Resolve(context.Background(), "Tap the gear icon", testPNG(t), nil)
	assert.Equal(t, action.Tap(860, 190), got)

	calls := o.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].HasImage)
	assert.Contains(t, calls[0].Prompt, "ACTION TO PERFORM: Tap the gear icon")
	assert.Contains(t, calls[0].Prompt, "SCREEN SIZE: 1080x2400 pixels")

	_, err := os.Stat(filepath.Join(dir, "vision_1_grid.png"))
	assert.NoError(t, err, "grid overlay saved")
}

func TestResolve_VisionFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		step   string
		oracle oracle.Oracle
		want   action.Intent
	}{
		{"garbage reply", "Tap the gear icon", oracle.NewScripted("I think it is top right"), action.Wait(1)},
		{"oracle error", "Tap the gear icon", oracle.NewScripted().FailWith(errors.New("quota")), action.Wait(1)},
		{"off screen", "Tap the gear icon", oracle.NewScripted(`{"action": "tap", "x": 5000, "y": 10}`), action.Wait(1)},
		{"missing fields", "Tap the gear icon", oracle.NewScripted(`{"action": "tap"}`), action.Wait(1)},
		{"not an action", "Tap the gear icon", oracle.NewScripted(`{"answer": 42}`), action.Wait(1)},
		{"model wait", "Tap the gear icon", oracle.NewScripted(`{"action": "wait", "seconds": 2}`), action.Wait(2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTestResolver(tt.oracle, nil).Resolve(context.Background(), tt.step, nil, nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_EmptyDumpGearGoesToVision(t *testing.T) {
	o := oracle.NewScripted(`{"action": "tap", "x": 860, "y": 190}`)
	dev := newFakeDevice(t) // no dumps: every dump is unavailable
	l, _ := newTestLoop(t, dev, o)

	r := &run{index: nil}
	require.NoError(t, l.observe(context.Background(), r))
	assert.True(t, r.index.Empty())
	assert.Nil(t, l.detect(r, "Tap the gear icon", 1080, 2400, uitree.DefaultRegion))

	got := newTestResolver(o, nil).Resolve(context.Background(), "Tap the gear icon", r.screenshot, nil)
	assert.True(t, got.Kind == action.KindTap || got.Kind == action.KindWait)
	assert.True(t, got.InBounds(1080, 2400))
	assert.Len(t, o.Calls(), 1)
}
