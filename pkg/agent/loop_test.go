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
)

func TestLoop_TapFromUITree(t *testing.T) {
	dev := newFakeDevice(t, sampleHierarchy)
	o := &roleOracle{planner: always("Tap the 'Create a vault' button")}
	l, _ := newTestLoop(t, dev, o)
	l.cfg.Agent.MaxSteps = 1

	res := l.Run(context.Background(), "Create a vault")

	assert.Equal(t, core.OutcomeExhausted, res.Outcome)
	assert.Equal(t, [][2]int{{250, 230}}, dev.taps)
	assert.Equal(t, 0, o.count("executor"), "UI tree hit needs no vision call")
	assert.Equal(t, 0, o.count("supervisor"), "supervisor waits for step 3")
	require.Len(t, res.Taps, 1)
	assert.Equal(t, 1, res.Taps[0].Step)
	assert.Equal(t, "Button:Create a vault", res.Taps[0].Label)
}

func TestLoop_TapFromBareNodeDump(t *testing.T) {
	bare := `<node text="Create a vault" class="Button" bounds="[100,200][400,260]" clickable="true"/>`
	dev := newFakeDevice(t, bare)
	o := &roleOracle{planner: always("Tap the 'Create a vault' button")}
	l, _ := newTestLoop(t, dev, o)
	l.cfg.Agent.MaxSteps = 1

	l.Run(context.Background(), "Create a vault")

	assert.Equal(t, [][2]int{{250, 230}}, dev.taps)
	assert.Equal(t, 0, o.count("executor"))
}

func TestLoop_ExhaustsStepBudget(t *testing.T) {
	dev := newFakeDevice(t, sampleHierarchy)
	o := &roleOracle{planner: always("Press down arrow"), supervisor: always("CONTINUE")}
	l, _ := newTestLoop(t, dev, o)

	res := l.Run(context.Background(), "Never finishes")

	assert.Equal(t, core.OutcomeExhausted, res.Outcome)
	assert.Equal(t, 15, res.Steps)
	assert.Len(t, res.History, 15)
	assert.Len(t, dev.keys, 15)
	assert.Equal(t, 15, o.count("planner"))
	assert.Equal(t, 12, o.count("supervisor"), "steps 3 through 14")
}

func TestLoop_TypeWithoutOracle(t *testing.T) {
	dev := newFakeDevice(t, sampleHierarchy)
	o := &roleOracle{planner: script("Type 'Daily Standup'", "DONE")}
	l, mem := newTestLoop(t, dev, o)

	res := l.Run(context.Background(), "Type the standup")

	assert.Equal(t, core.OutcomePassed, res.Outcome)
	assert.Equal(t, []string{"Daily Standup"}, dev.typed)
	assert.Equal(t, 0, o.count("executor"))
	// Focus tap on the EditText, then Back to dismiss the keyboard.
	assert.Equal(t, [][2]int{{525, 500}}, dev.taps)
	assert.Equal(t, []int{core.KeyBack}, dev.keys)
	assert.Equal(t, "Completed: Type the standup", mem.Record().SuccessfulActions[0].Action)
}

func TestLoop_TypeAfterBodyTapSkipsFocus(t *testing.T) {
	dev := newFakeDevice(t, sampleHierarchy)
	o := &roleOracle{planner: script("Tap the body area below the title", "Type 'Daily Standup'", "DONE")}
	l, _ := newTestLoop(t, dev, o)

	res := l.Run(context.Background(), "Write the body")

	assert.Equal(t, core.OutcomePassed, res.Outcome)
	assert.Equal(t, [][2]int{{540, 960}}, dev.taps, "only the body tap, no focus tap")
	assert.Equal(t, []string{"Daily Standup"}, dev.typed)
}

func TestLoop_SupervisorPass(t *testing.T) {
	dev := newFakeDevice(t, sampleHierarchy)
	o := &roleOracle{planner: always("Press down arrow"), supervisor: always("PASS")}
	l, _ := newTestLoop(t, dev, o)

	res := l.Run(context.Background(), "obj")

	assert.Equal(t, core.OutcomePassed, res.Outcome)
	assert.Equal(t, 3, res.Steps)
	assert.Equal(t, "PASS", res.Reason)
}

func TestLoop_SupervisorFailHonouredAfterGraceWindow(t *testing.T) {
	dev := newFakeDevice(t, sampleHierarchy)
	o := &roleOracle{planner: always("Press down arrow"), supervisor: always("FAIL: crash dialog")}
	l, _ := newTestLoop(t, dev, o)

	var verdicts []int
	l.cfg.OnVerify = func(step int, v Verdict, _ string) {
		assert.Equal(t, VerdictFail, v)
		verdicts = append(verdicts, step)
	}

	res := l.Run(context.Background(), "obj")

	assert.Equal(t, core.OutcomeFailed, res.Outcome)
	assert.Equal(t, 8, res.Steps)
	assert.Equal(t, []int{3, 4, 5, 6, 7, 8}, verdicts)
}

func TestLoop_PlannerFail(t *testing.T) {
	dev := newFakeDevice(t, sampleHierarchy)
	o := &roleOracle{planner: always("FAIL: Element not found")}
	l, mem := newTestLoop(t, dev, o)

	res := l.Run(context.Background(), "Find Print to PDF")

	assert.Equal(t, core.OutcomeFailed, res.Outcome)
	assert.Equal(t, "FAIL: Element not found", res.Reason)
	failed := mem.Record().FailedActions
	require.Len(t, failed, 1)
	assert.Equal(t, "FAIL: Element not found", failed[0].Reason)
}

func TestLoop_PlannerErrorBecomesWait(t *testing.T) {
	dev := newFakeDevice(t, sampleHierarchy)
	o := &roleOracle{planner: script("", "DONE")}
	l, _ := newTestLoop(t, dev, o)

	var steps []action.Intent
	l.cfg.OnStep = func(_ int, _ string, intent action.Intent) { steps = append(steps, intent) }

	res := l.Run(context.Background(), "obj")

	assert.Equal(t, core.OutcomePassed, res.Outcome)
	assert.Equal(t, []action.Intent{action.Wait(1)}, steps)
	assert.Empty(t, res.History)
}

func TestLoop_GearVerifiedOnSettingsScreen(t *testing.T) {
	dev := newFakeDevice(t, "", settingsHierarchy)
	o := &roleOracle{
		planner:  script("Tap the gear icon", "DONE"),
		executor: always(`{"action": "tap", "x": 860, "y": 190}`),
	}
	l, mem := newTestLoop(t, dev, o)

	res := l.Run(context.Background(), "Open settings")

	assert.Equal(t, core.OutcomePassed, res.Outcome)
	assert.Equal(t, [][2]int{{860, 190}}, dev.taps)
	assert.Equal(t, 1, o.count("executor"))
	x, y, ok := mem.RecallLocation("gear")
	assert.True(t, ok)
	assert.Equal(t, 860, x)
	assert.Equal(t, 190, y)
	_, _, pending := mem.SessionPoint(pendingGearKey)
	assert.False(t, pending)
}

func TestLoop_GearNotVerifiedWithoutSettings(t *testing.T) {
	dev := newFakeDevice(t, "", sampleHierarchy)
	o := &roleOracle{
		planner:  script("Tap the gear icon", "DONE"),
		executor: always(`{"action": "tap", "x": 860, "y": 190}`),
	}
	l, mem := newTestLoop(t, dev, o)

	l.Run(context.Background(), "Open settings")

	_, _, ok := mem.RecallLocation("gear")
	assert.False(t, ok)
}

func TestLoop_MemorizesTreeTargets(t *testing.T) {
	xml := `<hierarchy>
  <node text="Expand" class="android.widget.Button" bounds="[0,100][100,200]" clickable="true"/>
</hierarchy>`
	dev := newFakeDevice(t, xml)
	o := &roleOracle{planner: script("Tap the 'Expand' button", "DONE")}
	l, mem := newTestLoop(t, dev, o)

	l.Run(context.Background(), "Open the sidebar")

	x, y, ok := mem.RecallLocation("expand")
	assert.True(t, ok)
	assert.Equal(t, [2]int{50, 150}, [2]int{x, y})
}

func TestLoop_TapOverlaySaved(t *testing.T) {
	dir := t.TempDir()
	dev := newFakeDevice(t, sampleHierarchy)
	o := &roleOracle{planner: script("Tap the 'Create a vault' button", "DONE")}
	l, _ := newTestLoop(t, dev, o)
	l.cfg.Artifacts = NewArtifacts(dir)

	res := l.Run(context.Background(), "obj")

	require.Len(t, res.Taps, 1)
	assert.Equal(t, filepath.Join(dir, "tap_1.png"), res.Taps[0].Overlay)
	_, err := os.Stat(res.Taps[0].Overlay)
	assert.NoError(t, err)
}

func TestLoop_DeviceErrorIsErrored(t *testing.T) {
	dev := newFakeDevice(t, sampleHierarchy)
	dev.tapErr = errors.New("adb: device offline")
	o := &roleOracle{planner: always("Tap the 'Create a vault' button")}
	l, _ := newTestLoop(t, dev, o)

	res := l.Run(context.Background(), "obj")

	assert.Equal(t, core.OutcomeErrored, res.Outcome)
	assert.ErrorIs(t, res.Err, core.ErrActionExecution)
	assert.Equal(t, 0, res.Steps)
}

func TestLoop_ScreenSizeFailure(t *testing.T) {
	dev := newFakeDevice(t, sampleHierarchy)
	dev.sizeErr = errors.New("no device")
	l, _ := newTestLoop(t, dev, &roleOracle{})

	res := l.Run(context.Background(), "obj")

	assert.Equal(t, core.OutcomeErrored, res.Outcome)
	assert.ErrorIs(t, res.Err, core.ErrDeviceUnavailable)
}

func TestLoop_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	dev := newFakeDevice(t, sampleHierarchy)
	o := &roleOracle{planner: func(n int) string {
		if n == 1 {
			cancel()
		}
		return "Press down arrow"
	}}
	l, _ := newTestLoop(t, dev, o)

	res := l.Run(ctx, "obj")

	assert.Equal(t, core.OutcomeErrored, res.Outcome)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 1, res.Steps)
	assert.Len(t, dev.keys, 1)
}

func TestStateOutcome(t *testing.T) {
	assert.Equal(t, core.OutcomePassed, StatePassed.Outcome())
	assert.Equal(t, core.OutcomeExhausted, StateExhausted.Outcome())
	assert.Equal(t, core.OutcomePending, StatePlanning.Outcome())
	assert.True(t, StateErrored.IsTerminal())
	assert.False(t, StateExecuting.IsTerminal())
}

func TestLoop_WithArtifacts(t *testing.T) {
	dev := newFakeDevice(t, sampleHierarchy)
	l, _ := newTestLoop(t, dev, &roleOracle{})
	dir := t.TempDir()

	c := l.WithArtifacts(NewArtifacts(dir))

	assert.Equal(t, dir, c.cfg.Artifacts.Dir())
	assert.Nil(t, l.cfg.Artifacts)
}

func TestLoop_ClearsSessionPerObjective(t *testing.T) {
	dev := newFakeDevice(t, sampleHierarchy)
	o := &roleOracle{planner: always("DONE")}
	l, mem := newTestLoop(t, dev, o)
	mem.SetSessionPoint(pendingGearKey, 860, 190)

	l.Run(context.Background(), "obj")

	_, _, ok := mem.RecallLocation("gear")
	assert.False(t, ok, "stale pending gear from a previous objective is dropped")
}
