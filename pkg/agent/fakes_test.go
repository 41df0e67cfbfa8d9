package agent

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/qa-pilot/pkg/config"
	"github.com/devicelab-dev/qa-pilot/pkg/core"
	"github.com/devicelab-dev/qa-pilot/pkg/memory"
	"github.com/devicelab-dev/qa-pilot/pkg/oracle"
)

const sampleHierarchy = `<?xml version="1.0" encoding="UTF-8"?>
<hierarchy rotation="0">
  <node index="0" text="" class="android.widget.FrameLayout" bounds="[0,0][1080,2400]" clickable="false">
    <node index="0" text="Welcome to Obsidian" class="android.widget.TextView" bounds="[100,100][980,180]" clickable="false"/>
    <node index="1" text="Create a vault" class="android.widget.Button" bounds="[100,200][400,260]" clickable="true"/>
    <node index="2" text="Vault name" class="android.widget.TextView" bounds="[50,420][300,460]" clickable="false"/>
    <node index="3" text="" hint="My vault" class="android.widget.EditText" bounds="[50,470][1000,530]" clickable="true"/>
  </node>
</hierarchy>`

const settingsHierarchy = `<?xml version="1.0" encoding="UTF-8"?>
<hierarchy rotation="0">
  <node index="0" text="Appearance" class="android.widget.TextView" bounds="[0,300][1080,400]" clickable="true"/>
  <node index="1" text="Editor" class="android.widget.TextView" bounds="[0,400][1080,500]" clickable="true"/>
</hierarchy>`

// fakeDevice records every action and replays UI dumps in order; the last
// dump repeats.
type fakeDevice struct {
	mu sync.Mutex

	width, height int
	screenshot    []byte
	dumps         []string
	dumpErr       error
	sizeErr       error
	tapErr        error

	taps   [][2]int
	typed  []string
	keys   []int
	swipes [][5]int
}

func newFakeDevice(t *testing.T, dumps ...string) *fakeDevice {
	return &fakeDevice{width: 1080, height: 2400, screenshot: testPNG(t), dumps: dumps}
}

func (f *fakeDevice) Screenshot(context.Context) ([]byte, error) { return f.screenshot, nil }

func (f *fakeDevice) Shell(context.Context, string) (string, error) { return "", nil }

func (f *fakeDevice) DumpHierarchy(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dumpErr != nil {
		return "", f.dumpErr
	}
	if len(f.dumps) == 0 {
		return "", core.ErrUIDumpUnavailable
	}
	d := f.dumps[0]
	if len(f.dumps) > 1 {
		f.dumps = f.dumps[1:]
	}
	return d, nil
}

func (f *fakeDevice) Tap(_ context.Context, x, y int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tapErr != nil {
		return f.tapErr
	}
	f.taps = append(f.taps, [2]int{x, y})
	return nil
}

func (f *fakeDevice) TypeText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typed = append(f.typed, text)
	return nil
}

func (f *fakeDevice) KeyEvent(_ context.Context, code int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, code)
	return nil
}

func (f *fakeDevice) Swipe(_ context.Context, x1, y1, x2, y2, d int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swipes = append(f.swipes, [5]int{x1, y1, x2, y2, d})
	return nil
}

func (f *fakeDevice) ScreenSize(context.Context) (int, int, error) {
	return f.width, f.height, f.sizeErr
}

var _ core.Device = (*fakeDevice)(nil)

// testPNG is a small valid screenshot.
func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 108, 240))))
	return buf.Bytes()
}

// roleOracle answers by prompt role: supervisor, executor (vision) or planner.
type roleOracle struct {
	mu         sync.Mutex
	supervisor func(n int) string
	planner    func(n int) string
	executor   func(n int) string
	calls      map[string]int
}

func (o *roleOracle) Infer(_ context.Context, prompt string, _ []byte) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.calls == nil {
		o.calls = map[string]int{}
	}
	role := "planner"
	switch {
	case strings.Contains(prompt, "QA Supervisor"):
		role = "supervisor"
	case strings.Contains(prompt, "Automation Executor"):
		role = "executor"
	}
	n := o.calls[role]
	o.calls[role]++

	var fn func(int) string
	switch role {
	case "supervisor":
		fn = o.supervisor
	case "executor":
		fn = o.executor
	default:
		fn = o.planner
	}
	if fn == nil {
		return "CONTINUE", nil
	}
	return fn(n), nil
}

func (o *roleOracle) count(role string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[role]
}

func always(s string) func(int) string { return func(int) string { return s } }

func script(steps ...string) func(int) string {
	return func(n int) string {
		if n < len(steps) {
			return steps[n]
		}
		return steps[len(steps)-1]
	}
}

var _ oracle.Oracle = (*roleOracle)(nil)

// newTestLoop builds a loop with no real delays and a throwaway memory file.
func newTestLoop(t *testing.T, dev core.Device, o oracle.Oracle) (*Loop, *memory.Memory) {
	t.Helper()
	mem := memory.Open(t.TempDir() + "/agent_memory.json")
	cfg := DefaultConfig()
	cfg.Timing = config.Timing{}
	l := NewLoop(dev, o, mem, cfg)
	l.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return l, mem
}
