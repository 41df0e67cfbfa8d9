package uitree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/devicelab-dev/qa-pilot/pkg/core"
)

const sampleHierarchy = `<?xml version="1.0" encoding="UTF-8"?>
<hierarchy rotation="0">
  <node index="0" text="" resource-id="" class="android.widget.FrameLayout" bounds="[0,0][1080,2400]" clickable="false">
    <node index="0" text="Welcome to Obsidian" class="android.widget.TextView" bounds="[100,100][980,180]" clickable="false"/>
    <node index="1" text="Create a vault" class="android.widget.Button" bounds="[100,200][400,260]" clickable="true"/>
    <node index="2" text="" content-desc="Open settings" class="android.widget.ImageView" bounds="[820,150][900,230]" clickable="true"/>
    <node index="3" text="Vault name" class="android.widget.TextView" bounds="[50,420][300,460]" clickable="false"/>
    <node index="4" text="" hint="My vault" resource-id="md.obsidian:id/name_input" class="android.widget.EditText" bounds="[50,470][1000,530]" clickable="true" focused="true"/>
    <node index="5" text="Broken" class="android.widget.TextView" bounds="garbage" clickable="true"/>
  </node>
</hierarchy>`

func TestParse(t *testing.T) {
	elements := Parse(sampleHierarchy)

	// 7 nodes, one with malformed bounds skipped
	require.Len(t, elements, 6)

	btn := elements[2]
	assert.Equal(t, "Create a vault", btn.Text)
	assert.Equal(t, "android.widget.Button", btn.ClassName)
	assert.True(t, btn.Clickable)
	assert.Equal(t, core.BoundsFromRect(100, 200, 400, 260), btn.Bounds)
	assert.Equal(t, 1, btn.Depth)

	input := elements[5]
	assert.Equal(t, "My vault", input.HintText)
	assert.True(t, input.Focused)
	assert.True(t, input.IsEditText())
	assert.True(t, input.IsInput())
}

func TestParse_ClassNamedTags(t *testing.T) {
	raw := `<hierarchy>
  <android.widget.FrameLayout bounds="[0,0][1080,1920]">
    <android.widget.Button text="OK" clickable="true" bounds="[10,10][110,60]"/>
  </android.widget.FrameLayout>
</hierarchy>`
	elements := Parse(raw)
	require.Len(t, elements, 2)
	assert.Equal(t, "android.widget.Button", elements[1].ClassName)
	assert.Equal(t, 1, elements[1].Depth)
}

func TestParse_Degrades(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace", "  \n"},
		{"not xml", "not xml"},
		{"truncated", `<hierarchy><node bounds="[0,0][1,1]">`},
		{"adb error text", "ERROR: null root node returned by UiTestAutomationBridge."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, Parse(tt.raw))
		})
	}
}

func TestParse_BareNodeRoot(t *testing.T) {
	raw := `<node text="Create a vault" class="Button" bounds="[100,200][400,260]" clickable="true"/>`

	elements := Parse(raw)
	require.Len(t, elements, 1)
	assert.Equal(t, "Create a vault", elements[0].Text)
	assert.Equal(t, 0, elements[0].Depth)

	b, ok := FromXML(raw).FindButtonByText("Create a vault")
	require.True(t, ok)
	x, y := b.Center()
	assert.Equal(t, 250, x)
	assert.Equal(t, 230, y)
}

func TestParse_NodeRootKeepsChildren(t *testing.T) {
	raw := `<node class="android.widget.FrameLayout" bounds="[0,0][1080,2400]">
  <node text="Editor" bounds="[0,400][1080,500]"/>
</node>`

	elements := Parse(raw)
	require.Len(t, elements, 2)
	assert.Equal(t, "android.widget.FrameLayout", elements[0].ClassName)
	assert.Equal(t, 1, elements[1].Depth)
}

func TestParse_InvertedBoundsSkipped(t *testing.T) {
	raw := `<hierarchy>
  <node text="inverted" bounds="[100,100][50,200]"/>
  <node text="ok" bounds="[0,0][10,10]"/>
</hierarchy>`
	elements := Parse(raw)
	require.Len(t, elements, 1)
	assert.Equal(t, "ok", elements[0].Text)
}

func TestParseBounds(t *testing.T) {
	tests := []struct {
		in   string
		want core.Bounds
		ok   bool
	}{
		{"[0,0][1080,2400]", core.Bounds{X: 0, Y: 0, Width: 1080, Height: 2400}, true},
		{"[100,200][400,260]", core.Bounds{X: 100, Y: 200, Width: 300, Height: 60}, true},
		{"[5,5][5,5]", core.Bounds{X: 5, Y: 5}, true},
		{"", core.Bounds{}, false},
		{"[1,2][3]", core.Bounds{}, false},
		{"[-1,0][10,10]", core.Bounds{}, false},
		{"[10,10][5,20]", core.Bounds{}, false},
		{"[10,10][20,5]", core.Bounds{}, false},
		{"1,2,3,4", core.Bounds{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseBounds(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBounds_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		x1 := rapid.IntRange(0, 3000).Draw(rt, "x1")
		y1 := rapid.IntRange(0, 3000).Draw(rt, "y1")
		x2 := rapid.IntRange(0, 3000).Draw(rt, "x2")
		y2 := rapid.IntRange(0, 3000).Draw(rt, "y2")

		b, ok := ParseBounds(fmt.Sprintf("[%d,%d][%d,%d]", x1, y1, x2, y2))
		if x2 < x1 || y2 < y1 {
			if ok {
				rt.Fatalf("inverted rect accepted: %v", b)
			}
			return
		}
		if !ok {
			rt.Fatalf("valid rect rejected")
		}
		if b.X != x1 || b.Y != y1 || b.Right() != x2 || b.Bottom() != y2 {
			rt.Fatalf("round trip mismatch: %v", b)
		}
	})
}

func TestParse_BoundsAlwaysOrdered(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 12).Draw(rt, "n")
		raw := "<hierarchy>"
		for i := 0; i < n; i++ {
			bounds := rapid.OneOf(
				rapid.Just("garbage"),
				rapid.Just(""),
				rapid.Custom(func(t *rapid.T) string {
					return fmt.Sprintf("[%d,%d][%d,%d]",
						rapid.IntRange(0, 2000).Draw(t, "x1"), rapid.IntRange(0, 2000).Draw(t, "y1"),
						rapid.IntRange(0, 2000).Draw(t, "x2"), rapid.IntRange(0, 2000).Draw(t, "y2"))
				}),
			).Draw(rt, "bounds")
			raw += fmt.Sprintf(`<node text="n%d" bounds="%s"/>`, i, bounds)
		}
		raw += "</hierarchy>"

		for _, e := range Parse(raw) {
			if e.Bounds.Width < 0 || e.Bounds.Height < 0 {
				rt.Fatalf("element %q has inverted bounds %v", e.Text, e.Bounds)
			}
		}
	})
}

func TestElementPredicates(t *testing.T) {
	tests := []struct {
		name   string
		elem   Element
		button bool
		toggle bool
		input  bool
	}{
		{"button class", Element{ClassName: "android.widget.Button"}, true, false, false},
		{"clickable view", Element{ClassName: "android.view.View", Clickable: true}, true, false, false},
		{"plain text", Element{ClassName: "android.widget.TextView"}, false, false, false},
		{"switch", Element{ClassName: "android.widget.Switch"}, false, true, false},
		{"checkable", Element{ClassName: "android.view.View", Checkable: true}, false, true, false},
		{"checkbox", Element{ClassName: "android.widget.CheckBox"}, false, true, false},
		{"edit text", Element{ClassName: "android.widget.EditText"}, false, false, true},
		{"input resource", Element{ClassName: "android.view.View", ResourceID: "app:id/name_input"}, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.button, tt.elem.IsButton(), "IsButton")
			assert.Equal(t, tt.toggle, tt.elem.IsToggle(), "IsToggle")
			assert.Equal(t, tt.input, tt.elem.IsInput(), "IsInput")
		})
	}
}
