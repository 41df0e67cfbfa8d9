package vision

import (
	"fmt"

	"github.com/devicelab-dev/qa-pilot/pkg/core"
)

// DefaultTapRadius is the radius of the tap marker ring.
const DefaultTapRadius = 24

// TapMark describes one executed tap for the debug overlay.
type TapMark struct {
	X, Y   int
	Index  int // shown as "#n" next to the marker
	Radius int // zero uses DefaultTapRadius

	// Target is the element the tap was aimed at, if it came from the UI tree.
	Target      *core.Bounds
	TargetLabel string

	// Context is every element bound on screen, drawn thin and grey.
	Context []core.Bounds
}

// TapOverlay returns a PNG copy of screenshot with context bounds in grey,
// the target in lime with its label, and the tap point as a red ring.
func TapOverlay(screenshot []byte, mark TapMark) ([]byte, error) {
	c, err := decode(screenshot)
	if err != nil {
		return nil, err
	}

	for _, b := range mark.Context {
		c.rect(b.X, b.Y, b.Right(), b.Bottom(), 1, colorGray)
	}

	if mark.Target != nil {
		t := *mark.Target
		label := mark.TargetLabel
		if label == "" {
			label = "target"
		}
		c.rect(t.X, t.Y, t.Right(), t.Bottom(), 4, colorLime)
		c.text(t.Right()+6, t.Y, label, colorLime)
	}

	radius := mark.Radius
	if radius <= 0 {
		radius = DefaultTapRadius
	}
	c.circle(mark.X, mark.Y, radius, 4, colorRed)
	c.text(mark.X+radius+6, mark.Y-radius, fmt.Sprintf("#%d", mark.Index), colorRed)

	return c.encode()
}
