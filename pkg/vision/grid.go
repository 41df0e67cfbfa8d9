package vision

import "fmt"

// Grid geometry. Thin lines every GridStep pixels, bold labelled lines on
// multiples of 100, coordinate markers every 200 pixels, and a denser row
// of markers across the header where icons sit.
const (
	GridStep       = 50
	gridMajor      = 100
	gridMarkerStep = 200
	headerMarkerX  = 1000
	headerMarkerY  = 300
)

// GridOverlay returns a PNG copy of screenshot with a labelled coordinate
// grid drawn over it.
func GridOverlay(screenshot []byte) ([]byte, error) {
	c, err := decode(screenshot)
	if err != nil {
		return nil, err
	}
	width, height := c.size()

	for x := 0; x < width; x += GridStep {
		if x%gridMajor == 0 {
			c.vline(x, 0, height, 2, colorRed)
			c.text(x+2, 2, fmt.Sprint(x), colorYellow)
		} else {
			c.vline(x, 0, height, 1, colorLightRed)
		}
	}
	for y := 0; y < height; y += GridStep {
		if y%gridMajor == 0 {
			c.hline(y, 0, width, 2, colorRed)
			c.text(2, y+2, fmt.Sprint(y), colorYellow)
		} else {
			c.hline(y, 0, width, 1, colorLightRed)
		}
	}

	for x := gridMarkerStep; x < width; x += gridMarkerStep {
		for y := gridMarkerStep; y < height; y += gridMarkerStep {
			c.text(x+2, y+2, fmt.Sprintf("(%d,%d)", x, y), colorCyan)
		}
	}
	for x := gridMajor; x < min(width, headerMarkerX); x += gridMajor {
		for y := gridMajor; y < headerMarkerY; y += gridMajor {
			c.text(x+2, y+2, fmt.Sprintf("(%d,%d)", x, y), colorDarkCyan)
		}
	}

	return c.encode()
}
