// Package vision renders debug overlays on device screenshots: a
// coordinate grid that helps the vision model read positions, and a tap
// marker saved after every tap.
package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	colorRed      = color.RGBA{255, 0, 0, 255}
	colorLightRed = color.RGBA{255, 100, 100, 255}
	colorYellow   = color.RGBA{255, 255, 0, 255}
	colorCyan     = color.RGBA{0, 255, 255, 255}
	colorDarkCyan = color.RGBA{0, 200, 200, 255}
	colorGray     = color.RGBA{128, 128, 128, 255}
	colorLime     = color.RGBA{0, 255, 0, 255}
	labelFontFace = basicfont.Face7x13
	labelAscent   = labelFontFace.Metrics().Ascent.Ceil()
)

// canvas is a mutable RGBA copy of a screenshot.
type canvas struct {
	img *image.RGBA
}

func decode(screenshot []byte) (*canvas, error) {
	src, err := png.Decode(bytes.NewReader(screenshot))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return &canvas{img: dst}, nil
}

func (c *canvas) size() (int, int) {
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

func (c *canvas) encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.img); err != nil {
		return nil, fmt.Errorf("encode overlay: %w", err)
	}
	return buf.Bytes(), nil
}

// fill paints a clipped rectangle.
func (c *canvas) fill(r image.Rectangle, col color.Color) {
	r = r.Intersect(c.img.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(c.img, r, image.NewUniform(col), image.Point{}, draw.Over)
}

func (c *canvas) vline(x, y1, y2, width int, col color.Color) {
	c.fill(image.Rect(x, y1, x+width, y2), col)
}

func (c *canvas) hline(y, x1, x2, width int, col color.Color) {
	c.fill(image.Rect(x1, y, x2, y+width), col)
}

// rect draws an outline whose stroke grows inward from (x1,y1)-(x2,y2).
func (c *canvas) rect(x1, y1, x2, y2, width int, col color.Color) {
	c.hline(y1, x1, x2+1, width, col)
	c.hline(y2-width+1, x1, x2+1, width, col)
	c.vline(x1, y1, y2+1, width, col)
	c.vline(x2-width+1, y1, y2+1, width, col)
}

// circle draws a ring of the given stroke width centred on (cx, cy).
func (c *canvas) circle(cx, cy, radius, width int, col color.Color) {
	outer := radius * radius
	inner := (radius - width) * (radius - width)
	if radius-width < 0 {
		inner = 0
	}
	bounds := c.img.Bounds()
	for y := cy - radius; y <= cy+radius; y++ {
		for x := cx - radius; x <= cx+radius; x++ {
			if !image.Pt(x, y).In(bounds) {
				continue
			}
			d := (x-cx)*(x-cx) + (y-cy)*(y-cy)
			if d <= outer && d >= inner {
				c.img.Set(x, y, col)
			}
		}
	}
}

// text draws s with its top-left corner at (x, y).
func (c *canvas) text(x, y int, s string, col color.Color) {
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: labelFontFace,
		Dot:  fixed.P(x, y+labelAscent),
	}
	d.DrawString(s)
}
