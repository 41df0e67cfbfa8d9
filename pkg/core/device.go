// Package core provides the shared execution model types for qa-pilot.
package core

import (
	"context"
	"fmt"
)

// Device is the control surface of a connected Android device.
// Implementations: device.AndroidDevice (adb), fakes in tests.
// Every call blocks until the device returns; there is no retry at this level.
type Device interface {
	// Screenshot captures the current screen as PNG
	Screenshot(ctx context.Context) ([]byte, error)

	// Shell runs a shell command on the device and returns its output
	Shell(ctx context.Context, cmd string) (string, error)

	// DumpHierarchy returns the raw uiautomator XML dump (may be empty)
	DumpHierarchy(ctx context.Context) (string, error)

	Tap(ctx context.Context, x, y int) error
	TypeText(ctx context.Context, text string) error
	KeyEvent(ctx context.Context, code int) error
	Swipe(ctx context.Context, x1, y1, x2, y2, durationMs int) error

	// ScreenSize returns the physical screen size in pixels
	ScreenSize(ctx context.Context) (width, height int, err error)
}

// Android key codes used by the agent.
const (
	KeyBack      = 4
	KeyDpadUp    = 19
	KeyDpadDown  = 20
	KeyDpadLeft  = 21
	KeyDpadRight = 22
	KeyEnter     = 66
	KeyDel       = 67
	KeyMoveEnd   = 123
)

// Bounds represents element position and size
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BoundsFromRect builds Bounds from the corner form [x1,y1][x2,y2].
func BoundsFromRect(x1, y1, x2, y2 int) Bounds {
	return Bounds{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Right returns the x2 edge.
func (b Bounds) Right() int { return b.X + b.Width }

// Bottom returns the y2 edge.
func (b Bounds) Bottom() int { return b.Y + b.Height }

// Center returns the center point of the bounds
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// IsZero reports whether the bounds are unset.
func (b Bounds) IsZero() bool {
	return b == Bounds{}
}

// String renders the bounds in uiautomator form.
func (b Bounds) String() string {
	return fmt.Sprintf("[%d,%d][%d,%d]", b.X, b.Y, b.Right(), b.Bottom())
}
