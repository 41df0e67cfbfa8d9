// Package action defines the device actions the agent can perform and
// parses them out of untrusted model output.
package action

import (
	"fmt"
	"strconv"
)

// Kind identifies an action.
type Kind string

// Action kinds.
const (
	KindTap   Kind = "tap"
	KindType  Kind = "type"
	KindKey   Kind = "key"
	KindSwipe Kind = "swipe"
	KindWait  Kind = "wait"
)

// DefaultSwipeMs is the swipe duration when none is given.
const DefaultSwipeMs = 300

// MaxWaitSeconds caps model-requested waits.
const MaxWaitSeconds = 10

// Intent is one resolved action. Only the fields of its Kind are set.
type Intent struct {
	Kind       Kind    `json:"action"`
	X          int     `json:"x,omitempty"`
	Y          int     `json:"y,omitempty"`
	Text       string  `json:"text,omitempty"`
	KeyCode    int     `json:"keycode,omitempty"`
	X2         int     `json:"x2,omitempty"`
	Y2         int     `json:"y2,omitempty"`
	DurationMs int     `json:"durationMs,omitempty"`
	Seconds    float64 `json:"seconds,omitempty"`
}

// Tap returns a tap at (x, y).
func Tap(x, y int) Intent {
	return Intent{Kind: KindTap, X: x, Y: y}
}

// Type returns a text entry.
func Type(text string) Intent {
	return Intent{Kind: KindType, Text: text}
}

// Key returns an Android key event.
func Key(code int) Intent {
	return Intent{Kind: KindKey, KeyCode: code}
}

// Swipe returns a swipe from (x1, y1) to (x2, y2).
func Swipe(x1, y1, x2, y2, durationMs int) Intent {
	if durationMs <= 0 {
		durationMs = DefaultSwipeMs
	}
	return Intent{Kind: KindSwipe, X: x1, Y: y1, X2: x2, Y2: y2, DurationMs: durationMs}
}

// Wait returns a pause.
func Wait(seconds float64) Intent {
	return Intent{Kind: KindWait, Seconds: seconds}
}

// InBounds reports whether a tap or swipe stays on a width x height screen.
// Other kinds are always in bounds.
func (i Intent) InBounds(width, height int) bool {
	in := func(x, y int) bool { return x >= 0 && y >= 0 && x < width && y < height }
	switch i.Kind {
	case KindTap:
		return in(i.X, i.Y)
	case KindSwipe:
		return in(i.X, i.Y) && in(i.X2, i.Y2)
	default:
		return true
	}
}

func (i Intent) String() string {
	switch i.Kind {
	case KindTap:
		return fmt.Sprintf("tap (%d, %d)", i.X, i.Y)
	case KindType:
		return "type " + strconv.Quote(i.Text)
	case KindKey:
		return fmt.Sprintf("key %d", i.KeyCode)
	case KindSwipe:
		return fmt.Sprintf("swipe (%d, %d) -> (%d, %d) %dms", i.X, i.Y, i.X2, i.Y2, i.DurationMs)
	case KindWait:
		return fmt.Sprintf("wait %gs", i.Seconds)
	default:
		return string(i.Kind)
	}
}
