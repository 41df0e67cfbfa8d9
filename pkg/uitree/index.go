package uitree

import (
	"math"
	"strings"

	"github.com/devicelab-dev/qa-pilot/pkg/core"
)

// Index answers lookup queries over one parsed hierarchy snapshot.
// All queries scan in document order and return the first match.
type Index struct {
	elements []*Element
}

// NewIndex wraps parsed elements.
func NewIndex(elements []*Element) *Index {
	return &Index{elements: elements}
}

// FromXML parses raw and wraps the result.
func FromXML(raw string) *Index {
	return NewIndex(Parse(raw))
}

// Elements returns the underlying elements in document order.
func (ix *Index) Elements() []*Element {
	return ix.elements
}

// Empty reports whether the snapshot has no usable elements.
func (ix *Index) Empty() bool {
	return len(ix.elements) == 0
}

// Region is the rectangle searched by FindBottomLeftRegion.
type Region struct {
	MaxX int
	MinY int
	MaxY int
}

// DefaultRegion is the sidebar footer of a 1080x2400 screen, above the
// system navigation bar.
var DefaultRegion = Region{MaxX: 300, MinY: 1800, MaxY: 2200}

var settingsVocabulary = []string{"settings", "gear", "cog", "preferences", "options", "config", "open settings"}

// FindByText returns the first element whose text or content-desc contains
// needle, case-insensitively.
func (ix *Index) FindByText(needle string) (core.Bounds, bool) {
	n := strings.ToLower(needle)
	for _, e := range ix.elements {
		hay := strings.ToLower(e.Text + " " + e.ContentDesc)
		if strings.Contains(hay, n) {
			return e.Bounds, true
		}
	}
	return core.Bounds{}, false
}

// FindByKeywords tries four passes in order: exact text, exact
// content-desc, text substring, content-desc substring. Within a pass the
// keywords are tried in the given order. Empty keywords are ignored.
func (ix *Index) FindByKeywords(keywords ...string) (core.Bounds, bool) {
	var kws []string
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kws = append(kws, k)
		}
	}
	if len(kws) == 0 {
		return core.Bounds{}, false
	}

	passes := []func(e *Element, kw string) bool{
		func(e *Element, kw string) bool { return normalize(e.Text) == kw },
		func(e *Element, kw string) bool { return normalize(e.ContentDesc) == kw },
		func(e *Element, kw string) bool { return strings.Contains(normalize(e.Text), kw) },
		func(e *Element, kw string) bool { return strings.Contains(strings.ToLower(e.ContentDesc), kw) },
	}
	for _, match := range passes {
		for _, kw := range kws {
			for _, e := range ix.elements {
				if match(e, kw) {
					return e.Bounds, true
				}
			}
		}
	}
	return core.Bounds{}, false
}

// FindButtonByText looks for a button-class or clickable element whose text
// equals label, then one whose text contains it.
func (ix *Index) FindButtonByText(label string) (core.Bounds, bool) {
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "" {
		return core.Bounds{}, false
	}
	for _, e := range ix.elements {
		if e.IsButton() && normalize(e.Text) == l {
			return e.Bounds, true
		}
	}
	for _, e := range ix.elements {
		if e.IsButton() && strings.Contains(normalize(e.Text), l) {
			return e.Bounds, true
		}
	}
	return core.Bounds{}, false
}

// FindInputBelowLabel finds the label by text, then the first input widget
// whose top edge is at or below the label's bottom (10 px tolerance).
func (ix *Index) FindInputBelowLabel(label string) (core.Bounds, bool) {
	l := strings.ToLower(label)
	var labelElem *Element
	for _, e := range ix.elements {
		if strings.Contains(strings.ToLower(e.Text), l) {
			labelElem = e
			break
		}
	}
	if labelElem == nil {
		return core.Bounds{}, false
	}

	for _, e := range ix.elements {
		if e.IsInput() && e.Bounds.Y >= labelElem.Bounds.Bottom()-10 {
			return e.Bounds, true
		}
	}
	return core.Bounds{}, false
}

// FindByPlaceholder matches EditText widgets whose text or content-desc
// contains any of the placeholders.
func (ix *Index) FindByPlaceholder(placeholders ...string) (core.Bounds, bool) {
	for _, e := range ix.elements {
		if !e.IsEditText() {
			continue
		}
		text := strings.ToLower(e.Text)
		desc := strings.ToLower(e.ContentDesc)
		for _, ph := range placeholders {
			p := strings.ToLower(ph)
			if strings.Contains(text, p) || strings.Contains(desc, p) {
				return e.Bounds, true
			}
		}
	}
	return core.Bounds{}, false
}

// FindFirstEditable returns the first EditText on screen.
func (ix *Index) FindFirstEditable() (core.Bounds, bool) {
	for _, e := range ix.elements {
		if e.IsEditText() {
			return e.Bounds, true
		}
	}
	return core.Bounds{}, false
}

// FindToggle returns a switch/toggle/checkbox. With no label it returns the
// first one. With a label it prefers a toggle whose own text matches, then
// any toggle whose top is within 200 px of the label's top.
func (ix *Index) FindToggle(label string) (core.Bounds, bool) {
	l := strings.ToLower(label)
	for _, e := range ix.elements {
		if !e.IsToggle() {
			continue
		}
		if label == "" || strings.Contains(strings.ToLower(e.Text), l) {
			return e.Bounds, true
		}
	}
	if label == "" {
		return core.Bounds{}, false
	}

	lb, ok := ix.FindByText(label)
	if !ok {
		return core.Bounds{}, false
	}
	for _, e := range ix.elements {
		if e.IsToggle() && math.Abs(float64(e.Bounds.Y-lb.Y)) < 200 {
			return e.Bounds, true
		}
	}
	return core.Bounds{}, false
}

// FindSettingsIcon looks for a clickable, button or image element whose
// content-desc mentions settings vocabulary, then for a clickable or
// text-bearing element whose text contains "settings".
func (ix *Index) FindSettingsIcon() (core.Bounds, bool) {
	for _, e := range ix.elements {
		if !(e.Clickable || strings.Contains(e.ClassName, "Button") || e.IsImage()) {
			continue
		}
		desc := strings.ToLower(e.ContentDesc)
		for _, p := range settingsVocabulary {
			if strings.Contains(desc, p) {
				return e.Bounds, true
			}
		}
	}
	for _, e := range ix.elements {
		text := strings.ToLower(e.Text)
		if (e.Clickable || text != "") && strings.Contains(text, "settings") {
			return e.Bounds, true
		}
	}
	return core.Bounds{}, false
}

// FindBottomLeftRegion returns the bottommost clickable or image element
// fully inside r, ignoring navigation arrows. Ties keep document order.
func (ix *Index) FindBottomLeftRegion(r Region) (core.Bounds, bool) {
	var best *Element
	for _, e := range ix.elements {
		if !(e.Clickable || e.IsImage()) {
			continue
		}
		b := e.Bounds
		if b.Right() > r.MaxX || b.Y < r.MinY || b.Bottom() > r.MaxY {
			continue
		}
		switch normalize(e.Text) {
		case "navigate back", "navigate forward":
			continue
		}
		if best == nil || b.Y > best.Bounds.Y {
			best = e
		}
	}
	if best == nil {
		return core.Bounds{}, false
	}
	return best.Bounds, true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
