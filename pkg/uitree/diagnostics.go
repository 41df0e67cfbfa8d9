package uitree

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/qa-pilot/pkg/core"
)

// TextBound pairs a visible text with its bounds.
type TextBound struct {
	Text   string
	Bounds core.Bounds
}

// VisibleText joins the first limit non-empty texts with "; ".
func (ix *Index) VisibleText(limit int) string {
	var texts []string
	for _, e := range ix.elements {
		if t := strings.TrimSpace(e.Text); t != "" {
			texts = append(texts, t)
			if len(texts) == limit {
				break
			}
		}
	}
	return strings.Join(texts, "; ")
}

// TextBounds lists every distinct text with its bounds. A repeated text
// keeps its first position but takes the bounds of its last occurrence.
func (ix *Index) TextBounds() []TextBound {
	var out []TextBound
	pos := make(map[string]int)
	for _, e := range ix.elements {
		t := strings.TrimSpace(e.Text)
		if t == "" {
			continue
		}
		if i, ok := pos[t]; ok {
			out[i].Bounds = e.Bounds
			continue
		}
		pos[t] = len(out)
		out = append(out, TextBound{Text: t, Bounds: e.Bounds})
	}
	return out
}

// Texts returns the keys of TextBounds.
func (ix *Index) Texts() []string {
	tb := ix.TextBounds()
	out := make([]string, len(tb))
	for i, t := range tb {
		out[i] = t.Text
	}
	return out
}

// ContentDescs lists "desc @ bounds" for every element with a content-desc.
func (ix *Index) ContentDescs() []string {
	var out []string
	for _, e := range ix.elements {
		if d := strings.TrimSpace(e.ContentDesc); d != "" {
			out = append(out, fmt.Sprintf("%s @ %s", d, e.Bounds))
		}
	}
	return out
}

// Clickables returns the clickable elements in document order.
func (ix *Index) Clickables() []*Element {
	var out []*Element
	for _, e := range ix.elements {
		if e.Clickable {
			out = append(out, e)
		}
	}
	return out
}

// String renders an element for logs.
func (e *Element) String() string {
	return fmt.Sprintf("%s: text=%q desc=%q @ %s", e.ClassName, strings.TrimSpace(e.Text), strings.TrimSpace(e.ContentDesc), e.Bounds)
}
