// Package uitree parses uiautomator hierarchy dumps and answers the
// lookup queries the agent uses to ground a step in real coordinates.
package uitree

import (
	"encoding/xml"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/devicelab-dev/qa-pilot/pkg/core"
)

// Element is one node of a hierarchy dump.
type Element struct {
	Text        string
	ContentDesc string // accessibility label
	HintText    string
	ClassName   string
	ResourceID  string
	Bounds      core.Bounds
	Clickable   bool
	Checkable   bool
	Enabled     bool
	Focused     bool
	Depth       int // depth below <hierarchy>
}

// IsButton reports whether the element is a button-class widget or clickable.
func (e *Element) IsButton() bool {
	return strings.Contains(e.ClassName, "Button") || e.Clickable
}

// IsEditText reports whether the element is an EditText widget.
func (e *Element) IsEditText() bool {
	return strings.Contains(e.ClassName, "EditText")
}

// IsInput reports whether the element accepts text input.
func (e *Element) IsInput() bool {
	return e.IsEditText() || strings.Contains(e.ClassName, "TextInput") || strings.HasSuffix(e.ResourceID, "input")
}

// IsToggle reports whether the element is a switch, toggle or checkbox.
func (e *Element) IsToggle() bool {
	return e.Checkable ||
		strings.Contains(e.ClassName, "Switch") ||
		strings.Contains(e.ClassName, "Toggle") ||
		strings.Contains(e.ClassName, "Check")
}

// IsImage reports whether the element is an image widget.
func (e *Element) IsImage() bool {
	return strings.Contains(e.ClassName, "Image")
}

// Label returns the text, or the content-desc when the text is empty.
func (e *Element) Label() string {
	if t := strings.TrimSpace(e.Text); t != "" {
		return t
	}
	return strings.TrimSpace(e.ContentDesc)
}

// Parse parses a hierarchy dump into a flat list in document order.
// Supports both formats:
// - uiautomator dump: <node class="..."> elements
// - class-named tags (e.g., <android.widget.FrameLayout>)
//
// Any root element is accepted: a <hierarchy> wrapper is skipped, any other
// root is parsed as a node itself. Parse never fails: malformed or non-XML
// input yields an empty list. Nodes with missing or malformed bounds are
// skipped but their children are kept.
func Parse(raw string) []*Element {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	decoder := xml.NewDecoder(strings.NewReader(raw))
	var elements []*Element
	depth := 0

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "hierarchy" {
				continue
			}
			depth++
			if elem, ok := parseElement(t, depth-1); ok {
				elements = append(elements, elem)
			}

		case xml.EndElement:
			if t.Name.Local != "hierarchy" {
				depth--
			}
		}
	}

	return elements
}

func parseElement(t xml.StartElement, depth int) (*Element, bool) {
	// Class name is the element tag unless a class attribute overrides it
	elem := &Element{ClassName: t.Name.Local, Enabled: true, Depth: depth}
	if elem.ClassName == "node" {
		elem.ClassName = ""
	}
	hasBounds := false

	for _, attr := range t.Attr {
		switch attr.Name.Local {
		case "text":
			elem.Text = attr.Value
		case "resource-id":
			elem.ResourceID = attr.Value
		case "content-desc":
			elem.ContentDesc = attr.Value
		case "hint":
			elem.HintText = attr.Value
		case "class":
			elem.ClassName = attr.Value
		case "bounds":
			b, ok := ParseBounds(attr.Value)
			if !ok {
				return nil, false
			}
			elem.Bounds = b
			hasBounds = true
		case "clickable":
			elem.Clickable = attr.Value == "true"
		case "checkable":
			elem.Checkable = attr.Value == "true"
		case "enabled":
			elem.Enabled = attr.Value != "false"
		case "focused":
			elem.Focused = attr.Value == "true"
		}
	}
	return elem, hasBounds
}

var boundsRe = regexp.MustCompile(`^\[(\d+),(\d+)\]\[(\d+),(\d+)\]`)

// ParseBounds parses the uiautomator bounds form "[x1,y1][x2,y2]".
// Inverted rectangles are rejected.
func ParseBounds(s string) (core.Bounds, bool) {
	m := boundsRe.FindStringSubmatch(s)
	if m == nil {
		return core.Bounds{}, false
	}
	var v [4]int
	for i := range v {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return core.Bounds{}, false
		}
		v[i] = n
	}
	if v[2] < v[0] || v[3] < v[1] {
		return core.Bounds{}, false
	}
	return core.BoundsFromRect(v[0], v[1], v[2], v[3]), true
}
