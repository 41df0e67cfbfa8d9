package action

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/devicelab-dev/qa-pilot/pkg/core"
)

var (
	// Backticks are written as \x60 since raw strings cannot hold them.
	fenceRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json|JSON)?\\s*(.*?)\\s*\x60\x60\x60")

	// quotedRegex finds '...' or "..." literals.
	quotedRegex = regexp.MustCompile(`['"]([^'"]+)['"]`)

	// singleQuotedRegex finds '...' literals only.
	singleQuotedRegex = regexp.MustCompile(`'([^']+)'`)
)

// Parse extracts an Intent from a model reply such as
// {"action": "tap", "x": 540, "y": 1200}, optionally wrapped in a markdown
// fence or surrounded by prose. A list yields its first element.
//
// A well-formed reply that is not an action object (empty list, scalar,
// object without "action", unknown action) becomes a one second Wait.
// Unparseable JSON, or an action missing its required fields, returns an
// error wrapping core.ErrModelResponseUnparseable.
func Parse(text string) (Intent, error) {
	raw := extractJSON(text)

	var v any
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return Intent{}, unparseable(text, err)
	}

	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return Wait(1), nil
		}
		v = list[0]
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return Wait(1), nil
	}
	kind, ok := obj["action"].(string)
	if !ok {
		return Wait(1), nil
	}

	switch Kind(strings.ToLower(strings.TrimSpace(kind))) {
	case KindTap:
		x, okX := number(obj, "x")
		y, okY := number(obj, "y")
		if !okX || !okY {
			return Intent{}, unparseable(text, fmt.Errorf("tap without x/y"))
		}
		return Tap(x, y), nil

	case KindType:
		s, ok := obj["text"].(string)
		if !ok {
			return Intent{}, unparseable(text, fmt.Errorf("type without text"))
		}
		return Type(s), nil

	case KindKey:
		code, ok := number(obj, "keycode", "key_code", "code")
		if !ok {
			return Intent{}, unparseable(text, fmt.Errorf("key without keycode"))
		}
		return Key(code), nil

	case KindSwipe:
		x1, ok1 := number(obj, "start_x", "x")
		y1, ok2 := number(obj, "start_y", "y")
		x2, ok3 := number(obj, "end_x", "x2")
		y2, ok4 := number(obj, "end_y", "y2")
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return Intent{}, unparseable(text, fmt.Errorf("swipe without start/end"))
		}
		ms, _ := number(obj, "duration_ms", "duration")
		return Swipe(x1, y1, x2, y2, ms), nil

	case KindWait:
		secs := 1.0
		if n, ok := obj["seconds"].(json.Number); ok {
			if f, err := n.Float64(); err == nil {
				secs = f
			}
		}
		return Wait(math.Max(0, math.Min(secs, MaxWaitSeconds))), nil

	default:
		return Wait(1), nil
	}
}

// QuotedText returns the first '...' or "..." literal in s.
func QuotedText(s string) (string, bool) {
	if m := quotedRegex.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	return "", false
}

// QuotedTexts returns every '...' or "..." literal in s.
func QuotedTexts(s string) []string {
	var out []string
	for _, m := range quotedRegex.FindAllStringSubmatch(s, -1) {
		out = append(out, m[1])
	}
	return out
}

// SingleQuotedText returns the first '...' literal in s.
func SingleQuotedText(s string) (string, bool) {
	if m := singleQuotedRegex.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	return "", false
}

// extractJSON strips markdown fences and surrounding prose.
func extractJSON(text string) string {
	s := strings.TrimSpace(text)
	if m := fenceRegex.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return s
	}

	// Find the structure within conversational text
	if fb, lb := strings.Index(s, "{"), strings.LastIndex(s, "}"); fb != -1 && lb > fb {
		return s[fb : lb+1]
	}
	if fb, lb := strings.Index(s, "["), strings.LastIndex(s, "]"); fb != -1 && lb > fb {
		return s[fb : lb+1]
	}
	return s
}

// number reads the first present key as an int, accepting JSON numbers
// and numeric strings. Fractions are rounded.
func number(obj map[string]any, keys ...string) (int, bool) {
	for _, k := range keys {
		var f float64
		var err error
		switch v := obj[k].(type) {
		case json.Number:
			f, err = v.Float64()
		case string:
			f, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
		default:
			continue
		}
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int(math.Round(f)), true
		}
	}
	return 0, false
}

func unparseable(text string, err error) error {
	return core.ErrModelResponseUnparseable.WithCause(err).WithDetails(map[string]interface{}{
		"response": truncate(text, 200),
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
