package agent

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/devicelab-dev/qa-pilot/pkg/action"
	"github.com/devicelab-dev/qa-pilot/pkg/core"
	"github.com/devicelab-dev/qa-pilot/pkg/uitree"
)

// Target labels attached to detected bounds.
const (
	labelSettingsIcon  = "SettingsIcon"
	labelPotentialGear = "PotentialGearIcon"
	labelBodyArea      = "BodyArea"
	labelEditText      = "EditText"
	labelToggle        = "Toggle"
	labelKeywordMatch  = "keyword-match"
	labelBottomLeft    = "BottomLeftIcon"
)

// Header geometry used to spot an unlabeled gear icon.
const (
	headerMaxY     = 300
	gearMinX       = 700
	gearMaxTopY    = 260
	bodyAreaRatio  = 0.4
	bodyAreaRadius = 50
)

var (
	settingsWords   = []string{"settings", "gear", "cog", "preferences"}
	bodyWords       = []string{"body", "content area"}
	inputWords      = []string{"input", "field", "textbox", "text box", "text field", "type in", "enter text", "vault name"}
	permissionWords = []string{"allow", "deny", "permit", "grant", "ok", "cancel", "accept", "decline"}
	permissionTexts = []string{"Allow", "ALLOW", "OK", "Deny", "Cancel", "Accept"}
	toggleWords     = []string{"toggle", "switch", "enable"}
	bottomLeftWords = []string{"bottom left", "bottom-left", "sidebar footer"}

	// Words never worth searching the UI tree for.
	candidateStopWords = []string{"tap", "the", "button", "icon", "click", "press", "labeled"}

	tapPhraseRegex = regexp.MustCompile(`(?i)tap\s+(?:the\s+)?(.+?)(?:\s+button|\s+icon|\s+link|\s+option|\s*$)`)
)

// detection is a target located in the UI tree.
type detection struct {
	Bounds core.Bounds
	Label  string
}

// detectInput is what every detector sees for one planned step.
type detectInput struct {
	step   string
	lower  string
	index  *uitree.Index
	width  int
	height int
	region uitree.Region
}

func (in *detectInput) has(word string) bool {
	return strings.Contains(in.lower, word)
}

func (in *detectInput) hasAny(words []string) bool {
	for _, w := range words {
		if in.has(w) {
			return true
		}
	}
	return false
}

func (in *detectInput) isTap() bool      { return in.has("tap") }
func (in *detectInput) isBody() bool     { return in.hasAny(bodyWords) }
func (in *detectInput) isSettings() bool { return in.hasAny(settingsWords) }

type detector struct {
	name   string
	detect func(in *detectInput) (detection, bool)
}

// detectors run in order; the first that finds bounds wins.
var detectors = []detector{
	{"settings-icon", detectSettingsIcon},
	{"body-area", detectBodyArea},
	{"input-field", detectInputField},
	{"permission-button", detectPermissionButton},
	{"toggle", detectToggle},
	{"bottom-left-icon", detectBottomLeft},
	{"tap-target", detectTapTarget},
	{"type-target", detectTypeTarget},
}

// detectTarget runs the detector cascade for step.
func detectTarget(in *detectInput) (detection, string, bool) {
	for _, d := range detectors {
		if found, ok := d.detect(in); ok {
			return found, d.name, true
		}
	}
	return detection{}, "", false
}

func detectSettingsIcon(in *detectInput) (detection, bool) {
	if !in.isSettings() {
		return detection{}, false
	}
	if in.isTap() {
		if b, ok := in.index.FindSettingsIcon(); ok {
			return detection{b, labelSettingsIcon}, true
		}
	}
	if b, ok := potentialGear(in.index); ok {
		return detection{b, labelPotentialGear}, true
	}
	return detection{}, false
}

// potentialGear returns the last unlabeled clickable on the right side of
// the header row.
func potentialGear(ix *uitree.Index) (core.Bounds, bool) {
	var found *uitree.Element
	for _, e := range ix.Clickables() {
		b := e.Bounds
		if b.Bottom() < headerMaxY && e.Text == "" && b.X > gearMinX && b.Y < gearMaxTopY {
			found = e
		}
	}
	if found == nil {
		return core.Bounds{}, false
	}
	return found.Bounds, true
}

func detectBodyArea(in *detectInput) (detection, bool) {
	if !in.isBody() || !in.isTap() || in.height <= 0 {
		return detection{}, false
	}
	x := in.width / 2
	y := int(float64(in.height) * bodyAreaRatio)
	b := core.BoundsFromRect(x-bodyAreaRadius, y-bodyAreaRadius, x+bodyAreaRadius, y+bodyAreaRadius)
	return detection{b, labelBodyArea}, true
}

func detectInputField(in *detectInput) (detection, bool) {
	if in.isBody() || in.isSettings() || !in.hasAny(inputWords) {
		return detection{}, false
	}
	if b, ok := in.index.FindFirstEditable(); ok {
		return detection{b, labelEditText}, true
	}
	// No EditText: fall back to a labelled or placeholder input.
	quoted := action.QuotedTexts(in.step)
	for _, label := range quoted {
		if b, ok := in.index.FindInputBelowLabel(label); ok {
			return detection{b, "Input:" + label}, true
		}
	}
	if len(quoted) > 0 {
		if b, ok := in.index.FindByPlaceholder(quoted...); ok {
			return detection{b, "Placeholder"}, true
		}
	}
	return detection{}, false
}

func detectPermissionButton(in *detectInput) (detection, bool) {
	if !in.hasAny(permissionWords) {
		return detection{}, false
	}
	for _, text := range permissionTexts {
		if !in.has(strings.ToLower(text)) {
			continue
		}
		if b, ok := in.index.FindButtonByText(text); ok {
			return detection{b, "Button:" + text}, true
		}
	}
	return detection{}, false
}

func detectToggle(in *detectInput) (detection, bool) {
	if !in.hasAny(toggleWords) {
		return detection{}, false
	}
	if label, ok := action.QuotedText(in.step); ok {
		if b, ok := in.index.FindToggle(label); ok {
			return detection{b, labelToggle}, true
		}
	}
	if b, ok := in.index.FindToggle(""); ok {
		return detection{b, labelToggle}, true
	}
	return detection{}, false
}

func detectBottomLeft(in *detectInput) (detection, bool) {
	if !in.isTap() || !in.hasAny(bottomLeftWords) {
		return detection{}, false
	}
	if b, ok := in.index.FindBottomLeftRegion(in.region); ok {
		return detection{b, labelBottomLeft}, true
	}
	return detection{}, false
}

// detectTapTarget tries clickable buttons first, then any element text,
// then keyword passes over all candidates.
func detectTapTarget(in *detectInput) (detection, bool) {
	if !in.isTap() {
		return detection{}, false
	}
	candidates := extractTargetText(in.step)
	for _, c := range candidates {
		if b, ok := in.index.FindButtonByText(c); ok {
			return detection{b, "Button:" + c}, true
		}
	}
	for _, c := range candidates {
		if b, ok := in.index.FindByText(c); ok {
			return detection{b, c}, true
		}
	}
	if b, ok := in.index.FindByKeywords(candidates...); ok {
		return detection{b, labelKeywordMatch}, true
	}
	return detection{}, false
}

func detectTypeTarget(in *detectInput) (detection, bool) {
	if !in.has("type") || in.isBody() {
		return detection{}, false
	}
	if b, ok := in.index.FindFirstEditable(); ok {
		return detection{b, labelEditText}, true
	}
	return detection{}, false
}

// extractTargetText lists the texts a step may refer to: quoted literals,
// the phrase after "tap (the)", then any remaining word over three letters.
func extractTargetText(step string) []string {
	candidates := action.QuotedTexts(step)

	if m := tapPhraseRegex.FindStringSubmatch(step); m != nil {
		text := strings.Trim(strings.TrimSpace(m[1]), `'"`)
		if text != "" && !slices.Contains(candidates, text) {
			candidates = append(candidates, text)
		}
	}

	for _, word := range strings.Fields(step) {
		clean := strings.Trim(word, `'".,!?`)
		if utf8.RuneCountInString(clean) <= 3 || slices.Contains(candidateStopWords, strings.ToLower(clean)) {
			continue
		}
		if !slices.Contains(candidates, clean) {
			candidates = append(candidates, clean)
		}
	}
	return candidates
}
