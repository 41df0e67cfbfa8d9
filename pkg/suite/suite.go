// Package suite handles parsing and representation of test suites: named
// objectives with an expectation on how each run should end.
package suite

import (
	"fmt"
	"slices"
)

// DefaultExpect is the expectation used when a test names none.
const DefaultExpect = `outcome === "passed"`

// Suite is an ordered list of tests sharing one environment.
type Suite struct {
	SourcePath string            `yaml:"-"`
	Name       string            `yaml:"name"`
	Env        map[string]string `yaml:"env"`
	Tests      []Test            `yaml:"tests"`
}

// Test is one objective handed to the agent.
type Test struct {
	Name      string   `yaml:"name"`
	Objective string   `yaml:"objective"`
	Expect    string   `yaml:"expect"` // JS expression over outcome, steps, reason
	Tags      []string `yaml:"tags"`
	Line      int      `yaml:"-"`
}

// Expectation returns the test's expect expression or DefaultExpect.
func (t Test) Expectation() string {
	if t.Expect == "" {
		return DefaultExpect
	}
	return t.Expect
}

// Default returns the built-in Obsidian suite.
func Default() *Suite {
	return &Suite{
		Name: "obsidian",
		Env:  map[string]string{"VAULT_NAME": "internVault"},
		Tests: []Test{
			{
				Name:      "Create vault",
				Objective: "Open Obsidian, create a new vault named '${VAULT_NAME}', and enter the editor.",
			},
			{
				Name:      "Create note",
				Objective: "Create a new note titled 'Meeting Notes' and type the text 'Daily Standup' into the body.",
			},
			{
				Name: "Appearance icon colour",
				Objective: "Go to Settings and tap on 'Appearance'. Look at the current screen and check if there is any RED colored icon visible. " +
					"If you see 'Appearance' settings content (like 'Base color scheme', 'Accent color', 'Font'), verify: is there a red icon anywhere? " +
					"If no red icon is visible, report FAIL: No red icon found.",
				Expect: `outcome === "failed"`,
			},
			{
				Name: "Print to PDF",
				Objective: "Find and click the 'Print to PDF' button in the main file menu. Search thoroughly in all menus and options. " +
					"If after checking all available menus you cannot find this button, report FAIL: Element not found.",
				Expect: `outcome === "failed"`,
			},
		},
	}
}

// FromObjective wraps a single ad-hoc objective in a suite.
func FromObjective(objective, expect string) *Suite {
	return &Suite{
		Name:  "adhoc",
		Tests: []Test{{Name: "Objective", Objective: objective, Expect: expect}},
	}
}

// From returns the tests starting at the 1-based position n.
func (s *Suite) From(n int) ([]Test, error) {
	if n < 1 || n > len(s.Tests) {
		return nil, fmt.Errorf("test %d out of range (suite has %d tests)", n, len(s.Tests))
	}
	return s.Tests[n-1:], nil
}

// Filter keeps tests matching the tag filters.
func (s *Suite) Filter(includeTags, excludeTags []string) []Test {
	var out []Test
	for _, t := range s.Tests {
		if ShouldIncludeTest(t, includeTags, excludeTags) {
			out = append(out, t)
		}
	}
	return out
}

// ShouldIncludeTest checks if a test matches tag filters.
func ShouldIncludeTest(t Test, includeTags, excludeTags []string) bool {
	if len(includeTags) > 0 {
		hasTag := false
		for _, tag := range t.Tags {
			if slices.Contains(includeTags, tag) {
				hasTag = true
				break
			}
		}
		if !hasTag {
			return false
		}
	}

	for _, tag := range t.Tags {
		if slices.Contains(excludeTags, tag) {
			return false
		}
	}
	return true
}
