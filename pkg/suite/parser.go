package suite

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFile parses a suite YAML file.
func ParseFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided suite file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses suite YAML content:
//
//	name: smoke
//	env:
//	  VAULT_NAME: demo
//	tests:
//	  - name: Create vault
//	    objective: Create a vault named '${VAULT_NAME}'
//	    expect: outcome === "passed"
func Parse(data []byte, sourcePath string) (*Suite, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, &ParseError{Path: sourcePath, Line: 1, Message: "empty suite file"}
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	s := &Suite{SourcePath: sourcePath}
	if err := root.Decode(s); err != nil {
		return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("invalid suite: %v", err)}
	}
	if len(s.Tests) == 0 {
		return nil, &ParseError{Path: sourcePath, Line: 1, Message: "suite has no tests"}
	}

	lines := testLines(&root)
	seen := make(map[string]int, len(s.Tests))
	for i := range s.Tests {
		t := &s.Tests[i]
		if i < len(lines) {
			t.Line = lines[i]
		}
		t.Objective = strings.TrimSpace(t.Objective)
		t.Expect = strings.TrimSpace(t.Expect)
		if t.Objective == "" {
			return nil, &ParseError{Path: sourcePath, Line: t.Line, Message: fmt.Sprintf("test %d has no objective", i+1)}
		}
		if t.Name == "" {
			t.Name = fmt.Sprintf("Test %d", i+1)
		}
		if prev, dup := seen[t.Name]; dup {
			return nil, &ParseError{Path: sourcePath, Line: t.Line, Message: fmt.Sprintf("duplicate test name %q (first at test %d)", t.Name, prev)}
		}
		seen[t.Name] = i + 1
	}
	return s, nil
}

// testLines returns the source line of each entry under tests.
func testLines(root *yaml.Node) []int {
	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != "tests" {
			continue
		}
		var lines []int
		for _, item := range doc.Content[i+1].Content {
			lines = append(lines, item.Line)
		}
		return lines
	}
	return nil
}
