package validator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSuite(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidate_SingleFile(t *testing.T) {
	file := writeSuite(t, t.TempDir(), "smoke.yaml", `
name: smoke
env:
  VAULT_NAME: demo
tests:
  - name: Create vault
    objective: Create a vault named '${VAULT_NAME}'
  - name: Missing PDF
    objective: Find 'Print to PDF'
    expect: outcome === "failed" && steps > 3
`)

	result := New(nil, nil, nil).Validate(file)

	if !result.IsValid() {
		t.Errorf("expected valid result, got errors: %v", result.Errors)
	}
	if result.Tests != 2 {
		t.Errorf("expected 2 tests, got %d", result.Tests)
	}
	if len(result.Files) != 1 {
		t.Errorf("expected 1 file, got %d", len(result.Files))
	}
}

func TestValidate_Directory(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "b.yaml", "tests:\n  - objective: Open settings\n")
	writeSuite(t, dir, "a.yml", "tests:\n  - objective: Open the file menu\n")
	writeSuite(t, dir, "notes.txt", "not a suite")

	result := New(nil, nil, nil).Validate(dir)

	if !result.IsValid() {
		t.Errorf("expected valid result, got errors: %v", result.Errors)
	}
	if len(result.Files) != 2 {
		t.Fatalf("expected 2 files, got %v", result.Files)
	}
	if filepath.Base(result.Files[0]) != "a.yml" {
		t.Errorf("expected files in sorted order, got %v", result.Files)
	}
}

func TestValidate_EmptyDirectory(t *testing.T) {
	result := New(nil, nil, nil).Validate(t.TempDir())
	if result.IsValid() {
		t.Error("expected error for a directory without suites")
	}
}

func TestValidate_MissingPath(t *testing.T) {
	result := New(nil, nil, nil).Validate(filepath.Join(t.TempDir(), "nope.yaml"))
	if result.IsValid() {
		t.Fatal("expected error for missing path")
	}
	if !strings.Contains(result.Errors[0].Error(), "cannot access") {
		t.Errorf("unexpected error: %v", result.Errors[0])
	}
}

func TestValidate_ParseError(t *testing.T) {
	file := writeSuite(t, t.TempDir(), "bad.yaml", "tests:\n  - name: no objective\n")

	result := New(nil, nil, nil).Validate(file)

	if result.IsValid() {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(result.Errors[0].Error(), "parse error") {
		t.Errorf("unexpected error: %v", result.Errors[0])
	}
	if len(result.Files) != 0 {
		t.Errorf("unparseable file should not be listed, got %v", result.Files)
	}
}

func TestValidate_BadExpectation(t *testing.T) {
	file := writeSuite(t, t.TempDir(), "s.yaml", `
tests:
  - name: Broken
    objective: Open settings
    expect: outcome ===
`)

	result := New(nil, nil, nil).Validate(file)

	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", result.Errors)
	}
	msg := result.Errors[0].Error()
	if !strings.Contains(msg, "Broken") || !strings.Contains(msg, "expect does not compile") {
		t.Errorf("unexpected error: %s", msg)
	}
	if !strings.Contains(msg, "s.yaml:3") {
		t.Errorf("expected line number in error, got %s", msg)
	}
}

func TestValidate_WrappedExpectation(t *testing.T) {
	file := writeSuite(t, t.TempDir(), "s.yaml", "tests:\n  - objective: x\n    expect: ${outcome !== \"errored\"}\n")

	result := New(nil, nil, nil).Validate(file)

	if !result.IsValid() {
		t.Errorf("expected ${...} expectation to compile, got %v", result.Errors)
	}
}

func TestValidate_UndefinedVariable(t *testing.T) {
	file := writeSuite(t, t.TempDir(), "s.yaml", "tests:\n  - objective: Create a vault named '${QA_PILOT_TEST_UNSET_VAR}'\n")

	result := New(nil, nil, nil).Validate(file)

	if result.IsValid() {
		t.Fatal("expected undefined variable error")
	}
	if !strings.Contains(result.Errors[0].Error(), "undefined variable ${QA_PILOT_TEST_UNSET_VAR}") {
		t.Errorf("unexpected error: %v", result.Errors[0])
	}
}

func TestValidate_VariableSources(t *testing.T) {
	file := writeSuite(t, t.TempDir(), "s.yaml", "tests:\n  - objective: '${FROM_FLAG} ${FROM_PROCESS}'\n")

	if New(nil, nil, nil).Validate(file).IsValid() {
		t.Fatal("expected errors without any variable source")
	}

	t.Setenv("FROM_PROCESS", "1")
	result := New(nil, nil, map[string]string{"FROM_FLAG": "1"}).Validate(file)
	if !result.IsValid() {
		t.Errorf("expected config and process variables to resolve, got %v", result.Errors)
	}
}

func TestValidate_ExpressionSyntax(t *testing.T) {
	file := writeSuite(t, t.TempDir(), "s.yaml", "tests:\n  - objective: 'Type ${1 +}'\n")

	result := New(nil, nil, nil).Validate(file)

	if result.IsValid() {
		t.Fatal("expected compile error for objective expression")
	}
	if !strings.Contains(result.Errors[0].Error(), "objective expression") {
		t.Errorf("unexpected error: %v", result.Errors[0])
	}
}

func TestValidate_TagFilters(t *testing.T) {
	dir := t.TempDir()
	writeSuite(t, dir, "smoke.yaml", `
tests:
  - objective: a
    tags: [smoke]
  - objective: b
    tags: [slow]
`)
	writeSuite(t, dir, "slow.yaml", `
tests:
  - objective: c
    tags: [slow]
`)

	result := New([]string{"smoke"}, nil, nil).Validate(dir)
	if result.Tests != 1 || len(result.Files) != 1 {
		t.Errorf("include smoke: expected 1 test in 1 file, got %d in %v", result.Tests, result.Files)
	}

	result = New(nil, []string{"slow"}, nil).Validate(dir)
	if result.Tests != 1 || len(result.Files) != 1 {
		t.Errorf("exclude slow: expected 1 test in 1 file, got %d in %v", result.Tests, result.Files)
	}
}

func TestValidate_FilteredTestsAreNotChecked(t *testing.T) {
	file := writeSuite(t, t.TempDir(), "s.yaml", `
tests:
  - objective: ok
    tags: [smoke]
  - objective: '${QA_PILOT_TEST_UNSET_VAR}'
    tags: [wip]
`)

	result := New(nil, []string{"wip"}, nil).Validate(file)
	if !result.IsValid() {
		t.Errorf("excluded tests should not be validated, got %v", result.Errors)
	}
}
