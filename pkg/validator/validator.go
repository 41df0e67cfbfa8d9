// Package validator checks suite files before a run. It parses every file
// upfront, compiles each expectation and resolves the ${...} references in
// objectives, so mistakes surface before a device is touched.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/devicelab-dev/qa-pilot/pkg/jsengine"
	"github.com/devicelab-dev/qa-pilot/pkg/suite"
)

// bareName matches a ${...} body that is a single identifier and so needs
// a variable to be defined.
var bareName = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*$`)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Line    int
	Test    string
	Message string
}

func (e *ValidationError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.File, e.Line)
	}
	if e.Test != "" {
		return fmt.Sprintf("%s: %s: %s", loc, e.Test, e.Message)
	}
	return fmt.Sprintf("%s: %s", loc, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Files is the list of suite files that contributed tests, in walk order.
	Files []string
	// Tests counts the tests selected by the tag filters.
	Tests int
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates suite files.
type Validator struct {
	includeTags []string
	excludeTags []string
	env         map[string]string
}

// New creates a new Validator. env holds variables defined outside the
// suite files (config and command line); the process environment is
// always consulted as well.
func New(includeTags, excludeTags []string, env map[string]string) *Validator {
	return &Validator{
		includeTags: includeTags,
		excludeTags: excludeTags,
		env:         env,
	}
}

// Validate validates a suite file or every suite under a directory.
func (v *Validator) Validate(path string) *Result {
	result := &Result{}

	info, err := os.Stat(path)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    path,
			Message: fmt.Sprintf("cannot access: %v", err),
		})
		return result
	}

	files := []string{path}
	if info.IsDir() {
		files, err = collectSuiteFiles(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("failed to scan directory: %v", err),
			})
			return result
		}
		if len(files) == 0 {
			result.Errors = append(result.Errors, &ValidationError{File: path, Message: "no suite files found"})
			return result
		}
	}

	for _, file := range files {
		v.validateFile(file, result)
	}
	return result
}

// collectSuiteFiles finds all .yaml/.yml files in a directory.
func collectSuiteFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

func (v *Validator) validateFile(path string, result *Result) {
	s, err := suite.ParseFile(path)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    path,
			Message: fmt.Sprintf("parse error: %v", err),
		})
		return
	}

	tests := s.Filter(v.includeTags, v.excludeTags)
	if len(tests) == 0 {
		return
	}
	result.Files = append(result.Files, path)
	result.Tests += len(tests)

	for _, t := range tests {
		for _, msg := range v.checkTest(s, t) {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Line:    t.Line,
				Test:    t.Name,
				Message: msg,
			})
		}
	}
}

// checkTest returns every problem found in one test.
func (v *Validator) checkTest(s *suite.Suite, t suite.Test) []string {
	var problems []string

	if err := jsengine.Compile("expect", jsengine.Unwrap(t.Expectation())); err != nil {
		problems = append(problems, fmt.Sprintf("expect does not compile: %v", err))
	}

	for _, ex := range jsengine.Expressions(t.Objective) {
		if m := bareName.FindStringSubmatch(ex.Source); m != nil {
			if !v.defined(s, m[1]) {
				problems = append(problems, fmt.Sprintf("objective references undefined variable ${%s}", m[1]))
			}
			continue
		}
		if err := jsengine.Compile("objective", ex.Source); err != nil {
			problems = append(problems, fmt.Sprintf("objective expression ${%s} does not compile: %v", ex.Source, err))
		}
	}
	return problems
}

func (v *Validator) defined(s *suite.Suite, name string) bool {
	if _, ok := s.Env[name]; ok {
		return true
	}
	if _, ok := v.env[name]; ok {
		return true
	}
	_, ok := os.LookupEnv(name)
	return ok
}
