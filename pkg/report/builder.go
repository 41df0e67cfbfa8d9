package report

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/devicelab-dev/qa-pilot/pkg/suite"
)

// BuilderConfig contains configuration for building the report skeleton.
type BuilderConfig struct {
	RunID         string
	ArtifactsRoot string // per-test artifact directories are created below it
	SuiteName     string
	Device        Device
	App           App
	Oracle        OracleInfo
	RunnerVersion string
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// RunDir is the directory holding one run's report and artifacts.
func RunDir(reportDir, runID string) string {
	return filepath.Join(reportDir, runID)
}

// TestID is the stable identifier of the test at position idx.
func TestID(idx int) string {
	return fmt.Sprintf("test-%03d", idx)
}

// BuildSkeleton creates the index with every test pending.
func BuildSkeleton(tests []suite.Test, cfg BuilderConfig) *Index {
	index := &Index{
		Version: Version,
		RunID:   cfg.RunID,
		Status:  StatusPending,
		Suite:   cfg.SuiteName,
		Device:  cfg.Device,
		App:     cfg.App,
		Oracle:  cfg.Oracle,
		Runner:  RunnerInfo{Version: cfg.RunnerVersion},
		Tests:   make([]TestEntry, len(tests)),
	}

	for i, t := range tests {
		id := TestID(i)
		index.Tests[i] = TestEntry{
			Index:        i,
			ID:           id,
			Name:         t.Name,
			Objective:    t.Objective,
			Expect:       t.Expectation(),
			ArtifactsDir: filepath.Join(cfg.ArtifactsRoot, id),
			Status:       StatusPending,
		}
	}
	index.Summary = Summary{Total: len(tests), Pending: len(tests)}
	return index
}

// WriteSkeleton writes the initial report.json and artifact directories.
func WriteSkeleton(outputDir string, index *Index) error {
	for _, t := range index.Tests {
		if err := ensureDir(t.ArtifactsDir); err != nil {
			return fmt.Errorf("create artifacts dir for %s: %w", t.ID, err)
		}
	}
	if err := atomicWriteJSON(filepath.Join(outputDir, "report.json"), index); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}
