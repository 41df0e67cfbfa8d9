// Package executor runs test suites against the agent, connecting each
// objective's outcome to its expectation and to the run report.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/devicelab-dev/qa-pilot/pkg/agent"
	"github.com/devicelab-dev/qa-pilot/pkg/logger"
	"github.com/devicelab-dev/qa-pilot/pkg/report"
	"github.com/devicelab-dev/qa-pilot/pkg/suite"
)

// Agent drives the device toward one objective. *agent.Loop satisfies it.
type Agent interface {
	Run(ctx context.Context, objective string) agent.Result
}

// AgentFactory returns the agent for one test, writing overlays to a.
type AgentFactory func(a *agent.Artifacts) Agent

// LoopFactory adapts a Loop so every test gets its own artifact directory.
func LoopFactory(l *agent.Loop) AgentFactory {
	return func(a *agent.Artifacts) Agent { return l.WithArtifacts(a) }
}

// RunnerConfig configures the suite runner.
type RunnerConfig struct {
	ReportDir    string // Parent of per-run report directories
	ArtifactsDir string // Parent of per-run overlay directories; empty: inside the report directory
	RunID        string // Empty: a new uuid
	StopOnFail   bool   // Skip remaining tests after the first failure

	// Reset restores the app before each test; nil skips the reset.
	Reset func(ctx context.Context) error

	// Device/App info for reports
	Device        report.Device
	App           report.App
	Oracle        report.OracleInfo
	RunnerVersion string

	// Live progress callbacks
	OnTestStart func(idx, total int, t suite.Test, objective string)
	OnTestEnd   func(idx int, tr TestResult)
}

// RunResult contains the outcome of a suite run.
type RunResult struct {
	RunID        string
	ReportPath   string
	Status       report.Status
	TotalTests   int
	PassedTests  int
	FailedTests  int
	SkippedTests int
	Duration     int64 // Total duration in milliseconds
	TestResults  []TestResult
}

// TestResult contains the outcome of a single test.
type TestResult struct {
	ID        string
	Name      string
	Objective string // after ${...} expansion
	Expect    string
	Status    report.Status
	Agent     agent.Result
	Duration  int64
	Error     string
}

// Runner orchestrates suite execution.
type Runner struct {
	config   RunnerConfig
	agentFor AgentFactory
}

// New creates a new Runner.
func New(agentFor AgentFactory, cfg RunnerConfig) *Runner {
	return &Runner{config: cfg, agentFor: agentFor}
}

// Run executes tests from s in order and writes the report.
func (r *Runner) Run(ctx context.Context, s *suite.Suite, tests []suite.Test) (*RunResult, error) {
	runID := r.config.RunID
	if runID == "" {
		runID = report.NewRunID()
	}
	outDir := report.RunDir(r.config.ReportDir, runID)
	artifactsRoot := outDir
	if r.config.ArtifactsDir != "" {
		artifactsRoot = report.RunDir(r.config.ArtifactsDir, runID)
	}

	index := report.BuildSkeleton(tests, report.BuilderConfig{
		RunID:         runID,
		ArtifactsRoot: artifactsRoot,
		SuiteName:     s.Name,
		Device:        r.config.Device,
		App:           r.config.App,
		Oracle:        r.config.Oracle,
		RunnerVersion: r.config.RunnerVersion,
	})
	if err := report.WriteSkeleton(outDir, index); err != nil {
		return nil, err
	}

	indexWriter := report.NewIndexWriter(outDir, index)
	defer indexWriter.Close()
	indexWriter.Start()

	script := NewScriptEngine()
	script.ImportSystemEnv()
	script.SetVariables(s.Env)

	results := make([]TestResult, len(tests))
	stop := false
	for i, t := range tests {
		entry := index.Tests[i]
		switch {
		case ctx.Err() != nil:
			results[i] = r.skip(indexWriter, entry, "run cancelled")
			continue
		case stop:
			results[i] = r.skip(indexWriter, entry, "skipped after failure")
			continue
		}

		results[i] = r.executeTest(ctx, script, t, entry, indexWriter, i, len(tests))
		if r.config.OnTestEnd != nil {
			r.config.OnTestEnd(i, results[i])
		}
		if r.config.StopOnFail && results[i].Status == report.StatusFailed {
			stop = true
		}
	}

	indexWriter.End()

	result := r.buildRunResult(results)
	result.RunID = runID
	result.ReportPath = indexWriter.Path()
	return result, nil
}

// executeTest runs one objective and checks its expectation.
func (r *Runner) executeTest(ctx context.Context, script *ScriptEngine, t suite.Test, entry report.TestEntry,
	indexWriter *report.IndexWriter, idx, total int) TestResult {
	objective := script.ExpandVariables(ctx, t.Objective)
	tr := TestResult{ID: entry.ID, Name: t.Name, Objective: objective, Expect: t.Expectation()}

	if r.config.OnTestStart != nil {
		r.config.OnTestStart(idx, total, t, objective)
	}
	logger.Info("=== test %d/%d: %s ===", idx+1, total, t.Name)

	start := time.Now()
	indexWriter.UpdateTest(entry.ID, &report.TestUpdate{Status: report.StatusRunning, StartTime: &start})

	if r.config.Reset != nil {
		if err := r.config.Reset(ctx); err != nil {
			logger.Warn("app reset before %q failed: %v", t.Name, err)
		}
	}

	artifacts := agent.NewArtifacts(entry.ArtifactsDir)
	res := r.agentFor(artifacts).Run(ctx, objective)
	tr.Agent = res

	switch {
	case ctx.Err() != nil:
		tr.Status = report.StatusSkipped
		tr.Error = "run cancelled"
	default:
		ok, err := script.CheckExpectation(ctx, tr.Expect, res)
		switch {
		case err != nil:
			tr.Status = report.StatusFailed
			tr.Error = fmt.Sprintf("invalid expect %q: %v", tr.Expect, err)
		case ok:
			tr.Status = report.StatusPassed
		default:
			tr.Status = report.StatusFailed
			tr.Error = expectationMessage(tr.Expect, res)
		}
	}

	end := time.Now()
	tr.Duration = end.Sub(start).Milliseconds()
	logger.Info("test %q: %s (agent outcome %s in %d steps)", t.Name, tr.Status, res.Outcome, res.Steps)

	indexWriter.UpdateTest(entry.ID, &report.TestUpdate{
		Status:   tr.Status,
		EndTime:  &end,
		Duration: &tr.Duration,
		Outcome:  res.Outcome.String(),
		Steps:    res.Steps,
		History:  res.History,
		Taps:     tapsToReport(res.Taps),
		Reason:   res.Reason,
		Error:    errorString(tr.Error),
	})
	return tr
}

func (r *Runner) skip(indexWriter *report.IndexWriter, entry report.TestEntry, reason string) TestResult {
	indexWriter.UpdateTest(entry.ID, &report.TestUpdate{Status: report.StatusSkipped, Error: errorString(reason)})
	return TestResult{
		ID:     entry.ID,
		Name:   entry.Name,
		Expect: entry.Expect,
		Status: report.StatusSkipped,
		Error:  reason,
	}
}

// expectationMessage explains an unmet expectation.
func expectationMessage(expect string, res agent.Result) string {
	msg := fmt.Sprintf("expected %s, got outcome %q after %d steps", expect, res.Outcome, res.Steps)
	if res.Reason != "" {
		msg += ": " + res.Reason
	}
	return msg
}

// buildRunResult aggregates test results into a run result.
func (r *Runner) buildRunResult(testResults []TestResult) *RunResult {
	result := &RunResult{
		TotalTests:  len(testResults),
		TestResults: testResults,
	}

	for _, tr := range testResults {
		result.Duration += tr.Duration
		switch tr.Status {
		case report.StatusPassed:
			result.PassedTests++
		case report.StatusFailed:
			result.FailedTests++
		case report.StatusSkipped:
			result.SkippedTests++
		}
	}

	if result.FailedTests > 0 {
		result.Status = report.StatusFailed
	} else {
		result.Status = report.StatusPassed // All passed or skipped
	}
	return result
}
