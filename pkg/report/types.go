// Package report provides the JSON run report with real-time updates.
//
// Layout:
//   - <reportDir>/<runID>/report.json: run index, rewritten atomically after
//     every test transition
//   - <artifactsRoot>/<testID>/: per-test tap and grid overlays, by default
//     next to report.json
//
// Consumers poll report.json and watch UpdateSeq to detect changes.
package report

import "time"

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusSkipped
}

// Index is the report.json document.
type Index struct {
	Version     string      `json:"version"`
	RunID       string      `json:"runId"`
	UpdateSeq   uint64      `json:"updateSeq"`
	Status      Status      `json:"status"`
	StartTime   time.Time   `json:"startTime"`
	EndTime     *time.Time  `json:"endTime,omitempty"`
	LastUpdated time.Time   `json:"lastUpdated"`
	Suite       string      `json:"suite"`
	Device      Device      `json:"device"`
	App         App         `json:"app"`
	Oracle      OracleInfo  `json:"oracle"`
	Runner      RunnerInfo  `json:"runner"`
	Summary     Summary     `json:"summary"`
	Tests       []TestEntry `json:"tests"`
}

// Device contains device information.
type Device struct {
	ID     string `json:"id,omitempty"`
	Model  string `json:"model,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// App contains application information.
type App struct {
	Package string `json:"package"`
}

// OracleInfo names the vision model behind the run.
type OracleInfo struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

// RunnerInfo contains qa-pilot information.
type RunnerInfo struct {
	Version string `json:"version"`
}

// Summary contains aggregated counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Running int `json:"running"`
	Pending int `json:"pending"`
}

// TestEntry is one test of the run.
type TestEntry struct {
	Index        int        `json:"index"`
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Objective    string     `json:"objective"`
	Expect       string     `json:"expect"`
	ArtifactsDir string     `json:"artifactsDir"`
	Status       Status     `json:"status"`
	Outcome      string     `json:"outcome,omitempty"` // agent outcome: passed, failed, exhausted, errored
	Steps        int        `json:"steps"`
	History      []string   `json:"history,omitempty"`
	Taps         []Tap      `json:"taps,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	Error        *string    `json:"error,omitempty"`
	UpdateSeq    uint64     `json:"updateSeq"`
	StartTime    *time.Time `json:"startTime,omitempty"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	Duration     *int64     `json:"duration,omitempty"` // milliseconds
}

// Tap is one executed tap.
type Tap struct {
	Step    int     `json:"step"`
	X       int     `json:"x"`
	Y       int     `json:"y"`
	Desc    string  `json:"desc"`
	Label   string  `json:"label,omitempty"`
	Target  *Bounds `json:"target,omitempty"`
	Overlay string  `json:"overlay,omitempty"`
}

// Bounds represents element bounds.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TestUpdate contains the fields to update for a test.
type TestUpdate struct {
	Status    Status
	StartTime *time.Time
	EndTime   *time.Time
	Duration  *int64
	Outcome   string
	Steps     int
	History   []string
	Taps      []Tap
	Reason    string
	Error     *string
}
