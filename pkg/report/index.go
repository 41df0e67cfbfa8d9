package report

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/devicelab-dev/qa-pilot/pkg/logger"
)

// IndexWriter provides thread-safe updates to the report index.
type IndexWriter struct {
	mu    sync.Mutex
	path  string
	index *Index

	// Updates apply to the index at once; only the file write is debounced.
	timer  *time.Timer
	closed bool
}

// NewIndexWriter creates a new IndexWriter.
func NewIndexWriter(outputDir string, index *Index) *IndexWriter {
	return &IndexWriter{
		path:  filepath.Join(outputDir, "report.json"),
		index: index,
	}
}

// Path returns the report.json location.
func (w *IndexWriter) Path() string {
	return w.path
}

// Start marks the run as started.
func (w *IndexWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.Status = StatusRunning
	w.index.StartTime = now
	w.flushLocked()
}

// UpdateTest updates a test entry in the index.
// Terminal states flush immediately; progress updates are debounced.
func (w *IndexWriter) UpdateTest(testID string, update *TestUpdate) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.applyUpdate(testID, update)

	if update.Status.IsTerminal() {
		w.flushLocked()
		return
	}

	if w.timer == nil && !w.closed {
		w.timer = time.AfterFunc(100*time.Millisecond, w.flush)
	}
}

// End marks the run as complete.
func (w *IndexWriter) End() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.EndTime = &now
	w.index.Status = w.computeRunStatus()
	w.flushLocked()
}

// Close writes the index and stops the debounce timer.
func (w *IndexWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.flushLocked()
}

// GetIndex returns the current index (for reading).
func (w *IndexWriter) GetIndex() *Index {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.index
}

func (w *IndexWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushLocked()
}

// flushLocked flushes while holding the lock.
func (w *IndexWriter) flushLocked() {
	w.index.UpdateSeq++
	w.index.LastUpdated = time.Now()
	w.index.Summary = w.computeSummary()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}

	if err := atomicWriteJSON(w.path, w.index); err != nil {
		logger.Warn("failed to write report %s: %v", w.path, err)
	}
}

// applyUpdate applies a TestUpdate to the index.
func (w *IndexWriter) applyUpdate(testID string, update *TestUpdate) {
	for i := range w.index.Tests {
		if w.index.Tests[i].ID != testID {
			continue
		}
		t := &w.index.Tests[i]
		t.Status = update.Status
		if update.StartTime != nil {
			t.StartTime = update.StartTime
		}
		if update.EndTime != nil {
			t.EndTime = update.EndTime
		}
		if update.Duration != nil {
			t.Duration = update.Duration
		}
		if update.Outcome != "" {
			t.Outcome = update.Outcome
		}
		t.Steps = update.Steps
		if update.History != nil {
			t.History = update.History
		}
		if update.Taps != nil {
			t.Taps = update.Taps
		}
		if update.Reason != "" {
			t.Reason = update.Reason
		}
		if update.Error != nil {
			t.Error = update.Error
		}
		t.UpdateSeq++
		return
	}
}

// computeSummary calculates summary from test statuses.
func (w *IndexWriter) computeSummary() Summary {
	var s Summary
	for _, t := range w.index.Tests {
		s.Total++
		switch t.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}

// computeRunStatus determines overall run status from tests.
func (w *IndexWriter) computeRunStatus() Status {
	hasFailure := false
	allComplete := true

	for _, t := range w.index.Tests {
		if t.Status == StatusFailed {
			hasFailure = true
		}
		if !t.Status.IsTerminal() {
			allComplete = false
		}
	}

	if !allComplete {
		return StatusRunning
	}
	if hasFailure {
		return StatusFailed
	}
	return StatusPassed
}
