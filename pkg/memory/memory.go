// Package memory is the agent's persistent knowledge: where icons were
// found, which actions worked or failed, and per-run session values.
//
// Memory is single-writer and not safe for concurrent use. Every mutation
// of learned data is written to disk straight away; write failures are
// logged and otherwise ignored.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/qa-pilot/pkg/logger"
)

// Log bounds.
const (
	MaxSuccessEntries = 100
	MaxFailureEntries = 50
)

const timeLayout = "2006-01-02 15:04:05"

// Keys evicted when a gear or settings action fails.
var settingsKeys = []string{"gear", "settings"}

// Memory is a JSON-backed store.
type Memory struct {
	path string // empty: in-memory only
	rec  Record
	now  func() time.Time
}

// Open loads memory from path. A missing file starts empty; an unreadable
// or corrupt file is logged and ignored. An empty path keeps memory in
// process only.
func Open(path string) *Memory {
	m := &Memory{path: path, rec: newRecord(), now: time.Now}
	if path == "" {
		return m
	}

	data, err := os.ReadFile(path) //#nosec G304 -- configured memory file
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("could not load memory %s: %v", path, err)
		}
		return m
	}

	rec := newRecord()
	if err := json.Unmarshal(data, &rec); err != nil {
		logger.Warn("could not load memory %s: %v", path, err)
		return m
	}
	m.rec = normalize(rec)
	logger.Info("loaded agent memory from %s (%d locations)", path, m.rec.ElementLocations.Len())
	return m
}

// normalize replaces nulls from a hand-edited file.
func normalize(r Record) Record {
	if r.ElementLocations.byKey == nil {
		r.ElementLocations.byKey = map[string]Location{}
	}
	if r.SuccessfulActions == nil {
		r.SuccessfulActions = []ActionEntry{}
	}
	if r.FailedActions == nil {
		r.FailedActions = []ActionEntry{}
	}
	if r.AppKnowledge == nil {
		r.AppKnowledge = map[string]any{}
	}
	if r.SessionContext == nil {
		r.SessionContext = map[string]any{}
	}
	return r
}

// Path returns the backing file, or "" for an in-memory store.
func (m *Memory) Path() string {
	return m.path
}

// Record returns the live document. Callers must not modify it.
func (m *Memory) Record() *Record {
	return &m.rec
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (m *Memory) stamp() string {
	return m.now().Format(timeLayout)
}

// RememberLocation stores where name was found.
func (m *Memory) RememberLocation(name string, x, y int, context string) {
	m.rec.ElementLocations.Set(key(name), Location{X: x, Y: y, Context: context, FoundAt: m.stamp()})
	m.save()
	logger.Info("memorized %q at (%d, %d)", name, x, y)
}

// RecallLocation returns the first stored location, oldest key first,
// whose key contains name or is contained in it.
func (m *Memory) RecallLocation(name string) (int, int, bool) {
	k := key(name)
	for _, stored := range m.rec.ElementLocations.keys {
		if strings.Contains(stored, k) || strings.Contains(k, stored) {
			loc := m.rec.ElementLocations.byKey[stored]
			logger.Info("recalled %q at (%d, %d)", stored, loc.X, loc.Y)
			return loc.X, loc.Y, true
		}
	}
	return 0, 0, false
}

// RememberSuccess appends to the success log.
func (m *Memory) RememberSuccess(action, context string) {
	m.rec.SuccessfulActions = appendBounded(m.rec.SuccessfulActions,
		ActionEntry{Action: action, Context: context, Time: m.stamp()}, MaxSuccessEntries)
	m.save()
}

// RememberFailure appends to the failure log. A failed gear or settings
// action also drops the remembered gear and settings locations, since they
// led nowhere.
func (m *Memory) RememberFailure(action, context, reason string) {
	m.rec.FailedActions = appendBounded(m.rec.FailedActions,
		ActionEntry{Action: action, Context: context, Reason: reason, Time: m.stamp()}, MaxFailureEntries)

	a := strings.ToLower(action)
	if strings.Contains(a, "gear") || strings.Contains(a, "settings") {
		for _, k := range settingsKeys {
			if m.rec.ElementLocations.Delete(k) {
				logger.Info("cleared memorized %q after failed action", k)
			}
		}
	}
	m.save()
}

// Forget removes a remembered location and reports whether one existed.
func (m *Memory) Forget(name string) bool {
	if !m.rec.ElementLocations.Delete(key(name)) {
		return false
	}
	m.save()
	logger.Info("forgot location for %q", name)
	return true
}

// SessionValue returns a session value or def when unset or nil.
func (m *Memory) SessionValue(k string, def any) any {
	if v, ok := m.rec.SessionContext[k]; ok && v != nil {
		return v
	}
	return def
}

// SetSession stores a session value. Passing nil clears it.
// Session values are persisted with the next write.
func (m *Memory) SetSession(k string, v any) {
	m.rec.SessionContext[k] = v
}

// SessionPoint reads an {"x","y"} session value, as stored by
// SetSessionPoint or decoded back from the file.
func (m *Memory) SessionPoint(k string) (int, int, bool) {
	switch p := m.SessionValue(k, nil).(type) {
	case map[string]int:
		return p["x"], p["y"], true
	case map[string]any:
		x, okX := p["x"].(float64)
		y, okY := p["y"].(float64)
		if okX && okY {
			return int(x), int(y), true
		}
	}
	return 0, 0, false
}

// SetSessionPoint stores a point session value.
func (m *Memory) SetSessionPoint(k string, x, y int) {
	m.SetSession(k, map[string]int{"x": x, "y": y})
}

// ClearSession drops all session values and keeps learned data.
func (m *Memory) ClearSession() {
	m.rec.SessionContext = map[string]any{}
}

// Summary describes learned locations and recent failures for the planner
// prompt. Empty when nothing has been learned.
func (m *Memory) Summary() string {
	var parts []string

	if m.rec.ElementLocations.Len() > 0 {
		var locs []string
		for _, k := range m.rec.ElementLocations.keys {
			loc := m.rec.ElementLocations.byKey[k]
			locs = append(locs, fmt.Sprintf("'%s' at (%d, %d)", k, loc.X, loc.Y))
		}
		parts = append(parts, "Known element locations: "+strings.Join(locs, "; "))
	}

	recent := m.rec.FailedActions
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	if len(recent) > 0 {
		fails := make([]string, len(recent))
		for i, f := range recent {
			fails[i] = "'" + f.Action + "'"
		}
		parts = append(parts, "Recent failed actions to avoid: ["+strings.Join(fails, ", ")+"]")
	}

	return strings.Join(parts, "\n")
}

// Reset wipes all memory and deletes the backing file.
func (m *Memory) Reset() error {
	m.rec = newRecord()
	if m.path == "" {
		return nil
	}
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove memory file: %w", err)
	}
	return nil
}

func appendBounded(log []ActionEntry, e ActionEntry, limit int) []ActionEntry {
	log = append(log, e)
	if len(log) > limit {
		log = append([]ActionEntry(nil), log[len(log)-limit:]...)
	}
	return log
}

// save writes the document atomically (temp file + rename).
func (m *Memory) save() {
	if m.path == "" {
		return
	}
	if err := atomicWriteJSON(m.path, &m.rec); err != nil {
		logger.Warn("could not save memory: %v", err)
	}
}

func atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
