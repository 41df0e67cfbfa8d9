package config

import (
	"os"
	"path/filepath"
	"sync"
)

// envHome overrides where qa-pilot keeps its state.
const envHome = "QA_PILOT_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the directory that relative memory, report, overlay and
// log paths are resolved against. The first of these wins:
//  1. $QA_PILOT_HOME
//  2. <home> when the binary is installed as <home>/bin/qa-pilot
//  3. the working directory
//
// The result is computed once per process.
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

func resolveHome() string {
	if env := os.Getenv(envHome); env != "" {
		return env
	}
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		if dir := filepath.Dir(exe); filepath.Base(dir) == "bin" {
			return filepath.Dir(dir)
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}

// ResetHome forgets the cached home directory. Tests only.
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}

// ResolvePath makes p absolute relative to the home directory. Empty and
// absolute paths are returned unchanged.
func ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(GetHome(), p)
}

// Paths are the resolved locations of everything a run writes.
type Paths struct {
	Memory  string // agent memory JSON
	Debug   string // parent of per-run tap and grid overlays
	Reports string // parent of per-run report directories
	Log     string
}

// Paths resolves the configured file locations against the home directory.
func (c *Config) Paths() Paths {
	return Paths{
		Memory:  ResolvePath(c.MemoryFile),
		Debug:   ResolvePath(c.DebugDir),
		Reports: ResolvePath(c.ReportDir),
		Log:     ResolvePath(c.LogFile),
	}
}
