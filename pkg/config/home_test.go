package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetHome_EnvVar(t *testing.T) {
	ResetHome()
	defer ResetHome()
	t.Setenv(envHome, "/custom/home")

	if got := GetHome(); got != "/custom/home" {
		t.Errorf("GetHome() = %q, want %q", got, "/custom/home")
	}
}

func TestGetHome_FallbackToCwd(t *testing.T) {
	ResetHome()
	defer ResetHome()
	t.Setenv(envHome, "")

	// Test binaries never live in a bin/ directory, so the working directory wins.
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if got := GetHome(); got != cwd {
		t.Errorf("GetHome() = %q, want working directory %q", got, cwd)
	}
}

func TestGetHome_Cached(t *testing.T) {
	ResetHome()
	defer ResetHome()
	t.Setenv(envHome, "/first")
	first := GetHome()

	t.Setenv(envHome, "/second")
	if second := GetHome(); first != second {
		t.Errorf("GetHome() not cached: first=%q, second=%q", first, second)
	}
}

func TestConfigPaths(t *testing.T) {
	ResetHome()
	defer ResetHome()
	t.Setenv(envHome, "/test/home")

	cfg := Default()
	cfg.ReportDir = "/var/qa/reports"
	p := cfg.Paths()

	if p.Memory != filepath.Join("/test/home", "agent_memory.json") {
		t.Errorf("Memory = %q", p.Memory)
	}
	if p.Debug != filepath.Join("/test/home", "debug_taps") {
		t.Errorf("Debug = %q", p.Debug)
	}
	if p.Reports != "/var/qa/reports" {
		t.Errorf("Reports = %q, want absolute path unchanged", p.Reports)
	}
	if p.Log != filepath.Join("/test/home", "qa-pilot.log") {
		t.Errorf("Log = %q", p.Log)
	}
}
