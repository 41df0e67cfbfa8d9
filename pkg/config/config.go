// Package config handles configuration for qa-pilot.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the workspace configuration (qa-pilot.yaml).
// Fields left out of the file keep the values from Default.
type Config struct {
	Oracle OracleConfig `yaml:"oracle"`
	Agent  AgentConfig  `yaml:"agent"`
	Timing Timing       `yaml:"timing"`
	Region Region       `yaml:"region"`
	App    AppConfig    `yaml:"app"`

	MemoryFile string `yaml:"memoryFile"` // Relative paths resolve against the home directory
	DebugDir   string `yaml:"debugDir"`   // Tap and grid overlays
	ReportDir  string `yaml:"reportDir"`  // JSON run reports
	LogFile    string `yaml:"logFile"`

	Env map[string]string `yaml:"env"` // Variables for ${...} expansion in objectives
}

// OracleConfig selects and tunes the vision model backend.
type OracleConfig struct {
	Provider          string        `yaml:"provider"` // gemini, openai, anthropic, ollama
	Model             string        `yaml:"model"`    // Empty: the provider's default model
	BaseURL           string        `yaml:"baseURL"`
	APIKey            string        `yaml:"apiKey"` // Usually left empty; read from the environment
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"maxRetries"`
	RequestsPerMinute int           `yaml:"requestsPerMinute"` // 0 = unlimited
	Temperature       float32       `yaml:"temperature"`
	MaxTokens         int           `yaml:"maxTokens"`
}

// AgentConfig bounds the control loop.
type AgentConfig struct {
	MaxSteps    int `yaml:"maxSteps"`    // Step budget per objective
	VerifyAfter int `yaml:"verifyAfter"` // Supervisor runs once step >= VerifyAfter
	FailAfter   int `yaml:"failAfter"`   // Supervisor FAIL is honoured once step > FailAfter
	SidebarX    int `yaml:"sidebarX"`    // X anchor for swipe gestures
}

// Timing holds the fixed settle delays after each action kind.
type Timing struct {
	PostTap         time.Duration `yaml:"postTap"`
	AppLaunch       time.Duration `yaml:"appLaunch"`
	PreType         time.Duration `yaml:"preType"`
	PostType        time.Duration `yaml:"postType"`
	Focus           time.Duration `yaml:"focus"`
	KeyboardDismiss time.Duration `yaml:"keyboardDismiss"`
	PostKey         time.Duration `yaml:"postKey"`
	PostSwipe       time.Duration `yaml:"postSwipe"`
	Settle          time.Duration `yaml:"settle"`
	AppStop         time.Duration `yaml:"appStop"`
	WipeSettle      time.Duration `yaml:"wipeSettle"`
}

// Region is the sidebar bottom-left search rectangle, tuned for a
// 1080x2400 screen with the Obsidian sidebar open.
type Region struct {
	MaxX int `yaml:"maxX"`
	MinY int `yaml:"minY"`
	MaxY int `yaml:"maxY"`
}

// AppConfig identifies the app under test and where its data lives.
type AppConfig struct {
	Package   string   `yaml:"package"`
	VaultDirs []string `yaml:"vaultDirs"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Oracle: OracleConfig{
			Provider:    "gemini", // Model left empty: each backend has its own default
			Timeout:     120 * time.Second,
			MaxRetries:  3,
			Temperature: 0.1,
			MaxTokens:   1024,
		},
		Agent: AgentConfig{
			MaxSteps:    15,
			VerifyAfter: 3,
			FailAfter:   7,
			SidebarX:    250,
		},
		Timing: DefaultTiming(),
		Region: Region{MaxX: 300, MinY: 1800, MaxY: 2200},
		App: AppConfig{
			Package:   "md.obsidian",
			VaultDirs: []string{"/sdcard/Documents/", "/sdcard/Obsidian/", "/sdcard/Download/"},
		},
		MemoryFile: "agent_memory.json",
		DebugDir:   "debug_taps",
		ReportDir:  "reports",
		LogFile:    "qa-pilot.log",
	}
}

// DefaultTiming returns the settle delays used against a stock emulator.
func DefaultTiming() Timing {
	return Timing{
		PostTap:         1 * time.Second,
		AppLaunch:       3 * time.Second,
		PreType:         300 * time.Millisecond,
		PostType:        300 * time.Millisecond,
		Focus:           500 * time.Millisecond,
		KeyboardDismiss: 500 * time.Millisecond,
		PostKey:         500 * time.Millisecond,
		PostSwipe:       500 * time.Millisecond,
		Settle:          1 * time.Second,
		AppStop:         500 * time.Millisecond,
		WipeSettle:      1 * time.Second,
	}
}

// Load loads configuration from a file, layered over Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir looks for qa-pilot.yaml or qa-pilot.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try qa-pilot.yaml first
	configPath := filepath.Join(dir, "qa-pilot.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try qa-pilot.yml
	configPath = filepath.Join(dir, "qa-pilot.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, use defaults
	return Default(), nil
}

// LoadEnv loads a .env file into the process environment.
// Existing variables win; a missing file is not an error.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Validate rejects values the control loop cannot work with.
func (c *Config) Validate() error {
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.maxSteps must be positive, got %d", c.Agent.MaxSteps)
	}
	if c.Agent.VerifyAfter < 0 || c.Agent.FailAfter < 0 {
		return fmt.Errorf("agent.verifyAfter and agent.failAfter must not be negative")
	}
	switch c.Oracle.Provider {
	case "gemini", "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("unknown oracle provider %q (want gemini, openai, anthropic or ollama)", c.Oracle.Provider)
	}
	if c.Region.MinY > c.Region.MaxY {
		return fmt.Errorf("region.minY (%d) is greater than region.maxY (%d)", c.Region.MinY, c.Region.MaxY)
	}
	return nil
}
