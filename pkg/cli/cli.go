// Package cli provides the command-line interface for qa-pilot.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/qa-pilot/pkg/core"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to qa-pilot.yaml (default: ./qa-pilot.yaml if present)",
		EnvVars: []string{"QA_PILOT_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"s"},
		Usage:   "ADB serial of the device to drive (default: first connected)",
		EnvVars: []string{"ANDROID_SERIAL"},
	},
	&cli.StringFlag{
		Name:    "env-file",
		Usage:   "Dotenv file holding API keys",
		Value:   ".env",
		EnvVars: []string{"QA_PILOT_ENV_FILE"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Write debug-level entries to the log file",
		EnvVars: []string{"QA_PILOT_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the qa-pilot command tree.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "qa-pilot",
		Usage:   "Vision-driven QA agent for Android apps",
		Version: Version,
		Description: `qa-pilot drives an Android app toward natural-language objectives.
Each step it reads the screen and UI tree, asks a vision model for the next
action and checks whether the objective has been met.

Examples:
  qa-pilot run
  qa-pilot run --objective "Open Settings and tap 'Appearance'"
  qa-pilot run --suite smoke.yaml --test 2 --no-wipe
  qa-pilot hierarchy --compact
  qa-pilot validate suites/
  qa-pilot memory show`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			runCommand,
			hierarchyCommand,
			memoryCommand,
			validateCommand,
		},
		DefaultCommand: "run",
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var execErr *core.ExecutionError
		if errors.As(err, &execErr) && execErr.Fatal() {
			fmt.Fprintln(os.Stderr, "Check that the device is listed by `adb devices` and adb is on PATH.")
		}
		os.Exit(1)
	}
}
