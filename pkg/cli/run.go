package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/qa-pilot/pkg/agent"
	"github.com/devicelab-dev/qa-pilot/pkg/config"
	"github.com/devicelab-dev/qa-pilot/pkg/device"
	"github.com/devicelab-dev/qa-pilot/pkg/executor"
	"github.com/devicelab-dev/qa-pilot/pkg/logger"
	"github.com/devicelab-dev/qa-pilot/pkg/memory"
	"github.com/devicelab-dev/qa-pilot/pkg/oracle"
	"github.com/devicelab-dev/qa-pilot/pkg/report"
	"github.com/devicelab-dev/qa-pilot/pkg/suite"
)

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "Run the test suite (or a single objective) against the device",
	Description: `Runs each test's objective through the agent and writes a JSON report.

Without --suite or --objective the built-in Obsidian suite is used.
The app is reset to a first-launch state before every test unless
--no-wipe is given.`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "no-wipe",
			Aliases: []string{"n"},
			Usage:   "Skip the app reset before each test",
		},
		&cli.BoolFlag{
			Name:    "clear-memory",
			Aliases: []string{"m"},
			Usage:   "Start from an empty agent memory",
		},
		&cli.IntFlag{
			Name:    "test",
			Aliases: []string{"t"},
			Usage:   "Start from the Nth test (1-based)",
			Value:   1,
		},
		&cli.StringFlag{
			Name:    "objective",
			Aliases: []string{"o"},
			Usage:   "Run a single ad-hoc objective instead of a suite",
		},
		&cli.StringFlag{
			Name:  "expect",
			Usage: "Expectation for --objective (JS expression over outcome, steps, reason)",
		},
		&cli.StringFlag{
			Name:  "suite",
			Usage: "Suite YAML file",
		},
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Variable for ${...} expansion (KEY=VALUE, repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only run tests carrying one of these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Skip tests carrying any of these tags",
		},
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Skip remaining tests after the first failure",
		},
		&cli.IntFlag{
			Name:  "max-steps",
			Usage: "Step budget per objective (overrides agent.maxSteps)",
		},
		&cli.StringFlag{
			Name:  "provider",
			Usage: "Vision model backend: gemini, openai, anthropic or ollama",
		},
		&cli.StringFlag{
			Name:  "model",
			Usage: "Model name for the backend",
		},
	},
	Action: runTests,
}

func runTests(c *cli.Context) error {
	p := newPrinter(c.App.Writer, !c.Bool("no-ansi"))

	if err := config.LoadEnv(c.String("env-file")); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	paths := cfg.Paths()
	level := "info"
	if c.Bool("verbose") {
		level = "debug"
	}
	if err := logger.InitWithOptions(paths.Log, logger.Options{Level: level}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	s, err := loadSuite(c)
	if err != nil {
		return err
	}
	cliEnv, err := parseEnvVars(c.StringSlice("env"))
	if err != nil {
		return err
	}
	s.Env = mergeEnv(cfg.Env, s.Env, cliEnv)

	tests, err := selectTests(s, c.Int("test"), c.StringSlice("include-tags"), c.StringSlice("exclude-tags"))
	if err != nil {
		return err
	}
	if len(tests) == 0 {
		return cli.Exit("no tests selected", 1)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p.banner()

	p.setupStep("Connecting to device...")
	dev, err := device.New(ctx, c.String("device"))
	if err != nil {
		return fmt.Errorf("connect device: %w", err)
	}
	info, _ := dev.Info(ctx)
	width, height, err := dev.ScreenSize(ctx)
	if err != nil {
		return fmt.Errorf("read screen size: %w", err)
	}
	p.setupSuccess(fmt.Sprintf("Device %s (%s, SDK %s, %dx%d)", dev.Serial(), info.Model, info.SDK, width, height))
	if !dev.IsInstalled(ctx, cfg.App.Package) {
		p.setupWarning(fmt.Sprintf("%s does not appear to be installed", cfg.App.Package))
		logger.Warn("package %s not installed on %s", cfg.App.Package, dev.Serial())
	}

	p.setupStep("Connecting to vision model...")
	o, err := oracle.New(ctx, cfg.Oracle)
	if err != nil {
		return err
	}
	p.setupSuccess(fmt.Sprintf("Oracle %s %s", cfg.Oracle.Provider, cfg.Oracle.Model))

	mem := memory.Open(paths.Memory)
	if c.Bool("clear-memory") {
		if err := mem.Reset(); err != nil {
			return fmt.Errorf("clear memory: %w", err)
		}
		p.setupSuccess("Memory cleared")
	}

	loop := agent.NewLoop(dev, o, mem, agent.Config{
		Agent:    cfg.Agent,
		Timing:   cfg.Timing,
		Region:   cfg.Region,
		OnStep:   p.step,
		OnVerify: p.verdict,
	})

	var reset func(ctx context.Context) error
	if !c.Bool("no-wipe") {
		reset = func(ctx context.Context) error {
			return dev.ResetApp(ctx, device.ResetOptions{
				Package:   cfg.App.Package,
				VaultDirs: cfg.App.VaultDirs,
				StopWait:  cfg.Timing.AppStop,
				Settle:    cfg.Timing.WipeSettle,
			})
		}
	}

	runner := executor.New(executor.LoopFactory(loop), executor.RunnerConfig{
		ReportDir:     paths.Reports,
		ArtifactsDir:  paths.Debug,
		StopOnFail:    c.Bool("stop-on-fail"),
		Reset:         reset,
		Device:        report.Device{ID: dev.Serial(), Model: info.Model, Width: width, Height: height},
		App:           report.App{Package: cfg.App.Package},
		Oracle:        report.OracleInfo{Provider: cfg.Oracle.Provider, Model: cfg.Oracle.Model},
		RunnerVersion: Version,
		OnTestStart:   p.testStart,
		OnTestEnd:     func(_ int, tr executor.TestResult) { p.testEnd(tr) },
	})

	result, err := runner.Run(ctx, s, tests)
	if err != nil {
		return err
	}
	p.summary(result)

	if result.FailedTests > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

// loadConfig reads --config or ./qa-pilot.yaml and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		var cwd string
		if cwd, err = os.Getwd(); err == nil {
			cfg, err = config.LoadFromDir(cwd)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if v := c.String("provider"); v != "" {
		cfg.Oracle.Provider = v
	}
	if v := c.String("model"); v != "" {
		cfg.Oracle.Model = v
	}
	if v := c.Int("max-steps"); v > 0 {
		cfg.Agent.MaxSteps = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSuite picks the ad-hoc objective, the suite file or the built-in suite.
func loadSuite(c *cli.Context) (*suite.Suite, error) {
	objective := strings.TrimSpace(c.String("objective"))
	path := c.String("suite")
	switch {
	case objective != "" && path != "":
		return nil, cli.Exit("--objective and --suite are mutually exclusive", 1)
	case objective != "":
		return suite.FromObjective(objective, c.String("expect")), nil
	case path != "":
		return suite.ParseFile(path)
	default:
		return suite.Default(), nil
	}
}

// selectTests starts at the 1-based position start and applies tag filters.
func selectTests(s *suite.Suite, start int, include, exclude []string) ([]suite.Test, error) {
	tests, err := s.From(start)
	if err != nil {
		return nil, err
	}
	var out []suite.Test
	for _, t := range tests {
		if suite.ShouldIncludeTest(t, include, exclude) {
			out = append(out, t)
		}
	}
	return out, nil
}

// mergeEnv layers maps left to right; later keys win.
func mergeEnv(layers ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, l := range layers {
		for k, v := range l {
			out[k] = v
		}
	}
	return out
}

func parseEnvVars(envs []string) (map[string]string, error) {
	result := make(map[string]string)
	for _, env := range envs {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid env format %q, expected KEY=VALUE", env)
		}
		result[parts[0]] = parts[1]
	}
	return result, nil
}
