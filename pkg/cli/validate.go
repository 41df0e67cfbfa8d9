package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/qa-pilot/pkg/validator"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Check suite files without connecting to a device",
	ArgsUsage: "<suite file or directory>...",
	Description: `Parses each suite, compiles every expect expression and checks that
the ${...} references in objectives resolve against the suite env, the
config env, --env and the process environment.`,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Variable for ${...} expansion (KEY=VALUE, repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only check tests carrying one of these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Skip tests carrying any of these tags",
		},
	},
	Action: validateSuites,
}

func validateSuites(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("usage: qa-pilot validate <suite file or directory>...", 1)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	cliEnv, err := parseEnvVars(c.StringSlice("env"))
	if err != nil {
		return err
	}

	p := newPrinter(c.App.Writer, !c.Bool("no-ansi"))
	v := validator.New(c.StringSlice("include-tags"), c.StringSlice("exclude-tags"), mergeEnv(cfg.Env, cliEnv))

	failed := 0
	for _, path := range c.Args().Slice() {
		res := v.Validate(path)
		for _, e := range res.Errors {
			p.printf("  %s %s\n", p.failure.Render("✗"), e)
		}
		if res.IsValid() {
			p.setupSuccess(fmt.Sprintf("%s: %d tests in %d files", path, res.Tests, len(res.Files)))
		}
		failed += len(res.Errors)
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d problems found", failed), 1)
	}
	return nil
}
