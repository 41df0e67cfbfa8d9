package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/qa-pilot/pkg/memory"
)

var memoryCommand = &cli.Command{
	Name:  "memory",
	Usage: "Inspect or edit the agent's persistent memory",
	Subcommands: []*cli.Command{
		{
			Name:   "show",
			Usage:  "List learned locations and recent actions",
			Action: memoryShow,
		},
		{
			Name:   "clear",
			Usage:  "Delete everything the agent has learned",
			Action: memoryClear,
		},
		{
			Name:      "forget",
			Usage:     "Drop one learned location",
			ArgsUsage: "<element name>",
			Action:    memoryForget,
		},
	},
}

// openMemory opens the memory file named by the workspace config.
func openMemory(c *cli.Context) (*memory.Memory, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return memory.Open(cfg.Paths().Memory), nil
}

func memoryShow(c *cli.Context) error {
	mem, err := openMemory(c)
	if err != nil {
		return err
	}
	p := newPrinter(c.App.Writer, !c.Bool("no-ansi"))
	rec := mem.Record()

	p.printf("%s %s\n\n", p.muted.Render("Memory file:"), mem.Path())

	p.printf("%s\n", p.bold.Render(fmt.Sprintf("Locations (%d)", rec.ElementLocations.Len())))
	for _, k := range rec.ElementLocations.Keys() {
		loc, _ := rec.ElementLocations.Get(k)
		p.printf("  %-24s (%d, %d) %s\n", k, loc.X, loc.Y, p.muted.Render(loc.FoundAt))
	}

	p.printf("\n%s\n", p.bold.Render(fmt.Sprintf("Successful actions (%d)", len(rec.SuccessfulActions))))
	for _, a := range lastEntries(rec.SuccessfulActions, 10) {
		p.printf("  %s %s\n", p.success.Render("✓"), oneLine(a.Action, 70))
	}

	p.printf("\n%s\n", p.bold.Render(fmt.Sprintf("Failed actions (%d)", len(rec.FailedActions))))
	for _, a := range lastEntries(rec.FailedActions, 10) {
		p.printf("  %s %s %s\n", p.failure.Render("✗"), oneLine(a.Action, 50), p.muted.Render(a.Reason))
	}
	return nil
}

func memoryClear(c *cli.Context) error {
	mem, err := openMemory(c)
	if err != nil {
		return err
	}
	if err := mem.Reset(); err != nil {
		return err
	}
	newPrinter(c.App.Writer, !c.Bool("no-ansi")).setupSuccess("Memory cleared")
	return nil
}

func memoryForget(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return cli.Exit("usage: qa-pilot memory forget <element name>", 1)
	}
	mem, err := openMemory(c)
	if err != nil {
		return err
	}
	p := newPrinter(c.App.Writer, !c.Bool("no-ansi"))
	if !mem.Forget(name) {
		p.setupWarning(fmt.Sprintf("No location remembered for %q", name))
		return nil
	}
	p.setupSuccess(fmt.Sprintf("Forgot %q", name))
	return nil
}

func lastEntries(entries []memory.ActionEntry, n int) []memory.ActionEntry {
	if len(entries) > n {
		return entries[len(entries)-n:]
	}
	return entries
}
