package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/qa-pilot/pkg/device"
	"github.com/devicelab-dev/qa-pilot/pkg/uitree"
)

var hierarchyCommand = &cli.Command{
	Name:  "hierarchy",
	Usage: "Dump the current UI tree of the connected device",
	Description: `Prints every element of the uiautomator dump the agent sees.

Examples:
  qa-pilot hierarchy
  qa-pilot hierarchy --compact
  qa-pilot hierarchy --raw > screen.xml`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "compact",
			Usage: "CSV with one row per element instead of JSON",
		},
		&cli.BoolFlag{
			Name:  "raw",
			Usage: "Print the raw XML dump",
		},
	},
	Action: func(c *cli.Context) error {
		dev, err := device.New(c.Context, c.String("device"))
		if err != nil {
			return fmt.Errorf("connect device: %w", err)
		}
		raw, err := dev.DumpHierarchy(c.Context)
		if err != nil {
			return err
		}
		if c.Bool("raw") {
			_, err := io.WriteString(c.App.Writer, raw)
			return err
		}
		return printHierarchy(c.App.Writer, raw, c.Bool("compact"))
	},
}

// hierarchyRow is the JSON shape of one element.
type hierarchyRow struct {
	Depth       int    `json:"depth"`
	Class       string `json:"class,omitempty"`
	Text        string `json:"text,omitempty"`
	ContentDesc string `json:"contentDesc,omitempty"`
	Hint        string `json:"hint,omitempty"`
	ResourceID  string `json:"resourceId,omitempty"`
	Bounds      string `json:"bounds"`
	Clickable   bool   `json:"clickable,omitempty"`
	Checkable   bool   `json:"checkable,omitempty"`
	Enabled     bool   `json:"enabled"`
	Focused     bool   `json:"focused,omitempty"`
}

func printHierarchy(w io.Writer, raw string, compact bool) error {
	elements := uitree.FromXML(raw).Elements()
	if compact {
		return writeHierarchyCSV(w, elements)
	}

	rows := make([]hierarchyRow, 0, len(elements))
	for _, e := range elements {
		rows = append(rows, hierarchyRow{
			Depth:       e.Depth,
			Class:       e.ClassName,
			Text:        e.Text,
			ContentDesc: e.ContentDesc,
			Hint:        e.HintText,
			ResourceID:  e.ResourceID,
			Bounds:      e.Bounds.String(),
			Clickable:   e.Clickable,
			Checkable:   e.Checkable,
			Enabled:     e.Enabled,
			Focused:     e.Focused,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func writeHierarchyCSV(w io.Writer, elements []*uitree.Element) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"depth", "class", "label", "resource_id", "x", "y", "width", "height", "clickable"}); err != nil {
		return err
	}
	for _, e := range elements {
		b := e.Bounds
		if err := cw.Write([]string{
			strconv.Itoa(e.Depth),
			e.ClassName,
			e.Label(),
			e.ResourceID,
			strconv.Itoa(b.X),
			strconv.Itoa(b.Y),
			strconv.Itoa(b.Width),
			strconv.Itoa(b.Height),
			strconv.FormatBool(e.Clickable),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
