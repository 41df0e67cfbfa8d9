package executor

import (
	"github.com/devicelab-dev/qa-pilot/pkg/agent"
	"github.com/devicelab-dev/qa-pilot/pkg/report"
)

// tapsToReport converts the agent tap log to report taps.
func tapsToReport(taps []agent.TapRecord) []report.Tap {
	if len(taps) == 0 {
		return nil
	}
	out := make([]report.Tap, len(taps))
	for i, t := range taps {
		out[i] = report.Tap{
			Step:    t.Step,
			X:       t.X,
			Y:       t.Y,
			Desc:    t.Desc,
			Label:   t.Label,
			Overlay: t.Overlay,
		}
		if t.Target != nil {
			out[i].Target = &report.Bounds{
				X:      t.Target.X,
				Y:      t.Target.Y,
				Width:  t.Target.Width,
				Height: t.Target.Height,
			}
		}
	}
	return out
}

func errorString(msg string) *string {
	if msg == "" {
		return nil
	}
	return &msg
}
