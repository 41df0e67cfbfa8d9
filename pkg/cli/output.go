package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/devicelab-dev/qa-pilot/pkg/action"
	"github.com/devicelab-dev/qa-pilot/pkg/agent"
	"github.com/devicelab-dev/qa-pilot/pkg/executor"
	"github.com/devicelab-dev/qa-pilot/pkg/report"
	"github.com/devicelab-dev/qa-pilot/pkg/suite"
)

var (
	colorAccent  = lipgloss.Color("#22D3EE")
	colorSuccess = lipgloss.Color("#34D399")
	colorWarning = lipgloss.Color("#FBBF24")
	colorError   = lipgloss.Color("#F87171")
	colorMuted   = lipgloss.Color("#9CA3AF")
)

// printer renders progress and results to the terminal.
type printer struct {
	w io.Writer

	accent  lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style
	bold    lipgloss.Style
	box     lipgloss.Style
}

// newPrinter creates a printer for w. Colors also switch off with NO_COLOR
// or when w is not a terminal.
func newPrinter(w io.Writer, colors bool) *printer {
	if os.Getenv("NO_COLOR") != "" {
		colors = false
	}
	r := lipgloss.NewRenderer(w)
	fg := func(c lipgloss.TerminalColor) lipgloss.Style {
		s := r.NewStyle()
		if colors {
			s = s.Foreground(c)
		}
		return s
	}
	box := r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	if colors {
		box = box.BorderForeground(colorMuted)
	}
	return &printer{
		w:       w,
		accent:  fg(colorAccent),
		success: fg(colorSuccess),
		warning: fg(colorWarning),
		failure: fg(colorError),
		muted:   fg(colorMuted),
		bold:    r.NewStyle().Bold(colors),
		box:     box,
	}
}

func (p *printer) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) banner() {
	p.printf("%s\n", p.box.Render(p.bold.Render("qa-pilot "+Version)+"\n"+p.muted.Render("vision-driven QA agent for Android")))
}

func (p *printer) setupStep(msg string) {
	p.printf("  %s %s\n", p.accent.Render("⏳"), msg)
}

func (p *printer) setupSuccess(msg string) {
	p.printf("  %s %s\n", p.success.Render("✓"), msg)
}

func (p *printer) setupWarning(msg string) {
	p.printf("  %s %s\n", p.warning.Render("!"), msg)
}

func (p *printer) testStart(idx, total int, t suite.Test, objective string) {
	p.printf("\n  %s %s\n", p.accent.Render(fmt.Sprintf("[%d/%d]", idx+1, total)), p.bold.Render(t.Name))
	p.printf("  %s\n", p.muted.Render(objective))
	p.printf("  %s\n", p.muted.Render(strings.Repeat("─", 60)))
}

func (p *printer) step(step int, desc string, intent action.Intent) {
	if desc == "" {
		desc = "(no plan)"
	}
	p.printf("    %s %s %s\n", p.muted.Render(fmt.Sprintf("%2d.", step)), desc, p.muted.Render("→ "+intent.String()))
}

func (p *printer) verdict(step int, v agent.Verdict, reply string) {
	style := p.muted
	switch v {
	case agent.VerdictPass:
		style = p.success
	case agent.VerdictFail:
		style = p.warning
	}
	p.printf("    %s %s\n", p.muted.Render(fmt.Sprintf("%2d.", step)), style.Render("supervisor: "+oneLine(reply, 80)))
}

func (p *printer) testEnd(tr executor.TestResult) {
	detail := p.muted.Render(fmt.Sprintf("%s, %d steps, %s", tr.Agent.Outcome, tr.Agent.Steps, formatDuration(tr.Duration)))
	switch tr.Status {
	case report.StatusPassed:
		p.printf("  %s %s %s\n", p.success.Render("✓"), tr.Name, detail)
	case report.StatusFailed:
		p.printf("  %s %s %s\n", p.failure.Render("✗"), tr.Name, detail)
		if tr.Error != "" {
			p.printf("    %s\n", p.failure.Render(tr.Error))
		}
	default:
		p.printf("  %s %s %s\n", p.warning.Render("-"), tr.Name, p.muted.Render(tr.Error))
	}
}

func (p *printer) summary(res *executor.RunResult) {
	var b strings.Builder
	for _, tr := range res.TestResults {
		mark := p.warning.Render("-")
		switch tr.Status {
		case report.StatusPassed:
			mark = p.success.Render("✓")
		case report.StatusFailed:
			mark = p.failure.Render("✗")
		}
		outcome := "skipped"
		if tr.Status != report.StatusSkipped {
			outcome = tr.Agent.Outcome.String()
		}
		fmt.Fprintf(&b, "%s %-28s %-10s %3d steps  %s\n", mark, oneLine(tr.Name, 28), outcome, tr.Agent.Steps, formatDuration(tr.Duration))
	}

	totals := fmt.Sprintf("%d tests: %s, %s, %s",
		res.TotalTests,
		p.success.Render(fmt.Sprintf("%d passed", res.PassedTests)),
		p.failure.Render(fmt.Sprintf("%d failed", res.FailedTests)),
		p.warning.Render(fmt.Sprintf("%d skipped", res.SkippedTests)))
	b.WriteString(totals)

	p.printf("\n%s\n", p.box.Render(b.String()))
	p.printf("  %s %s\n", p.muted.Render("Report:"), res.ReportPath)
}

// oneLine collapses whitespace and truncates to n runes.
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
