package format

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/restyrun/resty/internal/result"
)

var (
	dimColor   = lipgloss.Color("#6c6c6c")
	textColor  = lipgloss.Color("#e0e0e0")
	errorColor = lipgloss.Color("#f7768e")
	passColor  = lipgloss.Color("#73daca")
	warnColor  = lipgloss.Color("#e0af68")

	passStyle  = lipgloss.NewStyle().Foreground(passColor).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	skipStyle  = lipgloss.NewStyle().Foreground(warnColor)
	dimStyle   = lipgloss.NewStyle().Foreground(dimColor)
	nameStyle  = lipgloss.NewStyle().Foreground(textColor)
	fileHeader = lipgloss.NewStyle().Foreground(textColor).Bold(true).MarginTop(1)
)

// TextFormatter is the default console renderer, styled with lipgloss the
// way the host renders its own tool output.
type TextFormatter struct{}

func (TextFormatter) Format(w io.Writer, summary result.Summary) error {
	for _, fs := range summary.Files {
		fmt.Fprintln(w, fileHeader.Render(fs.Path))
		for _, r := range fs.Results {
			fmt.Fprintln(w, "  "+renderLine(r))
			if r.Status == result.Failed && r.Error != "" {
				fmt.Fprintln(w, "      "+dimStyle.Render(r.Error))
			}
		}
	}

	totals := summary.Totals()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s  %d passed, %d failed, %d skipped (%.0f%% pass rate)\n",
		statusLabel(totals), totals.Passed, totals.Failed, totals.Skipped, totals.PassRate()*100)
	return nil
}

func renderLine(r result.TestResult) string {
	var mark string
	switch r.Status {
	case result.Passed:
		mark = passStyle.Render("PASS")
	case result.Failed:
		mark = failStyle.Render("FAIL")
	case result.Skipped:
		mark = skipStyle.Render("SKIP")
	default:
		mark = dimStyle.Render(string(r.Status))
	}
	return fmt.Sprintf("%s %s %s", mark, nameStyle.Render(r.Name), dimStyle.Render(r.Duration().String()))
}

func statusLabel(t result.Totals) string {
	if t.Failed > 0 {
		return failStyle.Render("✗")
	}
	return passStyle.Render("✓")
}
