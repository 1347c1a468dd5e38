package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/restyrun/resty/internal/result"
)

// MarkdownFormatter builds a Markdown report and renders it through glamour,
// the same renderer the host's interactive mode uses for chat output.
type MarkdownFormatter struct{}

func (MarkdownFormatter) Format(w io.Writer, summary result.Summary) error {
	var b strings.Builder
	totals := summary.Totals()
	fmt.Fprintf(&b, "# Test run summary\n\n")
	fmt.Fprintf(&b, "**%d** passed, **%d** failed, **%d** skipped (%.0f%% pass rate)\n\n",
		totals.Passed, totals.Failed, totals.Skipped, totals.PassRate()*100)

	for _, fs := range summary.Files {
		fmt.Fprintf(&b, "## %s\n\n", fs.Path)
		fmt.Fprintf(&b, "| Test | Status | Duration |\n|---|---|---|\n")
		for _, r := range fs.Results {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", r.Name, r.Status, r.Duration())
		}
		for _, r := range fs.Results {
			if r.Status == result.Failed && r.Error != "" {
				fmt.Fprintf(&b, "\n> **%s**: %s\n", r.Name, r.Error)
			}
		}
		b.WriteString("\n")
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		_, err := io.WriteString(w, b.String())
		return err
	}
	rendered, err := renderer.Render(b.String())
	if err != nil {
		_, werr := io.WriteString(w, b.String())
		return werr
	}
	_, err = io.WriteString(w, rendered)
	return err
}
