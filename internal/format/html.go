package format

import (
	"fmt"
	"html"
	"io"

	"github.com/restyrun/resty/internal/result"
)

// HTMLFormatter renders a minimal standalone HTML report (spec.md §6.3):
// sufficient for a static report artifact, not a dashboard.
type HTMLFormatter struct{}

func (HTMLFormatter) Format(w io.Writer, summary result.Summary) error {
	totals := summary.Totals()
	fmt.Fprintf(w, "<!doctype html>\n<html><head><meta charset=\"utf-8\"><title>resty report</title>")
	fmt.Fprintf(w, "<style>body{font-family:sans-serif;margin:2rem}.pass{color:#0a7d32}.fail{color:#c0392b}")
	fmt.Fprintf(w, ".skip{color:#b8860b}table{border-collapse:collapse;margin-bottom:2rem}")
	fmt.Fprintf(w, "td,th{border:1px solid #ccc;padding:.3rem .6rem;text-align:left}</style></head><body>\n")
	fmt.Fprintf(w, "<h1>Test run summary</h1>\n<p>%d passed, %d failed, %d skipped (%.0f%% pass rate)</p>\n",
		totals.Passed, totals.Failed, totals.Skipped, totals.PassRate()*100)

	for _, fs := range summary.Files {
		fmt.Fprintf(w, "<h2>%s</h2>\n<table><tr><th>Test</th><th>Status</th><th>Duration</th><th>Error</th></tr>\n",
			html.EscapeString(fs.Path))
		for _, r := range fs.Results {
			cls := statusClass(r.Status)
			fmt.Fprintf(w, "<tr><td>%s</td><td class=\"%s\">%s</td><td>%s</td><td>%s</td></tr>\n",
				html.EscapeString(r.Name), cls, r.Status, r.Duration(), html.EscapeString(r.Error))
		}
		fmt.Fprintf(w, "</table>\n")
	}
	fmt.Fprintf(w, "</body></html>\n")
	return nil
}

func statusClass(s result.Status) string {
	switch s {
	case result.Passed:
		return "pass"
	case result.Failed:
		return "fail"
	case result.Skipped:
		return "skip"
	default:
		return ""
	}
}
