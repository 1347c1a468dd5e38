package format

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/restyrun/resty/internal/result"
)

func sampleSummary() result.Summary {
	now := time.Now()
	return result.Summary{
		Files: []result.FileSuite{
			{
				Path: "widgets.resty",
				Results: []result.TestResult{
					{Name: "create widget", Status: result.Passed, Start: now, End: now.Add(10 * time.Millisecond)},
					{Name: "broken test", Status: result.Failed, Error: "expected status 200, got 500", Start: now, End: now.Add(5 * time.Millisecond)},
					{Name: "disabled test", Status: result.Skipped},
				},
			},
		},
	}
}

func TestByNameResolvesKnownFormats(t *testing.T) {
	for _, name := range []string{"", "text", "markdown", "md", "json", "xml", "junit", "html"} {
		if _, err := ByName(name); err != nil {
			t.Errorf("ByName(%q): %v", name, err)
		}
	}
	if _, err := ByName("yaml"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestJSONFormatterProducesValidJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSONFormatter{}).Format(&buf, sampleSummary()); err != nil {
		t.Fatalf("Format: %v", err)
	}
	var report jsonReport
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if report.Summary.Passed != 1 || report.Summary.Failed != 1 || report.Summary.Skipped != 1 {
		t.Errorf("unexpected summary: %+v", report.Summary)
	}
}

func TestJUnitFormatterCountsFailuresAndSkips(t *testing.T) {
	var buf bytes.Buffer
	if err := (JUnitFormatter{}).Format(&buf, sampleSummary()); err != nil {
		t.Fatalf("Format: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `failures="1"`) || !strings.Contains(out, `skipped="1"`) {
		t.Errorf("expected failures=1 skipped=1 in output, got:\n%s", out)
	}
}

func TestTextFormatterMarksFailures(t *testing.T) {
	var buf bytes.Buffer
	if err := (TextFormatter{}).Format(&buf, sampleSummary()); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !strings.Contains(buf.String(), "broken test") {
		t.Errorf("expected output to mention the failing test name")
	}
}

func TestHTMLFormatterEscapesNames(t *testing.T) {
	s := sampleSummary()
	s.Files[0].Results[0].Name = "<script>"
	var buf bytes.Buffer
	if err := (HTMLFormatter{}).Format(&buf, s); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if strings.Contains(buf.String(), "<script>") {
		t.Error("expected test name to be HTML-escaped")
	}
}
