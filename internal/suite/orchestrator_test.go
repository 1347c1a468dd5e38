package suite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/restyrun/resty/internal/result"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestRunOrdersByDependencyAndServesMocks(t *testing.T) {
	dir := t.TempDir()
	content := "# widgets\n\n" +
		"```yaml\n" +
		"test: fetch widget\n" +
		"requires: [create widget]\n" +
		"get: https://example.test/widgets/$widget_id\n" +
		"mock:\n" +
		"  status: 200\n" +
		"  body: '{\"id\":\"$widget_id\"}'\n" +
		"  content_type: application/json\n" +
		"expect:\n" +
		"  status: 200\n" +
		"  values:\n" +
		"    - key: $.id\n" +
		"      op: eq\n" +
		"      value: $widget_id\n" +
		"```\n\n" +
		"```yaml\n" +
		"test: create widget\n" +
		"post: https://example.test/widgets\n" +
		"mock:\n" +
		"  status: 201\n" +
		"  body: '{\"id\":\"w-1\"}'\n" +
		"  content_type: application/json\n" +
		"expect:\n" +
		"  status: 201\n" +
		"  values:\n" +
		"    - key: $.id\n" +
		"      op: exists\n" +
		"      store_as: widget_id\n" +
		"```\n"
	path := writeFile(t, dir, "widgets.resty", content)

	fs := Run(context.Background(), path, Options{DefaultTimeout: time.Second})
	if len(fs.Results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(fs.Results), fs.Results)
	}
	if fs.Results[0].Name != "create widget" {
		t.Fatalf("expected create widget to run first (dependency ordering), got %q", fs.Results[0].Name)
	}
	if fs.Results[0].Status != result.Passed {
		t.Fatalf("create widget failed: %s", fs.Results[0].Error)
	}
	if fs.Results[1].Status != result.Passed {
		t.Fatalf("fetch widget failed: %s", fs.Results[1].Error)
	}
}

func TestRunSkipsDisabledTests(t *testing.T) {
	dir := t.TempDir()
	content := "```yaml\n" +
		"test: skip me\n" +
		"disabled: true\n" +
		"get: https://example.test/x\n" +
		"```\n"
	path := writeFile(t, dir, "disabled.resty", content)

	fs := Run(context.Background(), path, Options{DefaultTimeout: time.Second})
	if len(fs.Results) != 1 || fs.Results[0].Status != result.Skipped {
		t.Fatalf("expected single skipped result, got %+v", fs.Results)
	}
}

func TestRunReportsFileLevelParseError(t *testing.T) {
	dir := t.TempDir()
	content := "```yaml\nunclosed\n"
	path := writeFile(t, dir, "broken.resty", content)

	fs := Run(context.Background(), path, Options{DefaultTimeout: time.Second})
	if len(fs.Results) != 1 || fs.Results[0].Status != result.Failed {
		t.Fatalf("expected a single failed synthetic result for a parse error, got %+v", fs.Results)
	}
}

func TestRunResolvesRequiresAcrossRestyInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.resty", "```yaml\n"+
		"test: create widget\n"+
		"post: https://example.test/widgets\n"+
		"mock:\n"+
		"  status: 201\n"+
		"  body: '{\"id\":\"w-1\"}'\n"+
		"```\n")
	path := writeFile(t, dir, "suite.resty", "```yaml\n"+
		"include: [base.resty]\n"+
		"```\n\n"+
		"```yaml\n"+
		"test: fetch widget\n"+
		"requires: [create widget]\n"+
		"get: https://example.test/widgets/1\n"+
		"mock:\n"+
		"  status: 200\n"+
		"  body: '{}'\n"+
		"```\n")

	fs := Run(context.Background(), path, Options{DefaultTimeout: time.Second})
	if len(fs.Results) != 2 {
		t.Fatalf("expected the included file's required test to run too, got %d results: %+v", len(fs.Results), fs.Results)
	}
	if fs.Results[0].Name != "create widget" || fs.Results[0].SourceFile == path {
		t.Errorf("expected create widget (from base.resty) to run first with its own source file, got %+v", fs.Results[0])
	}
	if fs.Results[1].Name != "fetch widget" {
		t.Errorf("expected fetch widget to run second, got %+v", fs.Results[1])
	}
	for _, r := range fs.Results {
		if r.Status != result.Passed {
			t.Errorf("expected %s to pass, got %s: %s", r.Name, r.Status, r.Error)
		}
	}
}

func TestRunDoesNotAutoRunIncludedTestsUnlessRequired(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.resty", "```yaml\n"+
		"test: unrelated included test\n"+
		"get: https://example.test/unrelated\n"+
		"mock:\n"+
		"  status: 200\n"+
		"```\n")
	path := writeFile(t, dir, "suite.resty", "```yaml\n"+
		"include: [base.resty]\n"+
		"```\n\n"+
		"```yaml\n"+
		"test: own test\n"+
		"get: https://example.test/own\n"+
		"mock:\n"+
		"  status: 200\n"+
		"```\n")

	fs := Run(context.Background(), path, Options{DefaultTimeout: time.Second})
	if len(fs.Results) != 1 || fs.Results[0].Name != "own test" {
		t.Fatalf("expected only the own-file test to run by default, got %+v", fs.Results)
	}
}

func TestRunFilterExpandsAgainstOwnFileTestNames(t *testing.T) {
	dir := t.TempDir()
	content := "```yaml\n" +
		"test: create widget\n" +
		"post: https://example.test/widgets\n" +
		"mock:\n" +
		"  status: 201\n" +
		"```\n\n" +
		"```yaml\n" +
		"test: delete widget\n" +
		"delete: https://example.test/widgets/1\n" +
		"mock:\n" +
		"  status: 204\n" +
		"```\n"
	path := writeFile(t, dir, "widgets.resty", content)

	fs := Run(context.Background(), path, Options{DefaultTimeout: time.Second, Filters: []string{"create"}})
	if len(fs.Results) != 1 || fs.Results[0].Name != "create widget" {
		t.Fatalf("expected --filter create to match create widget by substring, got %+v", fs.Results)
	}
}

func TestExpandSelectionMergesNamesAndFilterMatches(t *testing.T) {
	own := []string{"create widget", "delete widget", "list widgets"}
	got := expandSelection([]string{"delete widget"}, []string{"WIDGETS"}, own)
	want := map[string]bool{"delete widget": true, "list widgets": true}
	if len(got) != 2 {
		t.Fatalf("expandSelection = %v, want 2 entries", got)
	}
	for _, n := range got {
		if !want[n] {
			t.Errorf("unexpected selection entry %q", n)
		}
	}
}

func TestCheckUniqueTestNamesRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.resty", "```yaml\n"+
		"test: same name\n"+
		"get: https://example.test/a\n"+
		"mock:\n  status: 200\n"+
		"```\n")
	path := writeFile(t, dir, "suite.resty", "```yaml\n"+
		"include: [base.resty]\n"+
		"```\n\n"+
		"```yaml\n"+
		"test: same name\n"+
		"get: https://example.test/b\n"+
		"mock:\n  status: 200\n"+
		"```\n")

	fs := Run(context.Background(), path, Options{DefaultTimeout: time.Second})
	if len(fs.Results) != 1 || fs.Results[0].Status != result.Failed {
		t.Fatalf("expected a single failed synthetic result for a duplicate test name, got %+v", fs.Results)
	}
}

func TestDryRunResolvesWithoutSending(t *testing.T) {
	dir := t.TempDir()
	content := "```yaml\n" +
		"test: would send\n" +
		"variables:\n" +
		"  host: example.test\n" +
		"```\n\n" +
		"```yaml\n" +
		"test: dry run me\n" +
		"get: https://$host/ping\n" +
		"```\n"
	path := writeFile(t, dir, "dry.resty", content)

	fs := Run(context.Background(), path, Options{DefaultTimeout: time.Second, DryRun: true})
	if len(fs.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(fs.Results))
	}
	if fs.Results[0].Request.URL != "https://example.test/ping" {
		t.Fatalf("expected variable-resolved URL, got %q", fs.Results[0].Request.URL)
	}
}
