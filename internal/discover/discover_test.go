package discover

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte("# x\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestFilesFiltersExtensionsRecursively(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.resty"))
	touch(t, filepath.Join(dir, "b.rest"))
	touch(t, filepath.Join(dir, "notes.md"))
	touch(t, filepath.Join(dir, "nested", "c.resty"))

	got, err := Files([]string{dir}, true)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 test files, got %d: %v", len(got), got)
	}
}

func TestFilesNonRecursiveSkipsNestedDirs(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.resty"))
	touch(t, filepath.Join(dir, "nested", "c.resty"))

	got, err := Files([]string{dir}, false)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 top-level test file, got %d: %v", len(got), got)
	}
}

func TestFilesIncludesExplicitFileRegardlessOfExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weird.txt")
	touch(t, path)

	got, err := Files([]string{path}, true)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(got) != 1 || got[0] != path {
		t.Fatalf("expected explicit file to be included, got %v", got)
	}
}
