// Package discover walks CLI-supplied paths to find test files, per
// SPEC_FULL.md's discovery collaborator: extension filtering plus an
// optional recursive walk.
package discover

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var testExtensions = map[string]bool{
	".resty": true,
	".rest":  true,
}

// Files resolves one or more CLI paths (files or directories) into a sorted,
// deduplicated list of test file paths. Directories are walked recursively
// when recursive is true, and non-recursively (immediate children only)
// otherwise. A path pointing directly at a file is always included,
// regardless of its extension — the user asked for it explicitly.
func Files(paths []string, recursive bool) ([]string, error) {
	seen := map[string]bool{}
	var out []string

	add := func(p string) {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if !seen[abs] {
			seen[abs] = true
			out = append(out, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		if recursive {
			if err := filepath.Walk(p, func(path string, fi os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !fi.IsDir() && isTestFile(path) {
					add(path)
				}
				return nil
			}); err != nil {
				return nil, err
			}
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && isTestFile(e.Name()) {
				add(filepath.Join(p, e.Name()))
			}
		}
	}

	sort.Strings(out)
	return out, nil
}

func isTestFile(path string) bool {
	return testExtensions[strings.ToLower(filepath.Ext(path))]
}
