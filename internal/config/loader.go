// Package config implements the external variables-file loader (spec.md
// §4.3): recursive includes with cycle detection, plus the optional
// oauth2/min-version enrichments from SPEC_FULL.md.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/restyrun/resty/internal/rerr"
	"gopkg.in/yaml.v3"
)

// externalFile is the shape of an include target: either a bare top-level
// mapping (treated as variables, with `include` pulled out if present), or
// an explicit {variables, include} mapping. yaml.v3 decodes both into the
// same struct because unrecognised keys fall into Extra via the catch-all.
type externalFile struct {
	Variables map[string]string `yaml:"variables"`
	Include   []string          `yaml:"include"`
	Extra     map[string]string `yaml:",inline"`
}

// Loader recursively resolves `include:` chains into a single flattened
// variable map, honouring the ordering rule from spec.md §4.3: nested
// includes are processed before the including file's own variables, so the
// includer wins on key collisions.
type Loader struct {
	stack     map[string]bool // currently-open files, for cycle detection
	processed map[string]bool
}

func NewLoader() *Loader {
	return &Loader{stack: map[string]bool{}, processed: map[string]bool{}}
}

// Load resolves path (and everything it transitively includes) into one
// merged variable map.
func (l *Loader) Load(path string) (map[string]string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return l.load(abs)
}

func (l *Loader) load(abs string) (map[string]string, error) {
	if l.stack[abs] {
		return nil, rerr.New(rerr.KindCircularInclude,
			fmt.Sprintf("circular include detected at %s", abs))
	}
	if l.processed[abs] {
		// Already fully loaded elsewhere in this run; nothing further to
		// merge, but this isn't an error — multiple files may legitimately
		// include a shared base file.
		return map[string]string{}, nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, rerr.Wrap(rerr.KindIncludeFileNotFound,
			fmt.Sprintf("include file not found: %s", abs), err)
	}

	var ext externalFile
	if err := yaml.Unmarshal(data, &ext); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", abs, err)
	}

	l.stack[abs] = true
	defer delete(l.stack, abs)

	dir := filepath.Dir(abs)
	merged := map[string]string{}
	for _, inc := range ext.Include {
		incPath := inc
		if !filepath.IsAbs(incPath) {
			incPath = filepath.Join(dir, incPath)
		}
		incVars, err := l.load(incPath)
		if err != nil {
			return nil, err
		}
		for k, v := range incVars {
			merged[k] = v
		}
	}

	// Files without an explicit `variables:` mapping treat every top-level
	// key (excluding `include`) as a variable.
	if ext.Variables != nil {
		for k, v := range ext.Variables {
			merged[k] = v
		}
	} else {
		for k, v := range ext.Extra {
			merged[k] = v
		}
	}

	l.processed[abs] = true
	return merged, nil
}
