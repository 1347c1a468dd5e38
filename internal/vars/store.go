// Package vars implements the four-layer variable store and the $name /
// $env:NAME substitution rules of spec.md §4.2.
package vars

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/restyrun/resty/internal/rerr"
)

// Layer names a precedence tier, lowest to highest.
type Layer string

const (
	LayerEnvironment Layer = "Environment"
	LayerIncluded    Layer = "Included"
	LayerFile        Layer = "File"
	LayerCaptured    Layer = "Captured"
)

var identPattern = regexp.MustCompile(`\$env:([A-Za-z_][A-Za-z0-9_]*)|\$([A-Za-z_][A-Za-z0-9_]*)`)

// Store is the four-layer precedence map described in spec.md §3. It is
// owned exclusively by the Orchestrator for one file-suite run and is never
// shared across goroutines without external synchronisation — each file
// gets its own Store (spec.md §5).
type Store struct {
	included map[string]string
	file     map[string]string
	captured map[string]string
}

// New returns an empty Store. The environment layer is read lazily from
// os.Getenv and is never cached, so callers that mutate the process
// environment between tests observe the change on the next resolve.
func New() *Store {
	return &Store{
		included: map[string]string{},
		file:     map[string]string{},
		captured: map[string]string{},
	}
}

// SetIncluded replaces the included layer wholesale (loaded once by the
// Config Loader before the file's own Config blocks run).
func (s *Store) SetIncluded(m map[string]string) {
	s.included = cloneMap(m)
}

// MergeIncluded merges into the included layer, overwriting on key
// collision. Used for values discovered after the initial include load,
// such as an oauth2 client-credentials token.
func (s *Store) MergeIncluded(m map[string]string) {
	for k, v := range m {
		s.included[k] = v
	}
}

// UpdateFile merges into the file layer; later keys win over earlier ones
// from prior Config blocks in the same file.
func (s *Store) UpdateFile(m map[string]string) {
	for k, v := range m {
		s.file[k] = v
	}
}

// SetCaptured merges into the captured layer (from a test's extractors/
// store_as captures).
func (s *Store) SetCaptured(m map[string]string) {
	for k, v := range m {
		s.captured[k] = v
	}
}

// Get looks up name across layers, highest precedence first: captured, file,
// included, environment.
func (s *Store) Get(name string) (string, bool) {
	if v, ok := s.captured[name]; ok {
		return v, true
	}
	if v, ok := s.file[name]; ok {
		return v, true
	}
	if v, ok := s.included[name]; ok {
		return v, true
	}
	if v, ok := os.LookupEnv(name); ok {
		return v, true
	}
	return "", false
}

// Resolve performs the two ordered substitution passes from spec.md §4.2:
// first every $env:IDENT, then every plain $IDENT, skipping identifiers that
// were the tail of an already-replaced $env:IDENT occurrence.
func (s *Store) Resolve(text string) (string, error) {
	// Pass 1: $env:IDENT. Plain $IDENT matches are returned unchanged for
	// pass 2.
	var missingEnv string
	replaced := false
	afterEnv := identPattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := identPattern.FindStringSubmatch(m)
		if sub[1] == "" {
			return m // not an $env: occurrence, leave for pass 2
		}
		name := sub[1]
		v, ok := os.LookupEnv(name)
		if !ok {
			missingEnv = name
			return m
		}
		replaced = true
		return v
	})
	if missingEnv != "" {
		return "", rerr.New(rerr.KindVariableNotFound,
			fmt.Sprintf("environment variable %q not found (referenced as $env:%s)", missingEnv, missingEnv))
	}
	_ = replaced

	// Pass 2: plain $IDENT. Since pass 1 already substituted $env:IDENT
	// occurrences in place, any remaining "$IDENT" cannot be the tail of an
	// env reference (the literal "$env:" prefix is gone), so a single
	// left-to-right scan is sufficient.
	var missingVar string
	out := identPattern.ReplaceAllStringFunc(afterEnv, func(m string) string {
		sub := identPattern.FindStringSubmatch(m)
		if sub[1] != "" {
			return m // already handled as $env:
		}
		name := sub[2]
		v, ok := s.Get(name)
		if !ok {
			missingVar = name
			return m
		}
		return v
	})
	if missingVar != "" {
		return "", rerr.New(rerr.KindVariableNotFound,
			fmt.Sprintf("variable $%s not found. %s", missingVar, s.availableHint()))
	}
	return out, nil
}

// ResolveDeep walks maps, slices, and scalars, resolving every string leaf.
// Numbers and booleans pass through untouched.
func (s *Store) ResolveDeep(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case string:
		return s.Resolve(val)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			rv, err := s.ResolveDeep(vv)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, vv := range val {
			rv, err := s.ResolveDeep(vv)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

// Snapshot returns name -> (value, layer) for included/file/captured only;
// environment is deliberately excluded (spec.md §4.2) to avoid leaking
// process-global state into reports.
type Snapshot map[string]SnapshotEntry

type SnapshotEntry struct {
	Value string
	Layer Layer
}

func (s *Store) Snapshot() Snapshot {
	snap := make(Snapshot, len(s.included)+len(s.file)+len(s.captured))
	for k, v := range s.included {
		snap[k] = SnapshotEntry{v, LayerIncluded}
	}
	for k, v := range s.file {
		snap[k] = SnapshotEntry{v, LayerFile}
	}
	for k, v := range s.captured {
		snap[k] = SnapshotEntry{v, LayerCaptured}
	}
	return snap
}

func (s *Store) availableHint() string {
	names := make([]string, 0, len(s.included)+len(s.file)+len(s.captured))
	for k := range s.included {
		names = append(names, k)
	}
	for k := range s.file {
		names = append(names, k)
	}
	for k := range s.captured {
		names = append(names, k)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "Available variables: (none)"
	}
	return "Available variables: " + strings.Join(names, ", ")
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
