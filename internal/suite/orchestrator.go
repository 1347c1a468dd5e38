// Package suite implements the Suite Orchestrator (spec.md §4.8): per-file
// parse, include loading (both variable includes and cross-file test
// includes), dependency resolution, and the ordered walk that drives the
// Request Executor and assembles a FileSuite.
package suite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/restyrun/resty/internal/block"
	"github.com/restyrun/resty/internal/config"
	"github.com/restyrun/resty/internal/depgraph"
	"github.com/restyrun/resty/internal/exec"
	"github.com/restyrun/resty/internal/mock"
	"github.com/restyrun/resty/internal/rerr"
	"github.com/restyrun/resty/internal/result"
	"github.com/restyrun/resty/internal/vars"
)

// Options carries the CLI-level knobs that affect every file in a run.
type Options struct {
	DefaultTimeout  time.Duration
	TimeoutOverride time.Duration
	GlobalMock      bool
	RateLimitRPS    float64  // 0 disables
	Select          []string // -t/--test exact names
	Filters         []string // -f/--filter substrings, matched case-insensitively against the file's own test names
	DryRun          bool
}

// Run parses and executes one .resty/.rest file, returning its FileSuite.
// Files that fail to parse or resolve short-circuit with a single synthetic
// failing result, matching spec.md §4.8's "a file-level error fails the
// whole file, not individual tests" rule.
func Run(ctx context.Context, path string, opts Options) result.FileSuite {
	fs := result.FileSuite{Path: path}

	text, err := os.ReadFile(path)
	if err != nil {
		return fileError(path, rerr.Wrap(rerr.KindIncludeFileNotFound, "failed to read "+path, err))
	}

	ownBlocks, err := block.ParseFile(path, string(text))
	if err != nil {
		return fileError(path, err)
	}

	store := vars.New()
	baseDir := filepath.Dir(path)

	// §4.8 step 2: `.yaml`/`.yml` includes feed the included variable layer.
	// §4.8 step 3: `.rest`/`.resty` includes are parsed and their blocks
	// collected into an enlarged block set, each carrying its own origin
	// file/line via block.ParseFile's source argument.
	includedVars, crossFileBlocks, err := loadIncludes(ownBlocks, baseDir)
	if err != nil {
		return fileError(path, err)
	}
	store.SetIncluded(includedVars)

	allBlocks := make([]*block.Block, 0, len(ownBlocks)+len(crossFileBlocks))
	allBlocks = append(allBlocks, ownBlocks...)
	allBlocks = append(allBlocks, crossFileBlocks...)

	if err := checkUniqueTestNames(allBlocks); err != nil {
		return fileError(path, err)
	}

	if err := applyOAuth2(ctx, allBlocks, store); err != nil {
		return fileError(path, err)
	}

	for _, b := range allBlocks {
		if b.Kind == block.KindConfig && b.Config.Variables != nil {
			store.UpdateFile(b.Config.Variables)
		}
	}

	if err := checkMinVersion(ownBlocks); err != nil {
		return fileError(path, err)
	}

	mockSet, err := mock.BuildFileMockSet(allBlocks, baseDir)
	if err != nil {
		return fileError(path, err)
	}

	nodes := depgraph.MergeConfigDependencies(allBlocks)
	resolver, err := depgraph.NewResolver(nodes)
	if err != nil {
		return fileError(path, err)
	}

	// §4.8 step 4: the Resolver always runs over the full (own + included)
	// block set, but its roots are the file's own tests by default, or the
	// selection/filter expansion when one is given — never every node in
	// the enlarged set, so an included file's tests only run when pulled in
	// through `requires`.
	var ownNames []string
	for _, b := range ownBlocks {
		if b.Kind == block.KindTest {
			ownNames = append(ownNames, b.Test.Name)
		}
	}

	var order []string
	if len(opts.Select) == 0 && len(opts.Filters) == 0 {
		order, err = resolver.Resolve(ownNames)
	} else if roots := expandSelection(opts.Select, opts.Filters, ownNames); len(roots) > 0 {
		order, err = resolver.Resolve(roots)
	}
	if err != nil {
		return fileError(path, err)
	}

	byName := make(map[string]*block.Block, len(allBlocks))
	for _, b := range allBlocks {
		if b.Kind == block.KindTest {
			byName[b.Test.Name] = b
		}
	}

	execOpts := exec.Options{
		DefaultTimeout:  opts.DefaultTimeout,
		TimeoutOverride: opts.TimeoutOverride,
		GlobalMock:      opts.GlobalMock,
	}
	if opts.RateLimitRPS > 0 {
		execOpts.RateLimiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}
	runner := exec.New(execOpts)

	for _, name := range order {
		b, ok := byName[name]
		if !ok {
			continue // a root-only selection can list a name with no Test block reachable
		}
		t := b.Test

		if t.Disabled {
			fs.Results = append(fs.Results, result.TestResult{
				SourceFile: b.Source, Line: b.Line, Name: t.Name, Status: result.Skipped,
			})
			continue
		}
		if opts.DryRun {
			fs.Results = append(fs.Results, dryRunResult(b.Source, b.Line, t, store))
			continue
		}

		tr := runner.Run(ctx, b.Source, b.Line, t, store, mockSet)
		fs.Results = append(fs.Results, tr)

		if tr.Status == result.Passed {
			store.SetCaptured(tr.Extracted)
		}
	}

	return fs
}

// expandSelection merges exact --test names with --filter patterns expanded
// against the file's own test names (case-insensitive substring match),
// per spec.md §4.8 step 4: "pattern matches are computed from the own-file
// tests only."
func expandSelection(names, patterns, ownNames []string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, n := range names {
		add(n)
	}
	for _, p := range patterns {
		pl := strings.ToLower(p)
		for _, own := range ownNames {
			if strings.Contains(strings.ToLower(own), pl) {
				add(own)
			}
		}
	}
	return out
}

// checkUniqueTestNames enforces spec.md §3's "Test names are unique within
// the effective block set (file plus included .rest/.resty files)".
func checkUniqueTestNames(blocks []*block.Block) error {
	firstSeenAt := map[string]string{}
	for _, b := range blocks {
		if b.Kind != block.KindTest {
			continue
		}
		loc := fmt.Sprintf("%s:%d", b.Source, b.Line)
		if prev, ok := firstSeenAt[b.Test.Name]; ok {
			return rerr.New(rerr.KindInvalidTest,
				fmt.Sprintf("duplicate test name %q at %s (first defined at %s)", b.Test.Name, loc, prev))
		}
		firstSeenAt[b.Test.Name] = loc
	}
	return nil
}

// dryRunResult resolves variables and reports what would be sent, without
// making a request or consulting a mock (spec.md §6.2 --dry-run).
func dryRunResult(path string, line int, t *block.Test, store *vars.Store) result.TestResult {
	tr := result.TestResult{SourceFile: path, Line: line, Name: t.Name, Status: result.Skipped}
	url, err := store.Resolve(t.URL)
	if err != nil {
		tr.Error = err.Error()
		return tr
	}
	headers := map[string]string{}
	for k, v := range t.Headers {
		rv, err := store.Resolve(v)
		if err != nil {
			tr.Error = err.Error()
			return tr
		}
		headers[k] = rv
	}
	body, err := store.ResolveBody(headers["content-type"], t.Body)
	if err != nil {
		tr.Error = err.Error()
		return tr
	}
	tr.Request = result.RequestInfo{Method: t.Method, URL: url, Headers: headers, Body: body}
	return tr
}

// loadIncludes walks every Config block's `include:` list, dispatching each
// entry by extension: `.yaml`/`.yml` entries merge into the included
// variable layer (spec.md §4.8 step 2, via the Config Loader); `.resty`/
// `.rest` entries are parsed and their blocks collected into an enlarged
// block set (step 3), recursing into their own Config includes the same
// way. A visited-path set prevents re-parsing (or cycling through) a
// `.resty`/`.rest` file reachable by more than one include chain.
func loadIncludes(blocks []*block.Block, baseDir string) (map[string]string, []*block.Block, error) {
	yamlLoader := config.NewLoader()
	mergedVars := map[string]string{}
	var crossBlocks []*block.Block
	visitedResty := map[string]bool{}

	var walk func(bs []*block.Block, dir string) error
	walk = func(bs []*block.Block, dir string) error {
		for _, b := range bs {
			if b.Kind != block.KindConfig {
				continue
			}
			for _, inc := range b.Config.Include {
				path := inc
				if !filepath.IsAbs(path) {
					path = filepath.Join(dir, path)
				}

				switch strings.ToLower(filepath.Ext(path)) {
				case ".yaml", ".yml":
					incVars, err := yamlLoader.Load(path)
					if err != nil {
						return err
					}
					for k, v := range incVars {
						mergedVars[k] = v
					}

				case ".resty", ".rest":
					abs, err := filepath.Abs(path)
					if err != nil {
						return err
					}
					if visitedResty[abs] {
						continue
					}
					visitedResty[abs] = true

					text, err := os.ReadFile(path)
					if err != nil {
						return rerr.Wrap(rerr.KindIncludeFileNotFound,
							"included test file not found: "+path, err)
					}
					incBlocks, err := block.ParseFile(path, string(text))
					if err != nil {
						return err
					}
					crossBlocks = append(crossBlocks, incBlocks...)
					if err := walk(incBlocks, filepath.Dir(path)); err != nil {
						return err
					}

				default:
					return rerr.New(rerr.KindIncludeFileNotFound,
						fmt.Sprintf("include %q has an unrecognised extension (expected .yaml, .yml, .resty, or .rest)", inc))
				}
			}
		}
		return nil
	}

	if err := walk(blocks, baseDir); err != nil {
		return nil, nil, err
	}
	return mergedVars, crossBlocks, nil
}

// checkMinVersion enforces a Config block's `min_resty_version:` against the
// running binary's Version (SPEC_FULL.md's semver gating enrichment; the
// blang/semver comparison lives in requireVersion in version.go).
func checkMinVersion(blocks []*block.Block) error {
	for _, b := range blocks {
		if b.Kind == block.KindConfig && b.Config.MinRestyVersion != "" {
			if err := requireVersion(b.Config.MinRestyVersion); err != nil {
				return err
			}
		}
	}
	return nil
}

func fileError(path string, err error) result.FileSuite {
	return result.FileSuite{
		Path: path,
		Results: []result.TestResult{
			{SourceFile: path, Status: result.Failed, Error: err.Error(), Cause: err},
		},
	}
}
