// Package mock implements the Mock Engine (spec.md §4.6): inline/file/
// external mock matching, sequence progression, and response synthesis. As
// the design notes put it, this is a "maybe-produce-a-response" stage in
// front of the network call — its output has the same shape either way.
package mock

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/restyrun/resty/internal/block"
	"github.com/restyrun/resty/internal/vars"
)

// Response is the synthesized (or real) response shape shared with the
// network path, so the Request Executor treats both identically.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	DelayMs    int
}

// key identifies a mock-sequence counter: for file/external mocks it's
// (method, resolved URL); for inline mocks it's (source file, test name,
// "inline") per spec.md §3.
type key struct {
	a, b, c string
}

// Engine owns the sequence-position counters for the lifetime of one file's
// execution (spec.md §3: "Mock sequence counters live inside the Executor").
type Engine struct {
	mu        sync.Mutex
	positions map[key]int
}

func NewEngine() *Engine {
	return &Engine{positions: map[key]int{}}
}

// FileMockSet is the merged, last-wins view of a file's mocks, built once
// per file from Config blocks' inline mocks plus external mock files.
type FileMockSet struct {
	entries []resolvedFileMock
}

type resolvedFileMock struct {
	method string
	url    string
	resp   block.MockResponse
	seq    []block.MockResponse
}

// BuildFileMockSet merges external-file entries (loaded first) with inline
// Config `mocks:` entries (loaded second), matching spec.md §4.6 rule 2:
// external-file duplicates warn; scanning for a match runs last-to-first so
// the later definition always wins.
func BuildFileMockSet(blocks []*block.Block, baseDir string) (*FileMockSet, error) {
	set := &FileMockSet{}

	seenExternal := map[string]bool{}
	for _, b := range blocks {
		if b.Kind != block.KindConfig {
			continue
		}
		for _, path := range b.Config.MocksFiles {
			entries, err := loadExternalMockFile(resolvePath(baseDir, path))
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				dupKey := strings.ToUpper(e.Method) + " " + e.URL
				if seenExternal[dupKey] {
					fmt.Fprintf(os.Stderr, "warning: duplicate external mock entry for %s\n", dupKey)
				}
				seenExternal[dupKey] = true
				set.entries = append(set.entries, resolvedFileMock{
					method: strings.ToUpper(e.Method),
					url:    e.URL,
					resp: block.MockResponse{
						Status: e.Status, Headers: e.Headers, Body: e.Body,
						ContentType: e.ContentType, DelayMs: e.DelayMs,
					},
					seq: e.Sequence,
				})
			}
		}
	}

	for _, b := range blocks {
		if b.Kind != block.KindConfig {
			continue
		}
		for _, m := range b.Config.Mocks {
			set.entries = append(set.entries, resolvedFileMock{
				method: strings.ToUpper(m.Method),
				url:    m.URL,
				resp:   m.Response(),
				seq:    m.Sequence,
			})
		}
	}
	return set, nil
}

func resolvePath(baseDir, path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return baseDir + string(os.PathSeparator) + path
}

func loadExternalMockFile(path string) ([]block.ExternalMockEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read external mock file %s: %w", path, err)
	}
	var entries []block.ExternalMockEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse external mock file %s: %w", path, err)
	}
	return entries, nil
}

// Enabled reports whether mocking applies to this test at all, per spec.md
// §4.6's enabling rule.
func Enabled(t *block.Test, globalMockFlag bool, set *FileMockSet) bool {
	if t.Mock != nil {
		return true
	}
	if t.MockOnly {
		return true
	}
	if globalMockFlag {
		return true
	}
	return set != nil && len(set.entries) > 0
}

// Serve produces a mocked response for the test, or (matched=false) when no
// mock applies and the caller should fall through to the network.
func (e *Engine) Serve(sourceFile string, t *block.Test, set *FileMockSet, store *vars.Store) (resp Response, matched bool, err error) {
	if t.Mock != nil {
		mr, seqErr := e.pick(key{sourceFile, t.Name, "inline"}, t.Mock.MockResponse, t.Mock.Sequence)
		if seqErr != nil {
			return Response{}, false, seqErr
		}
		resp, err = synthesize(mr, store)
		return resp, true, err
	}

	method := strings.ToUpper(t.Method)
	resolvedURL, resolveErr := store.Resolve(t.URL)
	if resolveErr != nil {
		return Response{}, false, resolveErr
	}

	if set != nil {
		for i := len(set.entries) - 1; i >= 0; i-- {
			fm := set.entries[i]
			resolvedEntryURL, rerr := store.Resolve(fm.url)
			if rerr != nil {
				continue
			}
			if strings.ToUpper(fm.method) != method || resolvedEntryURL != resolvedURL {
				continue
			}
			mr, seqErr := e.pick(key{method, resolvedURL, ""}, fm.resp, fm.seq)
			if seqErr != nil {
				return Response{}, false, seqErr
			}
			resp, err = synthesize(mr, store)
			return resp, true, err
		}
	}
	return Response{}, false, nil
}

// pick returns the n-th sequence element (sticky on the last) on the n-th
// call for this key, or the base response when there is no sequence.
func (e *Engine) pick(k key, base block.MockResponse, seq []block.MockResponse) (block.MockResponse, error) {
	if len(seq) == 0 {
		return base, nil
	}
	e.mu.Lock()
	pos := e.positions[k]
	e.positions[k] = pos + 1
	e.mu.Unlock()

	idx := pos
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	elem := seq[idx]
	if elem.DelayMs == 0 {
		elem.DelayMs = base.DelayMs
	}
	if elem.ContentType == "" {
		elem.ContentType = base.ContentType
	}
	if elem.Headers == nil {
		elem.Headers = base.Headers
	}
	return elem, nil
}

// synthesize renders a MockResponse into the wire Response shape per
// spec.md §4.6: status defaults to 200; string bodies are resolved and sent
// as text/plain unless overridden; structured bodies are deep-resolved and
// serialised to JSON; nil bodies send an empty string.
func synthesize(mr block.MockResponse, store *vars.Store) (Response, error) {
	status := 200
	if mr.Status != nil {
		status = *mr.Status
	}

	headers := map[string]string{}
	for k, v := range mr.Headers {
		resolved, err := store.Resolve(v)
		if err != nil {
			return Response{}, err
		}
		headers[strings.ToLower(k)] = resolved
	}

	var bodyStr string
	defaultContentType := "text/plain"
	switch b := mr.Body.(type) {
	case nil:
		bodyStr = ""
	case string:
		resolved, err := store.Resolve(b)
		if err != nil {
			return Response{}, err
		}
		bodyStr = resolved
	default:
		resolved, err := store.ResolveDeep(b)
		if err != nil {
			return Response{}, err
		}
		out, err := json.Marshal(resolved)
		if err != nil {
			return Response{}, fmt.Errorf("failed to serialise mock body: %w", err)
		}
		bodyStr = string(out)
		defaultContentType = "application/json"
	}

	if _, ok := headers["content-type"]; !ok {
		if mr.ContentType != "" {
			headers["content-type"] = mr.ContentType
		} else {
			headers["content-type"] = defaultContentType
		}
	}

	return Response{
		StatusCode: status,
		Headers:    headers,
		Body:       []byte(bodyStr),
		DelayMs:    mr.DelayMs,
	}, nil
}
