package block

import (
	"fmt"
	"strings"

	"github.com/restyrun/resty/internal/rerr"
	"gopkg.in/yaml.v3"
)

// rawYaml mirrors every recognised key across both variants; the decoder
// classifies into Config/Test after unmarshalling once. Using a single
// permissive struct (rather than trial-unmarshal-as-Test-then-as-Config)
// keeps method-shorthand detection in one place.
type rawYaml struct {
	// Config-only
	Include      []string          `yaml:"include"`
	Variables    map[string]string `yaml:"variables"`
	Mocks        []FileMock        `yaml:"mocks"`
	MocksFiles   []string          `yaml:"mocks_files"`
	Dependencies yaml.Node         `yaml:"dependencies"`
	OAuth2       *OAuth2Config     `yaml:"oauth2"`
	MinVersion   string            `yaml:"min_resty_version"`

	// Test-only
	Test        string            `yaml:"test"`
	Description string            `yaml:"description"`
	Headers     map[string]string `yaml:"headers"`
	Body        interface{}       `yaml:"body"`
	Extract     map[string]string `yaml:"extract"`
	Expect      *ExpectDefinition `yaml:"expect"`
	Requires    yaml.Node         `yaml:"requires"`
	Disabled    bool              `yaml:"disabled"`
	Retry       int               `yaml:"retry"`
	Timeout     int               `yaml:"timeout"`
	MockOnly    bool              `yaml:"mock_only"`
	Mock        *InlineMock       `yaml:"mock"`

	// Method shorthands; at most one may be set.
	Get     interface{} `yaml:"get"`
	Post    interface{} `yaml:"post"`
	Put     interface{} `yaml:"put"`
	Patch   interface{} `yaml:"patch"`
	Delete  interface{} `yaml:"delete"`
	Head    interface{} `yaml:"head"`
	Options interface{} `yaml:"options"`
}

// stringOrList decodes a YAML scalar or sequence-of-scalars into []string.
// An absent or explicitly empty node yields nil, never an empty non-nil
// slice, so callers can rely on `len(x) == 0` meaning "not specified".
func stringOrList(node yaml.Node) ([]string, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return nil, err
		}
		if s == "" {
			return nil, nil
		}
		return []string{s}, nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, nil
		}
		return list, nil
	default:
		return nil, fmt.Errorf("expected a scalar or list, got %v", node.Kind)
	}
}

// methodURL holds the method/url pair resolved from a shorthand key.
type methodURL struct {
	method string
	url    string
	found  bool
}

func (r rawYaml) resolveMethod() (methodURL, error) {
	candidates := map[string]interface{}{
		"get": r.Get, "post": r.Post, "put": r.Put, "patch": r.Patch,
		"delete": r.Delete, "head": r.Head, "options": r.Options,
	}
	var found []methodURL
	for _, name := range httpMethods {
		v := candidates[name]
		if v == nil {
			continue
		}
		url, ok := v.(string)
		if !ok {
			return methodURL{}, fmt.Errorf("method key %q must be a URL string", name)
		}
		found = append(found, methodURL{method: strings.ToUpper(name), url: url, found: true})
	}
	if len(found) > 1 {
		names := make([]string, len(found))
		for i, f := range found {
			names[i] = strings.ToLower(f.method)
		}
		return methodURL{}, fmt.Errorf("exactly one HTTP method key is allowed, found: %s", strings.Join(names, ", "))
	}
	if len(found) == 1 {
		return found[0], nil
	}
	return methodURL{}, nil
}

// Decode turns one fenced YAML body into a classified Block. source and line
// are carried through purely for error messages and TestResult provenance.
func Decode(source string, line int, text string) (*Block, error) {
	var raw rawYaml
	dec := yaml.NewDecoder(strings.NewReader(text))
	dec.KnownFields(false) // unknown keys are ignored per spec.md §4.1
	if err := dec.Decode(&raw); err != nil {
		return nil, rerr.Wrap(rerr.KindYamlDecode,
			fmt.Sprintf("%s:%d: invalid YAML block", source, line), err)
	}

	mu, err := raw.resolveMethod()
	if err != nil {
		return nil, rerr.Wrap(rerr.KindInvalidTest, fmt.Sprintf("%s:%d", source, line), err)
	}

	isTest := raw.Test != "" && (mu.found || raw.Mock != nil || raw.MockOnly)
	if !isTest {
		return decodeConfig(source, line, raw)
	}
	return decodeTest(source, line, raw, mu)
}

func decodeConfig(source string, line int, raw rawYaml) (*Block, error) {
	deps, err := stringOrList(raw.Dependencies)
	if err != nil {
		return nil, rerr.Wrap(rerr.KindYamlDecode, fmt.Sprintf("%s:%d: dependencies", source, line), err)
	}
	return &Block{
		Kind:   KindConfig,
		Line:   line,
		Source: source,
		Config: &Config{
			Include:         raw.Include,
			Variables:       raw.Variables,
			Mocks:           raw.Mocks,
			MocksFiles:      raw.MocksFiles,
			Dependencies:    deps,
			OAuth2:          raw.OAuth2,
			MinRestyVersion: raw.MinVersion,
		},
	}, nil
}

func decodeTest(source string, line int, raw rawYaml, mu methodURL) (*Block, error) {
	requires, err := stringOrList(raw.Requires)
	if err != nil {
		return nil, rerr.Wrap(rerr.KindYamlDecode, fmt.Sprintf("%s:%d: requires", source, line), err)
	}

	if raw.MockOnly && raw.Mock == nil && !mu.found {
		return nil, rerr.New(rerr.KindInvalidTest,
			fmt.Sprintf("%s:%d: test %q is mock_only but has no inline mock and no method+url to match file-level mocks", source, line, raw.Test))
	}
	if !mu.found && raw.Mock == nil {
		return nil, rerr.New(rerr.KindInvalidTest,
			fmt.Sprintf("%s:%d: test %q has no HTTP method and no inline mock", source, line, raw.Test))
	}

	t := &Test{
		Name:        raw.Test,
		Method:      mu.method,
		URL:         mu.url,
		Description: raw.Description,
		Headers:     normalizeHeaders(raw.Headers),
		Body:        raw.Body,
		Extract:     raw.Extract,
		Expect:      raw.Expect,
		Requires:    requires,
		Disabled:    raw.Disabled,
		Retry:       raw.Retry,
		Timeout:     raw.Timeout,
		MockOnly:    raw.MockOnly,
		Mock:        raw.Mock,
	}
	if t.Expect != nil {
		t.Expect.Headers = normalizeHeaders(t.Expect.Headers)
	}
	return &Block{Kind: KindTest, Line: line, Source: source, Test: t}, nil
}

// normalizeHeaders lower-cases keys so later case-insensitive lookups
// (spec.md §3: "Header names are case-insensitive") are plain map lookups.
func normalizeHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = v
	}
	return out
}

// ParseFile scans and decodes every YAML block in a Markdown file's text,
// returning them in document order with their start lines attached.
func ParseFile(source string, text string) ([]*Block, error) {
	raws, err := Scan(text)
	if err != nil {
		return nil, err
	}
	blocks := make([]*Block, 0, len(raws))
	for _, rb := range raws {
		b, err := Decode(source, rb.line, rb.text)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}
