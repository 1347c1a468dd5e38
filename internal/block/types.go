// Package block implements the Markdown/YAML block scanner and decoder
// (spec.md §4.1): extracting fenced ```yaml blocks from a .resty/.rest file
// and decoding each into a tagged Config or Test variant.
package block

// Kind discriminates the two YamlBlock variants.
type Kind int

const (
	KindConfig Kind = iota
	KindTest
)

// httpMethods are the recognised shorthand keys, also used directly as the
// resolved HTTP method.
var httpMethods = []string{"get", "post", "put", "patch", "delete", "head", "options"}

// Block is the decoded, normalised form of one fenced YAML section. Exactly
// one of Config/Test is populated, selected by Kind.
type Block struct {
	Kind   Kind
	Line   int // 1-based start line of the fence's opening line
	Source string
	Config *Config
	Test   *Test
}

// Config is a non-test block: it contributes includes, variables, file-level
// mocks, external mock-file references, and Config-level dependencies.
type Config struct {
	Include          []string          `yaml:"include,omitempty"`
	Variables        map[string]string `yaml:"variables,omitempty"`
	Mocks            []FileMock        `yaml:"mocks,omitempty"`
	MocksFiles       []string          `yaml:"mocks_files,omitempty"`
	Dependencies     []string          `yaml:"dependencies,omitempty"`
	OAuth2           *OAuth2Config     `yaml:"oauth2,omitempty"`
	MinRestyVersion  string            `yaml:"min_resty_version,omitempty"`
}

// OAuth2Config drives the optional client-credentials token fetch described
// in SPEC_FULL.md's "oauth2: Config section".
type OAuth2Config struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	TokenURL     string   `yaml:"token_url"`
	Scopes       []string `yaml:"scopes,omitempty"`
	SaveAs       string   `yaml:"save_as,omitempty"` // default "oauth_token"
}

// Test is a single HTTP test case.
type Test struct {
	Name        string            `yaml:"test"`
	Method      string            // normalised, upper-case
	URL         string            // may contain $vars
	Description string            `yaml:"description,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	Body        interface{}       `yaml:"body,omitempty"`
	Extract     map[string]string `yaml:"extract,omitempty"`
	Expect      *ExpectDefinition `yaml:"expect,omitempty"`
	Requires    []string          `yaml:"requires,omitempty"`
	Disabled    bool              `yaml:"disabled,omitempty"`
	Retry       int               `yaml:"retry,omitempty"`
	Timeout     int               `yaml:"timeout,omitempty"` // seconds
	MockOnly    bool              `yaml:"mock_only,omitempty"`
	Mock        *InlineMock       `yaml:"mock,omitempty"`
}

// ExpectDefinition is the declarative response assertion (spec.md §3).
type ExpectDefinition struct {
	Status  *int               `yaml:"status,omitempty"`
	Headers map[string]string  `yaml:"headers,omitempty"`
	Values  []ValueExpectation `yaml:"values,omitempty"`
}

// ValueExpectation is one JSON-value assertion rule.
type ValueExpectation struct {
	Key         string      `yaml:"key"`
	Op          string      `yaml:"op"`
	Value       interface{} `yaml:"value,omitempty"`
	StoreAs     string      `yaml:"store_as,omitempty"`
	IgnoreCase  *bool       `yaml:"ignore_case,omitempty"`
}

// IgnoreCaseOrDefault returns the effective ignore_case, default true.
func (v ValueExpectation) IgnoreCaseOrDefault() bool {
	if v.IgnoreCase == nil {
		return true
	}
	return *v.IgnoreCase
}

// MockResponse is one synthesized response, used both as the top-level shape
// of InlineMock/FileMock and as an element of a Sequence.
type MockResponse struct {
	Status      *int              `yaml:"status,omitempty" json:"status,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body        interface{}       `yaml:"body,omitempty" json:"body,omitempty"`
	ContentType string            `yaml:"content_type,omitempty" json:"content_type,omitempty"`
	DelayMs     int               `yaml:"delay_ms,omitempty" json:"delay_ms,omitempty"`
}

// InlineMock is a test's own `mock:` definition — always wins over file/
// external mocks for that test (spec.md §4.6 rule 1).
type InlineMock struct {
	MockResponse `yaml:",inline"`
	Sequence     []MockResponse `yaml:"sequence,omitempty"`
}

// FileMock is a Config block's file-level mock; it additionally carries the
// method+url it matches against.
type FileMock struct {
	Method   string         `yaml:"method"`
	URL      string         `yaml:"url"`
	Status   *int           `yaml:"status,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`
	Body     interface{}    `yaml:"body,omitempty"`
	ContentType string      `yaml:"content_type,omitempty"`
	DelayMs  int            `yaml:"delay_ms,omitempty"`
	Sequence []MockResponse `yaml:"sequence,omitempty"`
}

// Response returns the FileMock's own fields as a MockResponse, for reuse by
// the shared mock-serving code path.
func (f FileMock) Response() MockResponse {
	return MockResponse{
		Status:      f.Status,
		Headers:     f.Headers,
		Body:        f.Body,
		ContentType: f.ContentType,
		DelayMs:     f.DelayMs,
	}
}

// ExternalMockEntry is one element of an external `.json` mock file
// (spec.md §6.1).
type ExternalMockEntry struct {
	Method      string         `json:"method"`
	URL         string         `json:"url"`
	Status      *int           `json:"status,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        interface{}    `json:"body,omitempty"`
	ContentType string         `json:"content_type,omitempty"`
	DelayMs     int            `json:"delay_ms,omitempty"`
	Sequence    []MockResponse `json:"sequence,omitempty"`
}
