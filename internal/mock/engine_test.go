package mock

import (
	"testing"

	"github.com/restyrun/resty/internal/block"
	"github.com/restyrun/resty/internal/vars"
)

func statusPtr(n int) *int { return &n }

func TestEnabledRules(t *testing.T) {
	if Enabled(&block.Test{}, false, nil) {
		t.Error("expected a plain test with no mock to be disabled")
	}
	if !Enabled(&block.Test{Mock: &block.InlineMock{}}, false, nil) {
		t.Error("expected an inline mock to enable mocking")
	}
	if !Enabled(&block.Test{MockOnly: true}, false, nil) {
		t.Error("expected mock_only to enable mocking")
	}
	if !Enabled(&block.Test{}, true, nil) {
		t.Error("expected the global flag to enable mocking")
	}
}

func TestServeInlineMockReturnsSynthesizedResponse(t *testing.T) {
	e := NewEngine()
	store := vars.New()
	test := &block.Test{
		Name: "create widget",
		Mock: &block.InlineMock{MockResponse: block.MockResponse{Status: statusPtr(201), Body: map[string]interface{}{"id": 1}}},
	}

	resp, matched, err := e.Serve("f.resty", test, nil, store)
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if !matched {
		t.Fatal("expected inline mock to match")
	}
	if resp.StatusCode != 201 {
		t.Errorf("StatusCode = %d, want 201", resp.StatusCode)
	}
	if resp.Headers["content-type"] != "application/json" {
		t.Errorf("expected structured body to default to application/json, got %q", resp.Headers["content-type"])
	}
}

func TestServeFallsThroughWhenNoMockMatches(t *testing.T) {
	e := NewEngine()
	store := vars.New()
	test := &block.Test{Name: "plain", Method: "GET", URL: "http://example.test/x"}

	_, matched, err := e.Serve("f.resty", test, &FileMockSet{}, store)
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if matched {
		t.Error("expected no match against an empty mock set")
	}
}

func TestSequenceProgressesAndSticksOnLast(t *testing.T) {
	e := NewEngine()
	store := vars.New()
	test := &block.Test{
		Name: "flaky",
		Mock: &block.InlineMock{
			MockResponse: block.MockResponse{Status: statusPtr(200)},
			Sequence: []block.MockResponse{
				{Status: statusPtr(500)},
				{Status: statusPtr(200)},
			},
		},
	}

	first, _, _ := e.Serve("f.resty", test, nil, store)
	second, _, _ := e.Serve("f.resty", test, nil, store)
	third, _, _ := e.Serve("f.resty", test, nil, store)

	if first.StatusCode != 500 || second.StatusCode != 200 || third.StatusCode != 200 {
		t.Errorf("sequence statuses = %d, %d, %d, want 500, 200, 200", first.StatusCode, second.StatusCode, third.StatusCode)
	}
}

func TestBuildFileMockSetMergesExternalAndInlineMocks(t *testing.T) {
	blocks := []*block.Block{
		{
			Kind: block.KindConfig,
			Config: &block.Config{
				Mocks: []block.FileMock{
					{Method: "GET", URL: "http://example.test/widgets", Status: statusPtr(200)},
				},
			},
		},
	}
	set, err := BuildFileMockSet(blocks, t.TempDir())
	if err != nil {
		t.Fatalf("BuildFileMockSet: %v", err)
	}
	if len(set.entries) != 1 {
		t.Fatalf("expected 1 merged entry, got %d", len(set.entries))
	}

	store := vars.New()
	test := &block.Test{Name: "list widgets", Method: "GET", URL: "http://example.test/widgets"}
	resp, matched, err := NewEngine().Serve("f.resty", test, set, store)
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if !matched || resp.StatusCode != 200 {
		t.Errorf("expected file mock to match with status 200, got matched=%v status=%d", matched, resp.StatusCode)
	}
}
