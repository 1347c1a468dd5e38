package exec

import (
	"context"
	"testing"
	"time"

	"github.com/restyrun/resty/internal/block"
	"github.com/restyrun/resty/internal/mock"
	"github.com/restyrun/resty/internal/result"
	"github.com/restyrun/resty/internal/vars"
)

func statusPtr(n int) *int { return &n }

func TestBackoffForCapsAtThirtySeconds(t *testing.T) {
	cases := map[int]time.Duration{
		1: 1000 * time.Millisecond,
		2: 2000 * time.Millisecond,
		3: 4000 * time.Millisecond,
		6: 30000 * time.Millisecond, // 32s would overflow the cap
		9: 30000 * time.Millisecond,
	}
	for attempt, want := range cases {
		if got := backoffFor(attempt); got != want {
			t.Errorf("backoffFor(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestRunServesInlineMockWithoutNetwork(t *testing.T) {
	ex := New(Options{DefaultTimeout: time.Second})
	store := vars.New()

	status := 201
	test := &block.Test{
		Name:   "create widget",
		Method: "POST",
		URL:    "https://example.test/widgets",
		Mock: &block.InlineMock{
			MockResponse: block.MockResponse{Status: &status, Body: `{"id":"w1"}`, ContentType: "application/json"},
		},
		Expect: &block.ExpectDefinition{
			Status: statusPtr(201),
			Values: []block.ValueExpectation{{Key: "$.id", Op: "eq", Value: "w1"}},
		},
	}

	tr := ex.Run(context.Background(), "widgets.resty", 10, test, store, nil)
	if tr.Status != result.Passed {
		t.Fatalf("expected pass, got %s: %s", tr.Status, tr.Error)
	}
	if tr.StatusCode != 201 {
		t.Fatalf("expected status 201, got %d", tr.StatusCode)
	}
}

func TestRunMockOnlyWithoutMatchFails(t *testing.T) {
	ex := New(Options{DefaultTimeout: time.Second})
	store := vars.New()

	test := &block.Test{
		Name:     "orphaned mock_only test",
		Method:   "GET",
		URL:      "https://example.test/nope",
		MockOnly: true,
	}

	set, err := mock.BuildFileMockSet(nil, ".")
	if err != nil {
		t.Fatalf("BuildFileMockSet: %v", err)
	}

	tr := ex.Run(context.Background(), "widgets.resty", 5, test, store, set)
	if tr.Status != result.Failed {
		t.Fatalf("expected failure for unmatched mock_only test, got %s", tr.Status)
	}
}

func TestRunRespectsCancelledContext(t *testing.T) {
	ex := New(Options{DefaultTimeout: time.Second})
	store := vars.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	test := &block.Test{Name: "cancelled", Method: "GET", URL: "https://example.test/x"}
	tr := ex.Run(ctx, "f.resty", 1, test, store, nil)
	if tr.Status != result.Failed {
		t.Fatalf("expected cancelled test to fail, got %s", tr.Status)
	}
}
