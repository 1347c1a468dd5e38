package rerr

import (
	"errors"
	"testing"
)

func TestErrorMessageIncludesCauseWhenPresent(t *testing.T) {
	e := Wrap(KindNetwork, "request failed", errors.New("dial tcp: timeout"))
	if e.Error() != "request failed: dial tcp: timeout" {
		t.Errorf("Error() = %q", e.Error())
	}
	if New(KindNetwork, "request failed").Error() != "request failed" {
		t.Error("expected no cause to produce just the message")
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("boom")
	e := Wrap(KindNetwork, "wrapped", cause)
	if errors.Unwrap(e) != cause {
		t.Error("expected Unwrap to return the underlying cause")
	}
}

func TestIsMatchesKindOnly(t *testing.T) {
	e := New(KindCircularDependency, "cycle")
	if !Is(e, KindCircularDependency) {
		t.Error("expected Is to match the same kind")
	}
	if Is(e, KindNetwork) {
		t.Error("expected Is to reject a different kind")
	}
	if Is(errors.New("plain"), KindNetwork) {
		t.Error("expected Is to reject a non-*Error")
	}
}

func TestExitCodeMapping(t *testing.T) {
	cases := map[Kind]int{
		KindMissingDependency:  3,
		KindCircularDependency: 4,
		KindYamlDecode:         2,
		KindUnclosedBlock:      2,
		KindExpectedStatus:     1,
		KindNetwork:            1,
	}
	for kind, want := range cases {
		if got := ExitCode(kind); got != want {
			t.Errorf("ExitCode(%v) = %d, want %d", kind, got, want)
		}
	}
}

func TestRetryableStatusCodes(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !Retryable(KindExpectedStatus, code) {
			t.Errorf("Retryable(_, %d) = false, want true", code)
		}
	}
	if Retryable(KindExpectedStatus, 404) {
		t.Error("expected 404 to be non-retryable")
	}
	if !Retryable(KindNetwork, 0) {
		t.Error("expected KindNetwork to always be retryable regardless of status")
	}
}
