package vars

import (
	"testing"

	"github.com/restyrun/resty/internal/rerr"
)

func TestResolveBodyPassesStringsThroughResolve(t *testing.T) {
	s := New()
	s.UpdateFile(map[string]string{"name": "widget"})
	got, err := s.ResolveBody("text/plain", "hello $name")
	if err != nil {
		t.Fatalf("ResolveBody: %v", err)
	}
	if got != "hello widget" {
		t.Errorf("ResolveBody = %q, want %q", got, "hello widget")
	}
}

func TestResolveBodySerializesStructuredBodyAsJSON(t *testing.T) {
	s := New()
	s.UpdateFile(map[string]string{"id": "7"})
	got, err := s.ResolveBody("application/json", map[string]interface{}{"id": "$id"})
	if err != nil {
		t.Fatalf("ResolveBody: %v", err)
	}
	if got != `{"id":"7"}` {
		t.Errorf("ResolveBody = %q, want %q", got, `{"id":"7"}`)
	}
}

func TestResolveBodyEncodesFormBody(t *testing.T) {
	s := New()
	got, err := s.ResolveBody("application/x-www-form-urlencoded", map[string]interface{}{"b": "2", "a": "1"})
	if err != nil {
		t.Fatalf("ResolveBody: %v", err)
	}
	if got != "a=1&b=2" {
		t.Errorf("ResolveBody = %q, want a=1&b=2", got)
	}
}

func TestResolveBodyRejectsUnsupportedContentType(t *testing.T) {
	s := New()
	_, err := s.ResolveBody("text/csv", map[string]interface{}{"a": "1"})
	if !rerr.Is(err, rerr.KindUnsupportedBody) {
		t.Fatalf("expected KindUnsupportedBody, got %v", err)
	}
}

func TestResolveBodyNilReturnsEmptyString(t *testing.T) {
	s := New()
	got, err := s.ResolveBody("application/json", nil)
	if err != nil || got != "" {
		t.Errorf("ResolveBody(nil) = (%q, %v), want (\"\", nil)", got, err)
	}
}
