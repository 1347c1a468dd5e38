package depgraph

import (
	"reflect"
	"testing"

	"github.com/restyrun/resty/internal/rerr"
)

func nodes(requires map[string][]string, order []string) []Node {
	var out []Node
	for _, name := range order {
		out = append(out, Node{Name: name, Requires: requires[name]})
	}
	return out
}

func TestResolveOrdersByRequiresAndDocumentOrder(t *testing.T) {
	r, err := NewResolver(nodes(map[string][]string{
		"create": nil,
		"read":   {"create"},
		"delete": {"create", "read"},
	}, []string{"delete", "read", "create"}))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	got, err := r.Resolve(nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{"create", "read", "delete"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}
}

func TestResolveComputesTransitiveClosureOfSelection(t *testing.T) {
	r, err := NewResolver(nodes(map[string][]string{
		"create": nil,
		"read":   {"create"},
		"delete": {"create", "read"},
		"unrelated": nil,
	}, []string{"create", "read", "delete", "unrelated"}))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	got, err := r.Resolve([]string{"delete"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{"create", "read", "delete"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve([delete]) = %v, want %v", got, want)
	}
}

func TestNewResolverRejectsMissingDependency(t *testing.T) {
	_, err := NewResolver(nodes(map[string][]string{
		"read": {"create"},
	}, []string{"read"}))
	if !rerr.Is(err, rerr.KindMissingDependency) {
		t.Fatalf("expected KindMissingDependency, got %v", err)
	}
}

func TestResolveRejectsCircularDependency(t *testing.T) {
	r, err := NewResolver(nodes(map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}, []string{"a", "b"}))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	_, err = r.Resolve(nil)
	if !rerr.Is(err, rerr.KindCircularDependency) {
		t.Fatalf("expected KindCircularDependency, got %v", err)
	}
}

func TestResolveRejectsUnknownSelection(t *testing.T) {
	r, err := NewResolver(nodes(map[string][]string{"a": nil}, []string{"a"}))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if _, err := r.Resolve([]string{"ghost"}); !rerr.Is(err, rerr.KindMissingDependency) {
		t.Fatalf("expected KindMissingDependency for unknown selection, got %v", err)
	}
}
