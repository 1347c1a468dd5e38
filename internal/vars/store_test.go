package vars

import (
	"os"
	"testing"

	"github.com/restyrun/resty/internal/rerr"
)

func TestResolvePrecedenceCapturedBeatsFileBeatsIncluded(t *testing.T) {
	s := New()
	s.SetIncluded(map[string]string{"host": "included-host"})
	s.UpdateFile(map[string]string{"host": "file-host"})

	got, err := s.Resolve("$host")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "file-host" {
		t.Errorf("Resolve($host) = %q, want file-host (file beats included)", got)
	}

	s.SetCaptured(map[string]string{"host": "captured-host"})
	got, err = s.Resolve("$host")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "captured-host" {
		t.Errorf("Resolve($host) = %q, want captured-host (captured beats file)", got)
	}
}

func TestResolveEnvVariable(t *testing.T) {
	os.Setenv("RESTY_TEST_VAR", "env-value")
	defer os.Unsetenv("RESTY_TEST_VAR")

	s := New()
	got, err := s.Resolve("$env:RESTY_TEST_VAR")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "env-value" {
		t.Errorf("Resolve($env:...) = %q, want env-value", got)
	}
}

func TestResolveMissingVariableReturnsHelpfulError(t *testing.T) {
	s := New()
	s.UpdateFile(map[string]string{"known": "x"})
	_, err := s.Resolve("$missing")
	if !rerr.Is(err, rerr.KindVariableNotFound) {
		t.Fatalf("expected KindVariableNotFound, got %v", err)
	}
}

func TestMergeIncludedOverwritesOnCollision(t *testing.T) {
	s := New()
	s.SetIncluded(map[string]string{"a": "1", "b": "2"})
	s.MergeIncluded(map[string]string{"b": "22", "c": "3"})

	if v, _ := s.Get("a"); v != "1" {
		t.Errorf("Get(a) = %q, want 1", v)
	}
	if v, _ := s.Get("b"); v != "22" {
		t.Errorf("Get(b) = %q, want 22 (merged value should win)", v)
	}
	if v, _ := s.Get("c"); v != "3" {
		t.Errorf("Get(c) = %q, want 3", v)
	}
}

func TestResolveDeepWalksNestedStructures(t *testing.T) {
	s := New()
	s.UpdateFile(map[string]string{"id": "42"})

	in := map[string]interface{}{
		"user": map[string]interface{}{"id": "$id"},
		"tags": []interface{}{"$id", "static"},
	}
	out, err := s.ResolveDeep(in)
	if err != nil {
		t.Fatalf("ResolveDeep: %v", err)
	}
	m := out.(map[string]interface{})
	user := m["user"].(map[string]interface{})
	if user["id"] != "42" {
		t.Errorf("nested id = %v, want 42", user["id"])
	}
	tags := m["tags"].([]interface{})
	if tags[0] != "42" || tags[1] != "static" {
		t.Errorf("tags = %v, want [42 static]", tags)
	}
}

func TestSnapshotExcludesEnvironment(t *testing.T) {
	os.Setenv("RESTY_SNAPSHOT_TEST", "should-not-appear")
	defer os.Unsetenv("RESTY_SNAPSHOT_TEST")

	s := New()
	s.SetIncluded(map[string]string{"host": "x"})
	snap := s.Snapshot()
	if _, ok := snap["RESTY_SNAPSHOT_TEST"]; ok {
		t.Error("expected environment variables to be excluded from Snapshot")
	}
	if snap["host"].Layer != LayerIncluded {
		t.Errorf("expected host to be in the included layer, got %v", snap["host"].Layer)
	}
}
