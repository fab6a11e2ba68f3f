package notes

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseTagSeedTrimsAndDeduplicates(t *testing.T) {
	names, err := ParseTagSeed(strings.NewReader("tags:\n  - work\n  - ' home '\n  - ''\n  - work\n  - Work\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	expected := []string{"work", "home", "Work"}
	if len(names) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, names)
	}
	for index := range expected {
		if names[index] != expected[index] {
			t.Fatalf("expected %v, got %v", expected, names)
		}
	}
}

func TestParseTagSeedEmptyDocument(t *testing.T) {
	names, err := ParseTagSeed(strings.NewReader(""))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected no names, got %v", names)
	}
}

func TestParseTagSeedRejectsUnknownFields(t *testing.T) {
	if _, err := ParseTagSeed(strings.NewReader("labels: [a]\n")); err == nil {
		t.Fatalf("expected unknown field to be rejected")
	}
}

func TestLoadTagSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.yaml")
	if err := os.WriteFile(path, []byte("tags: [alpha, beta]\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	names, err := LoadTagSeed(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Fatalf("unexpected names %v", names)
	}

	if _, err := LoadTagSeed(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}
