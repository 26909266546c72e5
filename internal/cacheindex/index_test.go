package cacheindex

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestBuildIndexesNestedShards(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ab", "cd", "abcd1234"), 100)
	writeFile(t, filepath.Join(root, "ef", "01", "ef012345"), 200)

	idx, err := Build(root)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if idx.Len() != 2 {
		t.Fatalf("len = %d, want 2", idx.Len())
	}

	e, ok := idx.Lookup("abcd1234")
	if !ok {
		t.Fatal("expected abcd1234 to be indexed")
	}
	if e.Size != 100 {
		t.Fatalf("size = %d, want 100", e.Size)
	}
}

func TestBuildMissingRootIsEmpty(t *testing.T) {
	idx, err := Build(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if idx.Len() != 0 {
		t.Fatalf("len = %d, want 0", idx.Len())
	}
}
