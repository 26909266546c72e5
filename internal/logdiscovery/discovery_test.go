package logdiscovery

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverOrdersOldestFirst(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "access.log")
	touch(t, dir, "access.log.1")
	touch(t, dir, "access.log.2.gz")
	touch(t, dir, "access.log.3.zst")
	touch(t, dir, "access.log.1.bak")
	touch(t, dir, "access.log.old")
	touch(t, dir, "other.log")

	files, err := Discover(dir, "access.log")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(files) != 4 {
		t.Fatalf("got %d files, want 4: %+v", len(files), files)
	}
	want := []int{3, 2, 1, 0}
	for i, f := range files {
		if f.RotationNumber != want[i] {
			t.Errorf("file %d: rotation = %d, want %d (%s)", i, f.RotationNumber, want[i], f.Path)
		}
	}
	if !files[0].IsCompressed || !files[1].IsCompressed {
		t.Error("expected the two oldest rotations to be marked compressed")
	}
	if files[3].IsCompressed {
		t.Error("current file should not be marked compressed")
	}
}

func TestDiscoverMissingDirIsEmpty(t *testing.T) {
	files, err := Discover("/no/such/dir/at/all", "access.log")
	if err != nil {
		t.Fatalf("expected no error for missing dir, got %v", err)
	}
	if len(files) != 0 {
		t.Errorf("expected empty list, got %d", len(files))
	}
}
