package removal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lancache-ops/cache-pipeline/internal/cachekey"
	"github.com/lancache-ops/cache-pipeline/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRemoveServiceRewritesLogsAndUnlinksCache(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	tx, err := s.BeginImmediate(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	downloadID, err := store.InsertDownload(ctx, tx, &store.Download{
		Service:        "steam",
		ClientIP:       "10.0.0.5",
		StartTimeUTC:   "2024-01-10T22:28:34Z",
		EndTimeUTC:     "2024-01-10T22:28:34Z",
		StartTimeLocal: "2024-01-10T22:28:34",
		EndTimeLocal:   "2024-01-10T22:28:34",
		LastURL:        "/depot/1/chunk/a",
	})
	if err != nil {
		t.Fatalf("insert download: %v", err)
	}
	if err := store.InsertLogEntry(ctx, tx, &store.LogEntry{
		TimestampUTC: "2024-01-10T22:28:34Z",
		ClientIP:     "10.0.0.5",
		Service:      "steam",
		Method:       "GET",
		URL:          "/depot/1/chunk/a",
		StatusCode:   200,
		BytesServed:  100,
		CacheStatus:  "MISS",
	}, downloadID); err != nil {
		t.Fatalf("insert log entry: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	logDir := t.TempDir()
	cacheRoot := t.TempDir()

	line := `[steam] 10.0.0.5 - - - [10/Jan/2024:16:28:34 -0600] "GET /depot/1/chunk/a HTTP/1.1" 200 100 "-" "ua" "MISS" "h" "-"` + "\n" +
		`[steam] 10.0.0.5 - - - [10/Jan/2024:16:29:34 -0600] "GET /depot/1/chunk/b HTTP/1.1" 200 100 "-" "ua" "MISS" "h" "-"` + "\n"
	if err := os.WriteFile(filepath.Join(logDir, "access.log"), []byte(line), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	candidate := cachekey.DerivePaths("steam", "/depot/1/chunk/a", 100)[0]
	full := filepath.Join(cacheRoot, candidate.Path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, make([]byte, 100), 0o644); err != nil {
		t.Fatalf("write cache file: %v", err)
	}

	e := New(s, cacheRoot, logDir, "access.log")
	result, err := e.RemoveService(ctx, "steam")
	if err != nil {
		t.Fatalf("remove service: %v", err)
	}
	if result.FilesUnlinked != 1 {
		t.Fatalf("files unlinked = %d, want 1", result.FilesUnlinked)
	}
	if result.BytesFreed != 100 {
		t.Fatalf("bytes freed = %d, want 100", result.BytesFreed)
	}
	if result.LinesRemoved != 1 {
		t.Fatalf("lines removed = %d, want 1 (only chunk/a was targeted)", result.LinesRemoved)
	}

	remaining, err := os.ReadFile(filepath.Join(logDir, "access.log"))
	if err != nil {
		t.Fatalf("read remaining log: %v", err)
	}
	if !contains(string(remaining), "chunk/b") {
		t.Fatal("expected untargeted chunk/b line to survive rewrite")
	}
	if contains(string(remaining), "chunk/a") {
		t.Fatal("expected targeted chunk/a line to be removed")
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
