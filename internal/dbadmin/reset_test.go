package dbadmin

import (
	"context"
	"testing"

	"github.com/lancache-ops/cache-pipeline/internal/store"
)

func TestResetClearsAllTables(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	tx, err := s.BeginImmediate(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	downloadID, err := store.InsertDownload(ctx, tx, &store.Download{
		Service: "steam", ClientIP: "10.0.0.1",
		StartTimeUTC: "2024-01-01T00:00:00Z", EndTimeUTC: "2024-01-01T00:00:00Z",
		StartTimeLocal: "2024-01-01T00:00:00", EndTimeLocal: "2024-01-01T00:00:00",
	})
	if err != nil {
		t.Fatalf("insert download: %v", err)
	}
	if err := store.InsertLogEntry(ctx, tx, &store.LogEntry{
		TimestampUTC: "2024-01-01T00:00:00Z", ClientIP: "10.0.0.1", Service: "steam",
		Method: "GET", URL: "/x", StatusCode: 200, BytesServed: 10, CacheStatus: "HIT",
	}, downloadID); err != nil {
		t.Fatalf("insert log entry: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	result, err := Reset(ctx, s, nil)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if result.RowsDeleted["downloads"] != 1 {
		t.Fatalf("downloads deleted = %d, want 1", result.RowsDeleted["downloads"])
	}
	if result.RowsDeleted["log_entries"] != 1 {
		t.Fatalf("log_entries deleted = %d, want 1", result.RowsDeleted["log_entries"])
	}

	var count int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM downloads`).Scan(&count); err != nil {
		t.Fatalf("count downloads: %v", err)
	}
	if count != 0 {
		t.Fatalf("downloads remaining = %d, want 0", count)
	}
}
