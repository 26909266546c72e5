package store

import (
	"context"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDownloadLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := InsertDownload(ctx, s.DB(), &Download{
		Service:        "steam",
		ClientIP:       "10.0.0.5",
		StartTimeUTC:   "2024-01-10T22:28:34Z",
		EndTimeUTC:     "2024-01-10T22:28:34Z",
		StartTimeLocal: "2024-01-10T22:28:34",
		EndTimeLocal:   "2024-01-10T22:28:34",
		CacheMissBytes: 1048576,
	})
	if err != nil {
		t.Fatalf("insert download: %v", err)
	}

	found, err := FindActiveDownload(ctx, s.DB(), "10.0.0.5", "steam", nil)
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if found == nil || found.ID != id {
		t.Fatalf("expected to find download %d, got %+v", id, found)
	}

	if err := ExtendDownload(ctx, s.DB(), id, "2024-01-10T22:30:00Z", "2024-01-10T22:30:00", "/depot/1/chunk/2", 100, 0); err != nil {
		t.Fatalf("extend: %v", err)
	}

	if err := CloseActiveDownloads(ctx, s.DB(), "10.0.0.5", "steam"); err != nil {
		t.Fatalf("close active: %v", err)
	}
	found, err = FindActiveDownload(ctx, s.DB(), "10.0.0.5", "steam", nil)
	if err != nil {
		t.Fatalf("find active after close: %v", err)
	}
	if found != nil {
		t.Fatalf("expected no active download after close, got %+v", found)
	}
}

func TestDuplicateLogEntrySuppression(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := InsertDownload(ctx, s.DB(), &Download{
		Service: "steam", ClientIP: "10.0.0.5",
		StartTimeUTC: "2024-01-10T22:28:34Z", EndTimeUTC: "2024-01-10T22:28:34Z",
		StartTimeLocal: "2024-01-10T22:28:34", EndTimeLocal: "2024-01-10T22:28:34",
	})
	if err != nil {
		t.Fatalf("insert download: %v", err)
	}

	entry := &LogEntry{
		TimestampUTC: "2024-01-10T22:28:34Z",
		ClientIP:     "10.0.0.5",
		Service:      "steam",
		Method:       "GET",
		URL:          "/depot/1/chunk/a",
		StatusCode:   200,
		BytesServed:  1048576,
		CacheStatus:  "MISS",
	}
	dup, err := DuplicateExists(ctx, s.DB(), entry.ClientIP, entry.Service, entry.TimestampUTC, entry.URL, entry.BytesServed)
	if err != nil {
		t.Fatalf("duplicate check: %v", err)
	}
	if dup {
		t.Fatal("expected no duplicate before first insert")
	}

	if err := InsertLogEntry(ctx, s.DB(), entry, id); err != nil {
		t.Fatalf("insert log entry: %v", err)
	}

	dup, err = DuplicateExists(ctx, s.DB(), entry.ClientIP, entry.Service, entry.TimestampUTC, entry.URL, entry.BytesServed)
	if err != nil {
		t.Fatalf("duplicate check 2: %v", err)
	}
	if !dup {
		t.Fatal("expected duplicate after first insert")
	}
}

func TestClientStatsAccumulate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := UpsertClientStats(ctx, s.DB(), "10.0.0.5", "2024-01-10T22:28:34Z", "2024-01-10T22:28:34", 100, 50, true); err != nil {
		t.Fatalf("upsert 1: %v", err)
	}
	if err := UpsertClientStats(ctx, s.DB(), "10.0.0.5", "2024-01-10T22:30:00Z", "2024-01-10T22:30:00", 10, 5, false); err != nil {
		t.Fatalf("upsert 2: %v", err)
	}

	cs, err := GetClientStats(ctx, s.DB(), "10.0.0.5")
	if err != nil {
		t.Fatalf("get client stats: %v", err)
	}
	if cs.TotalCacheHitBytes != 110 || cs.TotalCacheMissBytes != 55 {
		t.Errorf("totals = %d/%d, want 110/55", cs.TotalCacheHitBytes, cs.TotalCacheMissBytes)
	}
	if cs.TotalDownloads != 1 {
		t.Errorf("total downloads = %d, want 1", cs.TotalDownloads)
	}
}

func TestBeginImmediateCommitsAndRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx, err := s.BeginImmediate(ctx)
	if err != nil {
		t.Fatalf("begin immediate: %v", err)
	}
	if _, err := InsertDownload(ctx, tx, &Download{
		Service: "origin", ClientIP: "10.0.0.6",
		StartTimeUTC: "2024-01-10T22:28:34Z", EndTimeUTC: "2024-01-10T22:28:34Z",
		StartTimeLocal: "2024-01-10T22:28:34", EndTimeLocal: "2024-01-10T22:28:34",
	}); err != nil {
		t.Fatalf("insert in tx: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	found, err := FindActiveDownload(ctx, s.DB(), "10.0.0.6", "origin", nil)
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if found != nil {
		t.Fatal("expected rolled-back insert to not be visible")
	}
}
