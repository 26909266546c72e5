package cachesize

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestIsHexDirName(t *testing.T) {
	cases := map[string]bool{
		"ab": true,
		"00": true,
		"FF": true,
		"a":  false,
		"abc": false,
		"gg": false,
		"a ": false,
	}
	for name, want := range cases {
		if got := isHexDirName(name); got != want {
			t.Errorf("isHexDirName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestEstimateDeletionTimesKnownInputs(t *testing.T) {
	totals := Totals{TotalBytes: 0, TotalFiles: 10000, TotalDirectories: 256, HexDirectories: 256}
	est := estimateDeletionTimes(totals, 1*time.Second)

	if est.PreserveSeconds <= 0 {
		t.Fatalf("preserve seconds should be positive, got %f", est.PreserveSeconds)
	}
	if est.FullSeconds <= 0 {
		t.Fatalf("full seconds should be positive, got %f", est.FullSeconds)
	}
	if est.RsyncSeconds <= 0 {
		t.Fatalf("rsync seconds should be positive, got %f", est.RsyncSeconds)
	}
	// 10,000 files scanned in 1s gives a speed factor of 1: preserve is
	// 10,000/500 = 20s, while full pays 0.5s for each of the 256 hex
	// directories (~128s), so full is the slower strategy here.
	if est.PreserveSeconds >= est.FullSeconds {
		t.Fatalf("expected preserve (%f) to be faster than full (%f)", est.PreserveSeconds, est.FullSeconds)
	}
}

func TestEstimateDeletionTimesClampsSpeedFactor(t *testing.T) {
	// Absurdly fast apparent scan throughput should clamp to 3x, not runaway.
	// The scan time is floored at 0.1s, so 100,000 files are needed to
	// push the raw factor (files/sec / 10,000) past 3x.
	fast := estimateDeletionTimes(Totals{TotalFiles: 100000, TotalDirectories: 4, HexDirectories: 4}, 1*time.Nanosecond)
	// Absurdly slow apparent throughput should clamp to 0.5x, not collapse to zero.
	slow := estimateDeletionTimes(Totals{TotalFiles: 100000, TotalDirectories: 4, HexDirectories: 4}, 1*time.Hour)
	if fast.PreserveSeconds <= 0 || slow.PreserveSeconds <= 0 {
		t.Fatalf("clamped estimates should stay positive: fast=%f slow=%f", fast.PreserveSeconds, slow.PreserveSeconds)
	}
	if fast.PreserveSeconds >= slow.PreserveSeconds {
		t.Fatalf("faster observed scan should predict a faster delete: fast=%f slow=%f", fast.PreserveSeconds, slow.PreserveSeconds)
	}
}

func TestFormatDurationBuckets(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0.5, "< 1 second"},
		{1, "1 second"},
		{30, "30 seconds"},
		{60, "1 minute"},
		{90, "1m 30s"},
		{3600, "1 hour"},
		{5400, "1h 30m"},
	}
	for _, c := range cases {
		if got := formatDuration(c.seconds); got != c.want {
			t.Errorf("formatDuration(%v) = %q, want %q", c.seconds, got, c.want)
		}
	}
}

func TestScanCountsFilesBytesAndDirs(t *testing.T) {
	root := t.TempDir()
	for _, shard := range []string{"ab", "cd"} {
		shardDir := filepath.Join(root, shard)
		if err := os.MkdirAll(filepath.Join(shardDir, "nested"), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(shardDir, "file1"), []byte("hello"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := os.WriteFile(filepath.Join(shardDir, "nested", "file2"), []byte("world!"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	// Non-hex top-level directory must be ignored.
	if err := os.MkdirAll(filepath.Join(root, "not-hex"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "not-hex", "ignored"), []byte("xxxxxxxxxx"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result, err := Scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if result.HexDirectories != 2 {
		t.Fatalf("hex directories = %d, want 2", result.HexDirectories)
	}
	if result.TotalFiles != 4 {
		t.Fatalf("total files = %d, want 4", result.TotalFiles)
	}
	if result.TotalBytes != 22 {
		t.Fatalf("total bytes = %d, want 22", result.TotalBytes)
	}
	if result.FormattedSize == "" {
		t.Fatalf("formatted size should not be empty")
	}
}

func TestScanMissingDirectoryErrors(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Fatalf("expected error for missing cache directory")
	}
}
