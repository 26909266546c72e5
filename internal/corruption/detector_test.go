package corruption

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeLog(t *testing.T, dir, name string, lines []string) {
	t.Helper()
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func missLine(url string) string {
	return `[steam] 10.0.0.5 - - - [10/Jan/2024:16:28:34 -0600] "GET ` + url + ` HTTP/1.1" 200 1048576 "-" "ua" "MISS" "h" "-"`
}

func TestDetectFlagsRepeatedMisses(t *testing.T) {
	dir := t.TempDir()
	lines := []string{
		missLine("/depot/1/chunk/a"),
		missLine("/depot/1/chunk/a"),
		missLine("/depot/1/chunk/a"),
		missLine("/depot/2/chunk/b"),
	}
	writeLog(t, dir, "access.log", lines)

	d := New(DefaultThreshold)
	report, err := d.Detect(context.Background(), dir, "access.log", true, nil)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(report.Corrupted) != 1 {
		t.Fatalf("corrupted = %d, want 1", len(report.Corrupted))
	}
	if report.Corrupted[0].Count != 3 {
		t.Fatalf("count = %d, want 3", report.Corrupted[0].Count)
	}
}

func TestDetectSummaryMode(t *testing.T) {
	dir := t.TempDir()
	lines := []string{
		missLine("/depot/1/chunk/a"),
		missLine("/depot/1/chunk/a"),
		missLine("/depot/1/chunk/a"),
	}
	writeLog(t, dir, "access.log", lines)

	d := New(DefaultThreshold)
	report, err := d.Detect(context.Background(), dir, "access.log", false, nil)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	count, ok := report.ServiceCounts["steam"]
	if !ok {
		t.Fatal("expected a steam summary entry")
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	if report.TotalCorrupted != 1 {
		t.Fatalf("total_corrupted = %d, want 1", report.TotalCorrupted)
	}
}

func TestPruneDropsBelowFloor(t *testing.T) {
	tallies := map[key]*tally{
		{service: "steam", url: "/a"}: {count: 1},
		{service: "steam", url: "/b"}: {count: 5},
	}
	prune(tallies, 3)
	if _, ok := tallies[key{service: "steam", url: "/a"}]; ok {
		t.Fatal("expected low-count key to be pruned")
	}
	if _, ok := tallies[key{service: "steam", url: "/b"}]; !ok {
		t.Fatal("expected high-count key to survive")
	}
}
