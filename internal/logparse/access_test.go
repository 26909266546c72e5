package logparse

import "testing"

func TestParseAccessLineBasic(t *testing.T) {
	line := `[steam] 10.0.0.5 - - - [10/Jan/2024:16:28:34 -0600] "GET /depot/2767031/chunk/abc HTTP/1.1" 200 1048576 "-" "ua" "MISS" "h" "-"`
	entry, ok := ParseAccessLine(line, nil)
	if !ok {
		t.Fatalf("expected line to parse")
	}
	if entry.Service != "steam" {
		t.Errorf("service = %q, want steam", entry.Service)
	}
	if entry.DepotID == nil || *entry.DepotID != 2767031 {
		t.Errorf("depot id = %v, want 2767031", entry.DepotID)
	}
	if entry.CacheStatus != CacheMiss {
		t.Errorf("cache status = %q, want MISS", entry.CacheStatus)
	}
	if entry.BytesServed != 1048576 {
		t.Errorf("bytes served = %d, want 1048576", entry.BytesServed)
	}
	if entry.TimestampUTC != "2024-01-10T22:28:34Z" {
		t.Errorf("timestamp = %q, want 2024-01-10T22:28:34Z", entry.TimestampUTC)
	}
}

func TestParseAccessLineNoMatch(t *testing.T) {
	if _, ok := ParseAccessLine("not a log line at all", nil); ok {
		t.Error("expected no match for garbage line")
	}
}

func TestParseAccessLineHealthCheck(t *testing.T) {
	line := `epic.com 10.0.0.9 - - - [10/Jan/2024:16:28:34 -0600] "GET /lancache-heartbeat HTTP/1.1" 200 2 "-" "ua" "HIT" "h" "-"`
	entry, ok := ParseAccessLine(line, nil)
	if !ok {
		t.Fatalf("expected line to parse")
	}
	if entry.URL != "/lancache-heartbeat" {
		t.Errorf("url = %q", entry.URL)
	}
}
