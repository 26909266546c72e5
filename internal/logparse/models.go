// Package logparse recognizes the two log-line formats described in
// §4.3: the per-request access log and the per-session stream log.
// Parse failures return "no entry" rather than raising (§7 taxonomy
// item 3) — logs routinely carry unparseable noise.
package logparse

import "time"

// CacheStatus is one of the three markers a log line can carry.
type CacheStatus string

const (
	CacheHit     CacheStatus = "HIT"
	CacheMiss    CacheStatus = "MISS"
	CacheUnknown CacheStatus = "UNKNOWN"
)

// LogEntry is an immutable parsed access-log record (§3).
type LogEntry struct {
	TimestampUTC string // pipeutil.TimeFormat
	ClientIP     string
	Service      string
	Method       string
	URL          string
	StatusCode   int
	BytesServed  int64
	CacheStatus  CacheStatus
	DepotID      *int64 // set only for Steam URLs carrying /depot/{n}/
}

// StreamEntry is a parsed record from the secondary transport-layer
// log format (§3, §4.3).
type StreamEntry struct {
	ClientIP       string
	Protocol       string
	Status         string
	BytesSent      int64
	BytesReceived  int64
	DurationSecs   int64
	UpstreamHost   string
	EndTimeUTC     time.Time
	StartTimeUTC   time.Time // EndTimeUTC - DurationSecs, per §3
}
