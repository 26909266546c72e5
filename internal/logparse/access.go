package logparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lancache-ops/cache-pipeline/internal/pipeutil"
)

// accessLineRe recognizes an optional "[service]" prefix, the client
// IP, a bracketed timestamp, a quoted request line, a 3-digit status,
// a byte count, and an arbitrary tail of further quoted fields — the
// cache-status marker is the third of those trailing quoted fields
// (§4.3) and is extracted separately rather than baked into this
// regex, since its position is defined relative to the tail, not a
// fixed total field count.
var accessLineRe = regexp.MustCompile(
	`^(?:\[([^\]]+)\]\s+)?(\S+)\s+.*?\[([^\]]+)\]\s+"(\S+)\s+(\S+)\s+HTTP/[0-9.]+(?:\s*)?"\s+(\d{3})\s+(\S+)(.*)$`,
)

var quotedFieldRe = regexp.MustCompile(`"([^"]*)"`)

var depotRe = regexp.MustCompile(`/depot/(\d+)/`)

// ParseAccessLine parses one access-log line in loc's timezone for
// any zone-less timestamp. It returns (nil, false) for a line that
// doesn't match the expected shape — a silent drop, not an error.
func ParseAccessLine(line string, loc *time.Location) (*LogEntry, bool) {
	m := accessLineRe.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}

	rawService, ip, rawTS, method, url, rawStatus, rawBytes, tail := m[1], m[2], m[3], m[4], m[5], m[6], m[7], m[8]

	ts, err := ParseTimestamp(rawTS, loc)
	if err != nil {
		return nil, false
	}

	status, err := strconv.Atoi(rawStatus)
	if err != nil {
		return nil, false
	}

	var bytesServed int64
	if rawBytes != "-" {
		bytesServed, err = strconv.ParseInt(rawBytes, 10, 64)
		if err != nil {
			return nil, false
		}
	}

	service := pipeutil.NormalizeService(rawService)
	if service == "" {
		service = pipeutil.NormalizeService("unknown")
	}

	entry := &LogEntry{
		TimestampUTC: pipeutil.FormatUTC(ts),
		ClientIP:     ip,
		Service:      service,
		Method:       method,
		URL:          url,
		StatusCode:   status,
		BytesServed:  bytesServed,
		CacheStatus:  extractCacheStatus(tail),
	}

	if service == "steam" {
		if dm := depotRe.FindStringSubmatch(url); dm != nil {
			if id, err := strconv.ParseInt(dm[1], 10, 64); err == nil {
				entry.DepotID = &id
			}
		}
	}

	return entry, true
}

// extractCacheStatus reads the third quoted field of tail (§4.3);
// anything other than "HIT" or "MISS" (compared case-insensitively)
// maps to UNKNOWN.
func extractCacheStatus(tail string) CacheStatus {
	fields := quotedFieldRe.FindAllStringSubmatch(tail, -1)
	if len(fields) < 3 {
		return CacheUnknown
	}
	switch strings.ToUpper(fields[2][1]) {
	case "HIT":
		return CacheHit
	case "MISS":
		return CacheMiss
	default:
		return CacheUnknown
	}
}
