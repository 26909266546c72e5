package logparse

import (
	"regexp"
	"strconv"
	"time"
)

// streamLineRe recognizes the secondary transport-layer format (§4.3):
// IP [timestamp] PROTO STATUS BYTES_SENT BYTES_RECV DURATION "HOST"
var streamLineRe = regexp.MustCompile(
	`^(\S+)\s+\[([^\]]+)\]\s+(\S+)\s+(\S+)\s+(\d+)\s+(\d+)\s+(\d+)\s+"([^"]*)"\s*$`,
)

// ParseStreamLine parses one stream-log line. A line that doesn't
// match the expected shape is silently dropped (§4.3, §7 item 3).
func ParseStreamLine(line string, loc *time.Location) (*StreamEntry, bool) {
	m := streamLineRe.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}

	ip, rawTS, proto, status, rawSent, rawRecv, rawDur, host := m[1], m[2], m[3], m[4], m[5], m[6], m[7], m[8]

	end, err := ParseTimestamp(rawTS, loc)
	if err != nil {
		return nil, false
	}
	sent, err := strconv.ParseInt(rawSent, 10, 64)
	if err != nil {
		return nil, false
	}
	recv, err := strconv.ParseInt(rawRecv, 10, 64)
	if err != nil {
		return nil, false
	}
	dur, err := strconv.ParseInt(rawDur, 10, 64)
	if err != nil {
		return nil, false
	}

	return &StreamEntry{
		ClientIP:      ip,
		Protocol:      proto,
		Status:        status,
		BytesSent:     sent,
		BytesReceived: recv,
		DurationSecs:  dur,
		UpstreamHost:  host,
		EndTimeUTC:    end,
		StartTimeUTC:  end.Add(-time.Duration(dur) * time.Second),
	}, true
}
