package logparse

import (
	"fmt"
	"time"
)

// zonedLayouts carry an explicit UTC offset; the parsed instant is
// already well-defined and needs no location hint.
var zonedLayouts = []string{
	"02/Jan/2006:15:04:05 -0700",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05Z07:00",
}

// naiveLayouts have no zone; they're interpreted in the process's
// configured timezone (§4.3).
var naiveLayouts = []string{
	"02/Jan/2006:15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseTimestamp accepts the three layouts named in §4.3 with an
// optional "±HHMM" zone, returning the instant in UTC. A zoned string
// converts directly; a naive string is interpreted in loc first.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
