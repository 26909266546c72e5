// Package pipeutil collects the small cross-cutting helpers every
// component needs: timestamp conversion, service-name normalization,
// the health-check URL skip predicate (§4.14), and the generic
// periodic-pruning shape shared by the session tracker and the
// corruption tally (§4.4, §4.8).
package pipeutil

import "time"

// TimeFormat is the on-disk representation for every UTC column:
// RFC3339 without a fractional second, matching the store's
// string-typed timestamp columns. Local wall-clock columns use
// localTimeFormat.
const TimeFormat = "2006-01-02T15:04:05Z"

// localTimeFormat has no trailing Z: it is a naive wall-clock, not an
// instant, so it carries no zone marker.
const localTimeFormat = "2006-01-02T15:04:05"

// FormatUTC renders an instant as its UTC wall clock.
func FormatUTC(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseUTC parses a string produced by FormatUTC.
func ParseUTC(s string) (time.Time, error) {
	return time.Parse(TimeFormat, s)
}

// UTCToLocal returns the naive wall-clock string of ts as observed in
// loc: the same instant, re-rendered with loc's offset, but without a
// zone suffix since it is meant to be read, not re-parsed as UTC.
func UTCToLocal(ts time.Time, loc *time.Location) string {
	return ts.In(loc).Format(localTimeFormat)
}
