package pipeutil

import "strings"

// NormalizeService folds a raw service token from a log line into its
// canonical form (§3): lowercase, with loopback/localhost addresses
// folded to "localhost" and bare numeric hosts folded to "ip-address".
// Idempotent: NormalizeService(NormalizeService(x)) == NormalizeService(x).
func NormalizeService(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return s
	}
	if s == "localhost" || strings.HasPrefix(s, "127.") {
		return "localhost"
	}
	if isNumericHost(s) {
		return "ip-address"
	}
	return s
}

// isNumericHost reports whether s looks like a bare IPv4/host made
// only of digits and dots (e.g. "10.0.0.5"), as opposed to a named
// service like "steam" or "origin".
func isNumericHost(s string) bool {
	sawDigit := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			sawDigit = true
		case r == '.':
			// allowed separator
		default:
			return false
		}
	}
	return sawDigit
}

// healthCheckPaths are the URLs the corruption detector (C8) and live
// snapshotter ignore entirely — proxy liveness probes, never real
// cache traffic.
var healthCheckPaths = []string{
	"/lancache-heartbeat",
	"/health",
	"/ping",
}

// IsHealthCheckURL reports whether url contains one of the proxy's own
// liveness-probe paths anywhere in it — a substring match against the
// whole raw URL, not an exact match against a stripped path.
func IsHealthCheckURL(url string) bool {
	for _, p := range healthCheckPaths {
		if strings.Contains(url, p) {
			return true
		}
	}
	return false
}
