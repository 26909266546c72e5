package pipeutil

import "testing"

func TestNormalizeService(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Steam", "steam"},
		{"  EPIC  ", "epic"},
		{"127.0.0.1", "localhost"},
		{"localhost", "localhost"},
		{"10.0.0.5", "ip-address"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeService(c.in); got != c.want {
			t.Errorf("NormalizeService(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeServiceIdempotent(t *testing.T) {
	for _, in := range []string{"Steam", "127.5.5.5", "10.0.0.5", "origin"} {
		once := NormalizeService(in)
		twice := NormalizeService(once)
		if once != twice {
			t.Errorf("NormalizeService not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestIsHealthCheckURL(t *testing.T) {
	if !IsHealthCheckURL("/lancache-heartbeat") {
		t.Error("expected heartbeat path to be a health check")
	}
	if !IsHealthCheckURL("/health?foo=bar") {
		t.Error("expected health path with query string to match")
	}
	if IsHealthCheckURL("/depot/123/chunk/abc") {
		t.Error("did not expect a chunk URL to match")
	}
}
