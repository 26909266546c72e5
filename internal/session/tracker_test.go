package session

import (
	"testing"
	"time"
)

func key() Key {
	return Key{ClientIP: "10.0.0.5", Service: "steam"}
}

func TestObserveFirstIsNew(t *testing.T) {
	tr := New()
	if !tr.Observe(key(), time.Unix(0, 0)) {
		t.Error("first observation of a key should start a new session")
	}
}

func TestObserveWithinGapContinues(t *testing.T) {
	tr := New()
	base := time.Unix(1700000000, 0)
	tr.Observe(key(), base)
	if tr.Observe(key(), base.Add(Gap-time.Second)) {
		t.Error("observation within the gap should continue the session")
	}
}

func TestObserveBeyondGapSplits(t *testing.T) {
	tr := New()
	base := time.Unix(1700000000, 0)
	tr.Observe(key(), base)
	if !tr.Observe(key(), base.Add(Gap+time.Second)) {
		t.Error("observation beyond the gap should start a new session")
	}
}

func TestObserveExactlyGapContinues(t *testing.T) {
	tr := New()
	base := time.Unix(1700000000, 0)
	tr.Observe(key(), base)
	if tr.Observe(key(), base.Add(Gap)) {
		t.Error("observation at exactly the gap boundary should continue the session")
	}
}
