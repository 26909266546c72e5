package pipeutil

import "time"

// Pruner bounds an unbounded accumulator by periodically discarding
// entries that no longer matter. The session tracker (§4.4, every
// 1,000 updates) and the corruption tally (§4.8, every 100,000 tallied
// entries) are both instances of this shape: without the periodic
// sweep, a pathological input exhausts memory.
type Pruner struct {
	every int
	count int
}

// NewPruner returns a Pruner that fires once every `every` calls to
// Tick. A non-positive every disables pruning (Tick never fires).
func NewPruner(every int) *Pruner {
	return &Pruner{every: every}
}

// Tick advances the call counter and reports whether a prune sweep is
// due this call.
func (p *Pruner) Tick() bool {
	if p.every <= 0 {
		return false
	}
	p.count++
	if p.count >= p.every {
		p.count = 0
		return true
	}
	return false
}

// StaleBefore returns the cutoff below which an entry last touched
// before it is considered stale, given a base gap and a multiplier
// (the session tracker uses 2x the inactivity gap).
func StaleBefore(now time.Time, gap time.Duration, multiplier int) time.Time {
	return now.Add(-gap * time.Duration(multiplier))
}
