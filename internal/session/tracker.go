// Package session tracks per-key last-activity timestamps to decide
// when a new Download begins (C4, §4.4). It holds no database
// reference — the aggregator (C5) asks it a yes/no question and makes
// the actual INSERT/UPDATE decision itself.
package session

import (
	"strconv"
	"time"

	"github.com/lancache-ops/cache-pipeline/internal/pipeutil"
)

// Gap is the fixed inactivity window after which a new session
// begins (§4.4, §8 laws).
const Gap = 5 * time.Minute

// pruneEvery matches the "every 1,000 updates" cadence of §4.4.
const pruneEvery = 1000

// staleMultiplier: entries idle longer than 2x the gap are pruned.
const staleMultiplier = 2

// Key identifies one session bucket: client, service, and depot (or
// its absence) so two concurrent depots for the same client/service
// never collapse into one session (§4.4).
type Key struct {
	ClientIP string
	Service  string
	DepotID  *int64
}

func (k Key) String() string {
	depot := "nodepot"
	if k.DepotID != nil {
		depot = strconv.FormatInt(*k.DepotID, 10)
	}
	return k.ClientIP + "\x00" + k.Service + "\x00" + depot
}

// Tracker maintains session_key -> last_timestamp, bounded
// independent of input size by periodic pruning (§4.4).
type Tracker struct {
	last   map[string]time.Time
	pruner *pipeutil.Pruner
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{
		last:   make(map[string]time.Time),
		pruner: pipeutil.NewPruner(pruneEvery),
	}
}

// Observe reports whether ts warrants a new session for key, and
// records ts as the key's most recent activity. A new session is
// warranted when no prior key exists, or ts is more than Gap after
// the last recorded timestamp (§4.4, §8 laws: the boundary is
// exclusive — exactly Gap does not split).
func (t *Tracker) Observe(key Key, ts time.Time) (isNew bool) {
	k := key.String()
	prev, ok := t.last[k]
	isNew = !ok || ts.Sub(prev) > Gap
	if !ok || ts.After(prev) {
		t.last[k] = ts
	}
	if t.pruner.Tick() {
		t.prune(ts)
	}
	return isNew
}

// prune discards entries whose last activity is older than 2x Gap
// relative to now, bounding memory for pathological inputs (§4.4, §9).
func (t *Tracker) prune(now time.Time) {
	cutoff := pipeutil.StaleBefore(now, Gap, staleMultiplier)
	for k, ts := range t.last {
		if ts.Before(cutoff) {
			delete(t.last, k)
		}
	}
}

// Len reports the number of tracked session keys, for tests and
// diagnostics.
func (t *Tracker) Len() int {
	return len(t.last)
}
