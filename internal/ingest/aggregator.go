// Package ingest is the transactional write path (C5, §4.5): it
// groups a batch of parsed entries by session key, suppresses
// duplicates, decides new-session-vs-continue with the session
// tracker, resolves Steam depot ownership, and commits everything in
// one immediate-mode transaction per batch.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lancache-ops/cache-pipeline/internal/logparse"
	"github.com/lancache-ops/cache-pipeline/internal/pipeutil"
	"github.com/lancache-ops/cache-pipeline/internal/session"
	"github.com/lancache-ops/cache-pipeline/internal/store"
)

// MaxBatchSize bounds how many parsed entries one transaction covers
// (§4.5).
const MaxBatchSize = 2000

// CancelFunc reports whether the operator has asked the run to stop.
// Checked between files, every 1,000 parsed lines, and between
// session groups inside a batch (§4.5).
type CancelFunc func() bool

// Aggregator owns the session tracker and depot-resolution policy for
// one worker run. It holds no global state: timezone and auto-map
// mode are constructor parameters (§9 design note on global state).
type Aggregator struct {
	store   *store.Store
	tracker *session.Tracker
	loc     *time.Location
	autoMap bool
}

// New returns an Aggregator. autoMap controls whether Steam depot
// ownership is resolved automatically (§4.5 step 4) — off for
// manual/user-initiated ingest runs, which leave the game columns for
// a downstream enrichment pass.
func New(s *store.Store, loc *time.Location, autoMap bool) *Aggregator {
	return &Aggregator{store: s, tracker: session.New(), loc: loc, autoMap: autoMap}
}

// BatchResult summarizes one committed (or rolled-back) transaction
// for progress reporting.
type BatchResult struct {
	EntriesSeen      int
	EntriesInserted  int
	DuplicatesDropped int
	GroupsProcessed  int
	NewSessions      int
}

// group accumulates the entries sharing one session key within a
// batch, preserving file order.
type group struct {
	key     session.Key
	entries []*logparse.LogEntry
}

// ProcessBatch runs one full transaction over at most MaxBatchSize
// entries (§4.5). A cancellation observed between groups rolls the
// whole transaction back and returns pipeutil.ErrCancelled — no
// partial batch is ever committed.
func (a *Aggregator) ProcessBatch(ctx context.Context, entries []*logparse.LogEntry, cancelled CancelFunc) (BatchResult, error) {
	var result BatchResult
	result.EntriesSeen = len(entries)
	if len(entries) == 0 {
		return result, nil
	}

	groups := groupBySessionKey(entries)

	tx, err := a.store.BeginImmediate(ctx)
	if err != nil {
		return result, fmt.Errorf("begin batch transaction: %w", err)
	}

	for _, g := range groups {
		if cancelled != nil && cancelled() {
			tx.Rollback(ctx)
			return result, pipeutil.ErrCancelled
		}

		inserted, isNew, err := a.processGroup(ctx, tx, g)
		if err != nil {
			tx.Rollback(ctx)
			return result, fmt.Errorf("process group %s: %w", g.key, err)
		}
		if inserted == 0 {
			continue
		}
		result.GroupsProcessed++
		result.EntriesInserted += inserted
		if isNew {
			result.NewSessions++
		}
	}
	result.DuplicatesDropped = result.EntriesSeen - result.EntriesInserted

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit batch: %w", err)
	}
	return result, nil
}

// groupBySessionKey partitions entries by session key, preserving the
// relative order of entries within each group (and thus their
// relative timestamp order, since files are processed in order —
// §5 ordering guarantees).
func groupBySessionKey(entries []*logparse.LogEntry) []group {
	index := make(map[string]int)
	var groups []group
	for _, e := range entries {
		key := session.Key{ClientIP: e.ClientIP, Service: e.Service, DepotID: e.DepotID}
		k := key.String()
		if i, ok := index[k]; ok {
			groups[i].entries = append(groups[i].entries, e)
			continue
		}
		index[k] = len(groups)
		groups = append(groups, group{key: key, entries: []*logparse.LogEntry{e}})
	}
	return groups
}

// processGroup implements §4.5 steps 1-5 for one session-key group
// within an already-open transaction. It returns the number of
// entries actually inserted and whether a new session was started.
func (a *Aggregator) processGroup(ctx context.Context, tx *store.ImmediateTx, g group) (inserted int, isNew bool, err error) {
	fresh, err := a.dropDuplicates(ctx, tx, g.entries)
	if err != nil {
		return 0, false, err
	}
	if len(fresh) == 0 {
		return 0, false, nil
	}

	agg := aggregate(fresh)

	isNew = a.tracker.Observe(g.key, agg.maxTime)

	var downloadID int64
	if isNew {
		if err := store.CloseActiveDownloads(ctx, tx, g.key.ClientIP, g.key.Service); err != nil {
			return 0, false, err
		}
		downloadID, err = a.insertNewDownload(ctx, tx, g.key, agg)
		if err != nil {
			return 0, false, err
		}
	} else {
		existing, err := store.FindActiveDownload(ctx, tx, g.key.ClientIP, g.key.Service, g.key.DepotID)
		if err != nil {
			return 0, false, err
		}
		if existing == nil {
			// Cleanup service may have retired the Download we expected
			// to extend; fall back to starting a new one.
			isNew = true
			if err := store.CloseActiveDownloads(ctx, tx, g.key.ClientIP, g.key.Service); err != nil {
				return 0, false, err
			}
			downloadID, err = a.insertNewDownload(ctx, tx, g.key, agg)
			if err != nil {
				return 0, false, err
			}
		} else {
			downloadID = existing.ID
			endLocal := pipeutil.UTCToLocal(agg.maxTime, a.loc)
			if err := store.ExtendDownload(ctx, tx, downloadID, pipeutil.FormatUTC(agg.maxTime), endLocal, agg.lastURL, agg.hitBytes, agg.missBytes); err != nil {
				return 0, false, err
			}
		}
	}

	if err := a.resolveGame(ctx, tx, downloadID, g.key); err != nil {
		return 0, false, err
	}

	endLocal := pipeutil.UTCToLocal(agg.maxTime, a.loc)
	if err := store.UpsertClientStats(ctx, tx, g.key.ClientIP, pipeutil.FormatUTC(agg.maxTime), endLocal, agg.hitBytes, agg.missBytes, isNew); err != nil {
		return 0, false, err
	}
	if err := store.UpsertServiceStats(ctx, tx, g.key.Service, pipeutil.FormatUTC(agg.maxTime), endLocal, agg.hitBytes, agg.missBytes, isNew); err != nil {
		return 0, false, err
	}

	for _, e := range fresh {
		row := toLogEntryRow(e)
		if err := store.InsertLogEntry(ctx, tx, row, downloadID); err != nil {
			return 0, false, err
		}
	}

	return len(fresh), isNew, nil
}

func (a *Aggregator) insertNewDownload(ctx context.Context, tx *store.ImmediateTx, key session.Key, agg aggregation) (int64, error) {
	startLocal := pipeutil.UTCToLocal(agg.minTime, a.loc)
	endLocal := pipeutil.UTCToLocal(agg.maxTime, a.loc)
	return store.InsertDownload(ctx, tx, &store.Download{
		Service:        key.Service,
		ClientIP:       key.ClientIP,
		StartTimeUTC:   pipeutil.FormatUTC(agg.minTime),
		EndTimeUTC:     pipeutil.FormatUTC(agg.maxTime),
		StartTimeLocal: startLocal,
		EndTimeLocal:   endLocal,
		CacheHitBytes:  agg.hitBytes,
		CacheMissBytes: agg.missBytes,
		LastURL:        agg.lastURL,
		DepotID:        agg.depotID,
	})
}

// resolveGame implements §4.5 step 4: only when auto-map is on, the
// service is Steam, and a primary depot id exists.
func (a *Aggregator) resolveGame(ctx context.Context, tx *store.ImmediateTx, downloadID int64, key session.Key) error {
	if !a.autoMap || key.Service != "steam" || key.DepotID == nil {
		return nil
	}
	appID, appName, ok, err := store.ResolveOwnedApp(ctx, tx, *key.DepotID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return store.AnnotateGame(ctx, tx, downloadID, appID, appName)
}

// dropDuplicates implements §4.5 step 1: probe the raw-entry table
// for an exact 5-tuple match and discard matches.
func (a *Aggregator) dropDuplicates(ctx context.Context, tx *store.ImmediateTx, entries []*logparse.LogEntry) ([]*logparse.LogEntry, error) {
	fresh := entries[:0:0]
	for _, e := range entries {
		dup, err := store.DuplicateExists(ctx, tx, e.ClientIP, e.Service, e.TimestampUTC, e.URL, e.BytesServed)
		if err != nil {
			return nil, err
		}
		if dup {
			continue
		}
		fresh = append(fresh, e)
	}
	return fresh, nil
}

type aggregation struct {
	minTime   time.Time
	maxTime   time.Time
	hitBytes  int64
	missBytes int64
	lastURL   string
	depotID   *int64
}

// aggregate computes §4.5 step 2 over a group's surviving entries:
// min/max timestamp, hit/miss byte sums, the most-frequent depot id,
// and the last URL (by timestamp order, which is file order).
func aggregate(entries []*logparse.LogEntry) aggregation {
	depotCounts := make(map[int64]int)
	var agg aggregation

	for i, e := range entries {
		ts, err := pipeutil.ParseUTC(e.TimestampUTC)
		if err != nil {
			continue
		}
		if i == 0 || ts.Before(agg.minTime) {
			agg.minTime = ts
		}
		if i == 0 || !ts.Before(agg.maxTime) {
			agg.maxTime = ts
			agg.lastURL = e.URL
		}
		switch e.CacheStatus {
		case logparse.CacheHit:
			agg.hitBytes += e.BytesServed
		case logparse.CacheMiss:
			agg.missBytes += e.BytesServed
		}
		if e.DepotID != nil {
			depotCounts[*e.DepotID]++
		}
	}

	agg.depotID = mostFrequentDepot(depotCounts)
	return agg
}

func mostFrequentDepot(counts map[int64]int) *int64 {
	if len(counts) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	best := ids[0]
	for _, id := range ids[1:] {
		if counts[id] > counts[best] {
			best = id
		}
	}
	return &best
}

func toLogEntryRow(e *logparse.LogEntry) *store.LogEntry {
	return &store.LogEntry{
		TimestampUTC: e.TimestampUTC,
		ClientIP:     e.ClientIP,
		Service:      e.Service,
		Method:       e.Method,
		URL:          e.URL,
		StatusCode:   e.StatusCode,
		BytesServed:  e.BytesServed,
		CacheStatus:  string(e.CacheStatus),
		DepotID:      e.DepotID,
	}
}
