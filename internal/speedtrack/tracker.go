// Package speedtrack implements the live throughput snapshotter
// (C10, §4.10): it tails one or more access logs from their current
// end offset and emits rolling-window JSON snapshots to stdout, for a
// dashboard to render without ever touching the database write path.
package speedtrack

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sort"
	"time"

	"github.com/lancache-ops/cache-pipeline/internal/logger"
	"github.com/lancache-ops/cache-pipeline/internal/logparse"
	"github.com/lancache-ops/cache-pipeline/internal/store"
)

// Tuning constants from §4.10.
const (
	WindowSeconds      = 2
	BroadcastInterval  = 500 * time.Millisecond
	PollInterval       = 100 * time.Millisecond
)

type entry struct {
	timestamp time.Time
	clientIP  string
	service   string
	depotID   *int64
	bytesSent int64
	isHit     bool
}

type depotInfo struct {
	gameName string
	gameAppID *int64
}

// GameSpeed is one (depot, client) group's throughput within the
// window.
type GameSpeed struct {
	DepotID          int64   `json:"depotId"`
	GameName         *string `json:"gameName"`
	GameAppID        *int64  `json:"gameAppId"`
	Service          string  `json:"service"`
	ClientIP         string  `json:"clientIp"`
	BytesPerSecond   float64 `json:"bytesPerSecond"`
	TotalBytes       int64   `json:"totalBytes"`
	RequestCount     int     `json:"requestCount"`
	CacheHitBytes    int64   `json:"cacheHitBytes"`
	CacheMissBytes   int64   `json:"cacheMissBytes"`
	CacheHitPercent  float64 `json:"cacheHitPercent"`
}

// ClientSpeed is one client's aggregate throughput within the window.
type ClientSpeed struct {
	ClientIP       string  `json:"clientIp"`
	BytesPerSecond float64 `json:"bytesPerSecond"`
	TotalBytes     int64   `json:"totalBytes"`
	ActiveGames    int     `json:"activeGames"`
	CacheHitBytes  int64   `json:"cacheHitBytes"`
	CacheMissBytes int64   `json:"cacheMissBytes"`
}

// Snapshot is one broadcast frame (§4.10).
type Snapshot struct {
	TimestampUTC         string        `json:"timestampUtc"`
	TotalBytesPerSecond  float64       `json:"totalBytesPerSecond"`
	GameSpeeds           []GameSpeed   `json:"gameSpeeds"`
	ClientSpeeds         []ClientSpeed `json:"clientSpeeds"`
	WindowSeconds        int           `json:"windowSeconds"`
	EntriesInWindow      int           `json:"entriesInWindow"`
	HasActiveDownloads   bool          `json:"hasActiveDownloads"`
}

// Tracker tails a set of access logs and maintains the rolling window.
type Tracker struct {
	store         *store.Store
	loc           *time.Location
	logPaths      []string
	entries       []entry
	depotCache    map[int64]depotInfo
	filePositions map[string]int64
	out           io.Writer
}

// New returns a Tracker over logPaths, resolving depot->game lookups
// against s.
func New(s *store.Store, loc *time.Location, logPaths []string) *Tracker {
	return &Tracker{
		store:         s,
		loc:           loc,
		logPaths:      logPaths,
		depotCache:    make(map[int64]depotInfo),
		filePositions: make(map[string]int64),
		out:           os.Stdout,
	}
}

// Run polls and broadcasts until ctx is cancelled, matching the
// process-per-worker model where this command simply runs until the
// supervisor kills it (§6). It returns ctx.Err() on cancellation, or
// the error from writing a snapshot; read errors on a log file are
// logged and do not stop it.
func (t *Tracker) Run(ctx context.Context) error {
	for _, p := range t.logPaths {
		if info, err := os.Stat(p); err == nil {
			t.filePositions[p] = info.Size()
		}
	}
	logger.Info("speed tracker started", "files", len(t.logPaths))

	pollTicker := time.NewTicker(PollInterval)
	defer pollTicker.Stop()
	broadcastTicker := time.NewTicker(BroadcastInterval)
	defer broadcastTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pollTicker.C:
			for _, p := range t.logPaths {
				if err := t.readNewEntries(p); err != nil {
					logger.Warn("speed tracker read error", "path", p, "error", err)
				}
			}
			t.cleanOldEntries()
		case <-broadcastTicker.C:
			snapshot := t.snapshot()
			if err := t.emit(snapshot); err != nil {
				return err
			}
		}
	}
}

func (t *Tracker) emit(s Snapshot) error {
	enc := json.NewEncoder(t.out)
	return enc.Encode(s)
}

func (t *Tracker) readNewEntries(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	currentSize := info.Size()
	lastPos := t.filePositions[path]

	if currentSize < lastPos {
		logger.Info("speed tracker observed log rotation", "path", path)
		t.filePositions[path] = 0
		return nil
	}
	if currentSize == lastPos {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Seek(lastPos, io.SeekStart); err != nil {
		return err
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 512*1024)

	newPos := lastPos
	for scanner.Scan() {
		line := scanner.Text()
		newPos += int64(len(line)) + 1
		if parsed, ok := logparse.ParseAccessLine(line, t.loc); ok {
			ts, err := parsedTimestamp(parsed.TimestampUTC)
			if err != nil {
				continue
			}
			t.entries = append(t.entries, entry{
				timestamp: ts,
				clientIP:  parsed.ClientIP,
				service:   parsed.Service,
				depotID:   parsed.DepotID,
				bytesSent: parsed.BytesServed,
				isHit:     parsed.CacheStatus == logparse.CacheHit,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	t.filePositions[path] = newPos
	return nil
}

func parsedTimestamp(raw string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05Z", raw)
}

func (t *Tracker) cleanOldEntries() {
	cutoff := time.Now().UTC().Add(-WindowSeconds * time.Second)
	i := 0
	for i < len(t.entries) && t.entries[i].timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		t.entries = append(t.entries[:0], t.entries[i:]...)
	}
}

type depotGroupKey struct {
	depotID  int64
	clientIP string
}

// snapshot implements §4.10's per-broadcast aggregation, mirroring the
// depot-group / client-group split of the original tailer.
func (t *Tracker) snapshot() Snapshot {
	now := time.Now().UTC()
	cutoff := now.Add(-WindowSeconds * time.Second)

	var window []entry
	for _, e := range t.entries {
		if !e.timestamp.Before(cutoff) {
			window = append(window, e)
		}
	}

	depotGroups := make(map[depotGroupKey][]entry)
	for _, e := range window {
		if e.depotID != nil {
			k := depotGroupKey{depotID: *e.depotID, clientIP: e.clientIP}
			depotGroups[k] = append(depotGroups[k], e)
		}
	}

	for k := range depotGroups {
		t.lookupDepot(k.depotID)
	}

	gameSpeeds := make([]GameSpeed, 0, len(depotGroups))
	for k, entries := range depotGroups {
		var total, hitBytes int64
		for _, e := range entries {
			total += e.bytesSent
			if e.isHit {
				hitBytes += e.bytesSent
			}
		}
		missBytes := total - hitBytes
		var hitPct float64
		if total > 0 {
			hitPct = float64(hitBytes) / float64(total) * 100
		}

		info := t.depotCache[k.depotID]
		var gameName *string
		if info.gameName != "" {
			name := info.gameName
			gameName = &name
		}

		gameSpeeds = append(gameSpeeds, GameSpeed{
			DepotID:         k.depotID,
			GameName:        gameName,
			GameAppID:       info.gameAppID,
			Service:         entries[0].service,
			ClientIP:        k.clientIP,
			BytesPerSecond:  float64(total) / WindowSeconds,
			TotalBytes:      total,
			RequestCount:    len(entries),
			CacheHitBytes:   hitBytes,
			CacheMissBytes:  missBytes,
			CacheHitPercent: hitPct,
		})
	}
	sort.Slice(gameSpeeds, func(i, j int) bool { return gameSpeeds[i].BytesPerSecond > gameSpeeds[j].BytesPerSecond })

	clientGroups := make(map[string][]entry)
	for _, e := range window {
		clientGroups[e.clientIP] = append(clientGroups[e.clientIP], e)
	}

	clientSpeeds := make([]ClientSpeed, 0, len(clientGroups))
	for clientIP, entries := range clientGroups {
		var total, hitBytes int64
		depots := make(map[int64]bool)
		for _, e := range entries {
			total += e.bytesSent
			if e.isHit {
				hitBytes += e.bytesSent
			}
			if e.depotID != nil {
				depots[*e.depotID] = true
			}
		}
		clientSpeeds = append(clientSpeeds, ClientSpeed{
			ClientIP:       clientIP,
			BytesPerSecond: float64(total) / WindowSeconds,
			TotalBytes:     total,
			ActiveGames:    len(depots),
			CacheHitBytes:  hitBytes,
			CacheMissBytes: total - hitBytes,
		})
	}
	sort.Slice(clientSpeeds, func(i, j int) bool { return clientSpeeds[i].BytesPerSecond > clientSpeeds[j].BytesPerSecond })

	var totalBytes int64
	hasActive := false
	for _, e := range window {
		totalBytes += e.bytesSent
		if e.depotID != nil {
			hasActive = true
		}
	}

	return Snapshot{
		TimestampUTC:        now.Format("2006-01-02T15:04:05.000Z"),
		TotalBytesPerSecond: float64(totalBytes) / WindowSeconds,
		GameSpeeds:          gameSpeeds,
		ClientSpeeds:        clientSpeeds,
		WindowSeconds:       WindowSeconds,
		EntriesInWindow:     len(window),
		HasActiveDownloads:  hasActive,
	}
}

// lookupDepot resolves depotID to a game name/app id, caching only
// successful lookups so a mapping recorded later by the ingest worker
// is picked up on the next miss (§4.10).
func (t *Tracker) lookupDepot(depotID int64) {
	if cached, ok := t.depotCache[depotID]; ok && cached.gameName != "" {
		return
	}

	appID, appName, ok, err := store.ResolveOwnedApp(context.Background(), t.store.DB(), depotID)
	if err != nil || !ok {
		return
	}
	id := appID
	t.depotCache[depotID] = depotInfo{gameName: appName, gameAppID: &id}
}
