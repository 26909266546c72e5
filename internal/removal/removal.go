// Package removal coordinates deletion across the three stores that
// must stay consistent — log files, cache files, and the database
// (C9, §4.9). Every variant (by service, by game, by corruption)
// shares the same ordered skeleton: rewrite logs, unlink cache files,
// check for permission errors, then — only if clean — prune the
// database.
package removal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lancache-ops/cache-pipeline/internal/cachekey"
	"github.com/lancache-ops/cache-pipeline/internal/logdiscovery"
	"github.com/lancache-ops/cache-pipeline/internal/logparse"
	"github.com/lancache-ops/cache-pipeline/internal/logreader"
	"github.com/lancache-ops/cache-pipeline/internal/store"
)

const dbBatchSize = 500

// Result tallies the work done by one removal run.
type Result struct {
	FilesRewritten   int
	FilesDeleted     int
	LinesRemoved     int
	FilesUnlinked    int
	BytesFreed       int64
	DirsRemoved      int
	PermissionErrors []string
	FilesSkipped     int
	Warnings         []string
	Aborted          bool
}

// Engine runs removal operations against one store/cache root/log dir.
type Engine struct {
	store     *store.Store
	cacheRoot string
	logDir    string
	logBase   string
}

// New returns an Engine. logDir/logBase identify the access log whose
// rotations get rewritten in step 2.
func New(s *store.Store, cacheRoot, logDir, logBase string) *Engine {
	return &Engine{store: s, cacheRoot: cacheRoot, logDir: logDir, logBase: logBase}
}

// RemoveService deletes the log lines, cache files, and database rows
// for service. Log lines and cache files are matched against the URLs
// that log_entries records for service; a log line or cache file whose
// URL has no log_entries row is left in place. Every log_entries and
// downloads row for service is deleted.
func (e *Engine) RemoveService(ctx context.Context, service string) (Result, error) {
	targets, err := store.TargetsForService(ctx, e.store.DB(), service)
	if err != nil {
		return Result{}, err
	}
	ids, err := store.DownloadsByService(ctx, e.store.DB(), service)
	if err != nil {
		return Result{}, err
	}
	return e.run(ctx, targets, ids, service)
}

// RemoveGame deletes every log line, cache file, and database row
// attributed to the Steam app appID.
func (e *Engine) RemoveGame(ctx context.Context, appID int64) (Result, error) {
	targets, err := store.TargetsForGame(ctx, e.store.DB(), appID)
	if err != nil {
		return Result{}, err
	}
	ids, err := store.DownloadsForGame(ctx, e.store.DB(), appID)
	if err != nil {
		return Result{}, err
	}
	return e.run(ctx, targets, ids, "")
}

// CorruptedInput is the slice of a corruption.Report this package
// needs, kept narrow so removal doesn't import corruption just to
// avoid a struct literal at call sites.
type CorruptedInput struct {
	Service string
	URL     string
	MaxSize int64
}

// RemoveCorrupted deletes every URL a corruption scan flagged. There
// are no Downloads to prune directly — corrupted URLs are removed at
// the log-entry level only; any Download left with zero log entries
// is harmless and ages out naturally.
func (e *Engine) RemoveCorrupted(ctx context.Context, corrupted []CorruptedInput) (Result, error) {
	targets := make([]store.RemovalTarget, len(corrupted))
	for i, c := range corrupted {
		targets[i] = store.RemovalTarget{Service: c.Service, URL: c.URL, MaxSize: c.MaxSize}
	}
	return e.run(ctx, targets, nil, "")
}

// run executes §4.9 steps 2-6 for an already-derived target set.
// downloadIDs, if non-empty, are pruned directly (service/game
// variants); deleteByService, if set, also removes every remaining
// log entry for that service in one statement rather than by URL list
// (cheaper, and exact for the service-scoped case).
func (e *Engine) run(ctx context.Context, targets []store.RemovalTarget, downloadIDs []int64, deleteByService string) (Result, error) {
	var result Result

	urlSet := buildURLSet(targets)

	if err := e.rewriteLogs(urlSet, &result); err != nil {
		return result, fmt.Errorf("rewrite logs: %w", err)
	}

	touchedDirs := e.unlinkCacheFiles(ctx, targets, &result)

	if len(result.PermissionErrors) > 0 {
		result.Aborted = true
		return result, fmt.Errorf("removal aborted after %d permission error(s); database untouched", len(result.PermissionErrors))
	}

	if err := e.pruneDB(ctx, targets, downloadIDs, deleteByService); err != nil {
		return result, fmt.Errorf("prune database: %w", err)
	}

	e.cleanupEmptyDirs(touchedDirs, &result)

	return result, nil
}

func buildURLSet(targets []store.RemovalTarget) map[string]map[string]bool {
	set := make(map[string]map[string]bool)
	for _, t := range targets {
		byService, ok := set[t.Service]
		if !ok {
			byService = make(map[string]bool)
			set[t.Service] = byService
		}
		byService[t.URL] = true
	}
	return set
}

// rewriteLogs implements §4.9 step 2: stream every discovered rotation
// through a filter that drops lines matching the removal set, writing
// survivors to a same-codec temp file and swapping it in atomically.
func (e *Engine) rewriteLogs(urlSet map[string]map[string]bool, result *Result) error {
	files, err := logdiscovery.Discover(e.logDir, e.logBase)
	if err != nil {
		return err
	}

	for _, f := range files {
		removed, kept, err := e.rewriteFile(f.Path, urlSet)
		if err != nil {
			if errors.Is(err, os.ErrPermission) {
				result.PermissionErrors = append(result.PermissionErrors, err.Error())
				continue
			}
			var corrupt *logreader.CorruptFileError
			if errors.As(err, &corrupt) {
				result.Warnings = append(result.Warnings, err.Error())
				result.FilesSkipped++
				continue
			}
			return err
		}
		result.LinesRemoved += removed
		if kept == 0 && removed > 0 {
			result.FilesDeleted++
		} else if removed > 0 {
			result.FilesRewritten++
		}
	}
	return nil
}

func (e *Engine) rewriteFile(path string, urlSet map[string]map[string]bool) (removed, kept int, err error) {
	r, err := logreader.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer r.Close()

	tmpPath := path + ".removal-tmp"
	w, err := logreader.CreateSibling(tmpPath)
	if err != nil {
		return 0, 0, err
	}

	for {
		line, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			w.Close()
			os.Remove(tmpPath)
			return 0, 0, err
		}

		if matchesRemovalSet(line, urlSet) {
			removed++
			continue
		}
		kept++
		if err := w.WriteLine(line); err != nil {
			w.Close()
			os.Remove(tmpPath)
			return 0, 0, err
		}
	}

	if err := w.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, 0, err
	}

	if removed == 0 {
		os.Remove(tmpPath)
		return 0, kept, nil
	}

	if kept == 0 {
		os.Remove(tmpPath)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, kept, err
		}
		return removed, kept, nil
	}

	if err := os.Rename(tmpPath, path); err != nil {
		// Fallback when rename is blocked by an open handle (§4.9 step
		// 2): copy the rewritten content over the original, then remove
		// the temp file.
		if copyErr := copyFile(tmpPath, path); copyErr != nil {
			return removed, kept, copyErr
		}
		os.Remove(tmpPath)
	}
	return removed, kept, nil
}

func matchesRemovalSet(line string, urlSet map[string]map[string]bool) bool {
	entry, ok := logparse.ParseAccessLine(line, nil)
	if !ok {
		return false
	}
	byService, ok := urlSet[entry.Service]
	if !ok {
		return false
	}
	return byService[entry.URL]
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// unlinkCacheFiles implements §4.9 step 3: for each target, derive
// every cache-key candidate and unlink the ones present, in parallel
// across targets. Returns the set of parent directories touched, for
// step 6's bottom-up cleanup.
func (e *Engine) unlinkCacheFiles(ctx context.Context, targets []store.RemovalTarget, result *Result) []string {
	var (
		mu      sync.Mutex
		dirSet  = make(map[string]bool)
		bytes   int64
		unlinks int
		perms   []string
	)

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workerCount())

	for _, t := range targets {
		t := t
		g.Go(func() error {
			candidates := cachekey.DerivePaths(t.Service, t.URL, t.MaxSize)
			for _, c := range candidates {
				full := filepath.Join(e.cacheRoot, c.Path)
				info, err := os.Stat(full)
				if err != nil {
					continue // not present under this candidate; not an error
				}
				if err := os.Remove(full); err != nil {
					if os.IsPermission(err) {
						mu.Lock()
						perms = append(perms, err.Error())
						mu.Unlock()
						continue
					}
					continue
				}
				mu.Lock()
				bytes += info.Size()
				unlinks++
				dirSet[filepath.Dir(full)] = true
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	result.BytesFreed += bytes
	result.FilesUnlinked += unlinks
	result.PermissionErrors = append(result.PermissionErrors, perms...)

	dirs := make([]string, 0, len(dirSet))
	for d := range dirSet {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// pruneDB implements §4.9 step 5: child log entries before parent
// rows, batched to stay inside parameter limits.
func (e *Engine) pruneDB(ctx context.Context, targets []store.RemovalTarget, downloadIDs []int64, deleteByService string) error {
	tx, err := e.store.BeginImmediate(ctx)
	if err != nil {
		return err
	}

	if deleteByService != "" {
		if err := store.DeleteLogEntriesByService(ctx, tx, deleteByService); err != nil {
			tx.Rollback(ctx)
			return err
		}
	} else {
		byService := buildURLSet(targets)
		for service, urls := range byService {
			urlList := make([]string, 0, len(urls))
			for u := range urls {
				urlList = append(urlList, u)
			}
			sort.Strings(urlList)
			if err := store.DeleteLogEntriesByURLs(ctx, tx, service, urlList, dbBatchSize); err != nil {
				tx.Rollback(ctx)
				return err
			}
		}
	}

	if len(downloadIDs) > 0 {
		if err := store.DeleteDownloads(ctx, tx, downloadIDs, dbBatchSize); err != nil {
			tx.Rollback(ctx)
			return err
		}
	}

	return tx.Commit(ctx)
}

// cleanupEmptyDirs implements §4.9 step 6: remove now-empty
// directories bottom-up, never stepping outside the cache root.
func (e *Engine) cleanupEmptyDirs(dirs []string, result *Result) {
	root := filepath.Clean(e.cacheRoot)
	for i := len(dirs) - 1; i >= 0; i-- {
		dir := dirs[i]
		for dir != root && filepathHasPrefix(dir, root) {
			entries, err := os.ReadDir(dir)
			if err != nil || len(entries) > 0 {
				break
			}
			if err := os.Remove(dir); err != nil {
				break
			}
			result.DirsRemoved++
			dir = filepath.Dir(dir)
		}
	}
}

func filepathHasPrefix(path, prefix string) bool {
	rel, err := filepath.Rel(prefix, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func workerCount() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}
