// Package cacheindex builds an in-memory map of every cache object on
// disk (C7, §4.7), keyed by hash so an existence check is a map lookup
// rather than a filesystem probe. The top-level
// hex shard directories are walked concurrently, one goroutine per
// shard, bounded to the host's core count.
package cacheindex

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Entry describes one file found under the cache root.
type Entry struct {
	Hash string
	Path string
	Size int64
}

// Index maps a cache-key hash to its on-disk entry.
type Index struct {
	entries map[string]Entry
}

// Lookup returns the entry for hash, if present.
func (idx *Index) Lookup(hash string) (Entry, bool) {
	e, ok := idx.entries[hash]
	return e, ok
}

// Len returns the number of indexed files.
func (idx *Index) Len() int { return len(idx.entries) }

// All returns every indexed entry. The caller must not mutate the
// returned slice's backing entries.
func (idx *Index) All() []Entry {
	out := make([]Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		out = append(out, e)
	}
	return out
}

// Build walks root's top-level shard directories in parallel and
// returns the resulting Index. root is expected to follow the
// {root}/{h[30:32]}/{h[28:30]}/{h} layout from internal/cachekey; any
// file found that isn't two directories deep is still indexed by its
// base name, since a corrupted or manually placed file should still
// show up for removal/size accounting rather than vanish silently.
func Build(root string) (*Index, error) {
	shards, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return &Index{entries: map[string]Entry{}}, nil
		}
		return nil, err
	}

	var (
		mu  sync.Mutex
		idx = &Index{entries: make(map[string]Entry)}
	)

	g := new(errgroup.Group)
	g.SetLimit(workerCount())

	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		shardPath := filepath.Join(root, shard.Name())
		g.Go(func() error {
			found, err := walkShard(shardPath)
			if err != nil {
				return err
			}
			mu.Lock()
			for _, e := range found {
				idx.entries[e.Hash] = e
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return idx, nil
}

func walkShard(dir string) ([]Entry, error) {
	var found []Entry
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		found = append(found, Entry{
			Hash: info.Name(),
			Path: path,
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func workerCount() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}
