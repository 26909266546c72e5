// Package corruption implements the two-pass miss-count corruption
// detector (C8, §4.8): any (service, url) pair that misses the cache
// often enough is flagged as corrupted so the removal engine (C9) can
// purge it and force a re-download.
package corruption

import (
	"context"
	"errors"
	"io"
	"sort"

	"github.com/lancache-ops/cache-pipeline/internal/cachekey"
	"github.com/lancache-ops/cache-pipeline/internal/logdiscovery"
	"github.com/lancache-ops/cache-pipeline/internal/logparse"
	"github.com/lancache-ops/cache-pipeline/internal/logreader"
	"github.com/lancache-ops/cache-pipeline/internal/pipeutil"
)

// DefaultThreshold is the miss count at or above which a URL is
// classified as corrupted (§4.8).
const DefaultThreshold = 3

// pruneEvery is the tally cadence at which stale keys are discarded
// (§4.8, §9 design note on memory bounds).
const pruneEvery = 100_000

// tally is the per-(service,url) running state of pass 1.
type tally struct {
	count   int
	maxSize int64
}

// key identifies one (service, url) pair.
type key struct {
	service string
	url     string
}

// Detector runs the two-pass algorithm over a directory of discovered
// log files, sharing C2/C3 (logdiscovery/logreader/logparse) with the
// ingest path.
type Detector struct {
	threshold int
}

// CancelFunc reports whether the operator has asked the run to stop.
type CancelFunc func() bool

// Record describes one corrupted URL in the detailed report.
type Record struct {
	Service   string `json:"service"`
	URL       string `json:"url"`
	Count     int    `json:"count"`
	MaxSize   int64  `json:"max_size"`
	CachePath string `json:"cache_path"`
}

// Report is the complete output of one detection run.
type Report struct {
	Threshold      int            `json:"threshold"`
	URLsTallied    int            `json:"urls_tallied"`
	Corrupted      []Record       `json:"corrupted,omitempty"`
	ServiceCounts  map[string]int `json:"service_counts,omitempty"`
	TotalCorrupted int            `json:"total_corrupted"`
	FilesProcessed int            `json:"files_processed"`
	FilesSkipped   int            `json:"files_skipped"`
	Warnings       []string       `json:"warnings,omitempty"`
}

// New returns a Detector using threshold (or DefaultThreshold if <= 0).
func New(threshold int) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{threshold: threshold}
}

// Detect walks every rotation of base under dir and returns a Report.
// When detailed is true the report carries one Record per corrupted
// URL; otherwise it carries the per-service summary (§4.8).
func (d *Detector) Detect(ctx context.Context, dir, base string, detailed bool, cancelled CancelFunc) (Report, error) {
	report := Report{Threshold: d.threshold}

	files, err := logdiscovery.Discover(dir, base)
	if err != nil {
		return report, err
	}

	tallies := make(map[key]*tally)
	pruner := pipeutil.NewPruner(pruneEvery)

	for _, f := range files {
		if cancelled != nil && cancelled() {
			return report, pipeutil.ErrCancelled
		}
		if err := d.scanFile(f.Path, tallies, pruner, cancelled); err != nil {
			var corrupt *logreader.CorruptFileError
			if errors.As(err, &corrupt) {
				report.Warnings = append(report.Warnings, err.Error())
				report.FilesSkipped++
				continue
			}
			return report, err
		}
		report.FilesProcessed++
	}

	report.URLsTallied = len(tallies)
	d.classify(tallies, detailed, &report)
	return report, nil
}

func (d *Detector) scanFile(path string, tallies map[key]*tally, pruner *pipeutil.Pruner, cancelled CancelFunc) error {
	r, err := logreader.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	lineCount := 0
	for {
		line, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		lineCount++
		if lineCount%1000 == 0 && cancelled != nil && cancelled() {
			return pipeutil.ErrCancelled
		}

		entry, ok := logparse.ParseAccessLine(line, nil)
		if !ok || pipeutil.IsHealthCheckURL(entry.URL) {
			continue
		}
		if entry.CacheStatus != logparse.CacheMiss && entry.CacheStatus != logparse.CacheUnknown {
			continue
		}

		k := key{service: entry.Service, url: entry.URL}
		t, ok := tallies[k]
		if !ok {
			t = &tally{}
			tallies[k] = t
		}
		t.count++
		if entry.BytesServed > t.maxSize {
			t.maxSize = entry.BytesServed
		}

		if pruner.Tick() {
			prune(tallies, d.threshold)
		}
	}
	return nil
}

// prune discards keys whose count has fallen below threshold-1,
// releasing their backing storage (§4.8, §9 memory-bounds note).
func prune(tallies map[key]*tally, threshold int) {
	floor := threshold - 1
	for k, t := range tallies {
		if t.count < floor {
			delete(tallies, k)
		}
	}
}

func (d *Detector) classify(tallies map[key]*tally, detailed bool, report *Report) {
	if detailed {
		var records []Record
		for k, t := range tallies {
			if t.count < d.threshold {
				continue
			}
			path := cachekey.DerivePaths(k.service, k.url, t.maxSize)[0].Path
			records = append(records, Record{
				Service:   k.service,
				URL:       k.url,
				Count:     t.count,
				MaxSize:   t.maxSize,
				CachePath: path,
			})
		}
		sort.Slice(records, func(i, j int) bool {
			if records[i].Service != records[j].Service {
				return records[i].Service < records[j].Service
			}
			return records[i].URL < records[j].URL
		})
		report.Corrupted = records
		return
	}

	counts := make(map[string]int)
	total := 0
	for k, t := range tallies {
		if t.count < d.threshold {
			continue
		}
		counts[k.service]++
		total++
	}
	report.ServiceCounts = counts
	report.TotalCorrupted = total
}

