// Package cachesize implements the parallel cache-usage scanner and
// deletion-time estimator (C13, §4.13): walk every top-level hex
// shard directory concurrently, tally files/dirs/bytes, then project
// three different deletion strategies' wall-clock cost from the
// observed scan throughput.
package cachesize

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// Base deletion-rate assumptions (§4.13), calibrated conservatively
// for NAS/HDD-class storage rather than best-case SSD throughput.
const (
	baseRatePreserve = 500.0   // files/sec, one unlink() per file
	baseRateFull     = 50000.0 // files/sec equivalent, one rmdir per directory tree
	baseRateRsync    = 2000.0  // files/sec, rsync-to-empty overhead per file
)

func isHexDirName(name string) bool {
	if len(name) != 2 {
		return false
	}
	for _, r := range name {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}

// Totals accumulates the raw counts from the scan.
type Totals struct {
	TotalBytes       uint64
	TotalFiles       uint64
	TotalDirectories uint64
	HexDirectories   int
}

// DeletionEstimates holds the three projected deletion times, in
// both raw seconds and human-formatted strings (§4.13).
type DeletionEstimates struct {
	PreserveSeconds   float64 `json:"preserveSeconds"`
	FullSeconds       float64 `json:"fullSeconds"`
	RsyncSeconds      float64 `json:"rsyncSeconds"`
	PreserveFormatted string  `json:"preserveFormatted"`
	FullFormatted     string  `json:"fullFormatted"`
	RsyncFormatted    string  `json:"rsyncFormatted"`
}

// Result is the complete output of one cache-size scan.
type Result struct {
	TotalBytes             uint64            `json:"totalBytes"`
	TotalFiles             uint64            `json:"totalFiles"`
	TotalDirectories       uint64            `json:"totalDirectories"`
	HexDirectories         int               `json:"hexDirectories"`
	ScanDurationMs         int64             `json:"scanDurationMs"`
	EstimatedDeletionTimes DeletionEstimates `json:"estimatedDeletionTimes"`
	FormattedSize          string            `json:"formattedSize"`
	TimestampUTC           string            `json:"timestampUtc"`
}

// Scan walks cachePath's top-level hex shard directories in parallel
// and returns a full Result, including deletion-time estimates.
func Scan(cachePath string) (Result, error) {
	start := time.Now()

	info, err := os.Stat(cachePath)
	if err != nil {
		return Result{}, fmt.Errorf("cache directory does not exist: %s", cachePath)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("cache path is not a directory: %s", cachePath)
	}

	entries, err := os.ReadDir(cachePath)
	if err != nil {
		return Result{}, fmt.Errorf("read cache directory: %w", err)
	}

	var hexDirs []string
	for _, e := range entries {
		if e.IsDir() && isHexDirName(e.Name()) {
			hexDirs = append(hexDirs, filepath.Join(cachePath, e.Name()))
		}
	}

	var totalBytes, totalFiles, totalDirs uint64

	if len(hexDirs) > 0 {
		g := new(errgroup.Group)
		g.SetLimit(workerCount())
		for _, dir := range hexDirs {
			dir := dir
			g.Go(func() error {
				files, dirs, bytes, err := walkCount(dir)
				atomic.AddUint64(&totalFiles, files)
				atomic.AddUint64(&totalDirs, dirs)
				atomic.AddUint64(&totalBytes, bytes)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return Result{}, err
		}
	}

	scanDuration := time.Since(start)
	totals := Totals{TotalBytes: totalBytes, TotalFiles: totalFiles, TotalDirectories: totalDirs, HexDirectories: len(hexDirs)}

	return Result{
		TotalBytes:             totalBytes,
		TotalFiles:             totalFiles,
		TotalDirectories:       totalDirs,
		HexDirectories:         len(hexDirs),
		ScanDurationMs:         scanDuration.Milliseconds(),
		EstimatedDeletionTimes: estimateDeletionTimes(totals, scanDuration),
		FormattedSize:          humanize.Bytes(totalBytes),
		TimestampUTC:           time.Now().UTC().Format("2006-01-02T15:04:05Z"),
	}, nil
}

func walkCount(root string) (files, dirs, bytes uint64, err error) {
	err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			dirs++
			return nil
		}
		files++
		bytes += uint64(info.Size())
		return nil
	})
	return files, dirs, bytes, err
}

// estimateDeletionTimes projects deletion wall-clock time for three
// strategies from observed scan throughput (§4.13): faster scans
// imply a faster filesystem, so the base per-strategy rate is scaled
// by a speed factor clamped to [0.5x, 3x], then nudged upward for
// very large caches where disk activity dominates regardless of
// metadata speed.
func estimateDeletionTimes(t Totals, scanDuration time.Duration) DeletionEstimates {
	scanSecs := scanDuration.Seconds()
	if scanSecs < 0.1 {
		scanSecs = 0.1
	}
	filesPerSecScan := float64(t.TotalFiles) / scanSecs

	speedFactor := filesPerSecScan / 10000.0
	if speedFactor > 3.0 {
		speedFactor = 3.0
	}
	if speedFactor < 0.5 {
		speedFactor = 0.5
	}

	preserveRate := baseRatePreserve * speedFactor
	fullRate := baseRateFull * speedFactor
	rsyncRate := baseRateRsync * speedFactor

	preserveSeconds := float64(t.TotalFiles) / preserveRate
	if preserveSeconds < 1.0 {
		preserveSeconds = 1.0
	}

	fullSeconds := float64(t.HexDirectories)*0.5 + float64(t.TotalDirectories)/fullRate*10.0
	if fullSeconds < 0.5 {
		fullSeconds = 0.5
	}

	rsyncSeconds := float64(t.HexDirectories)*1.0 + float64(t.TotalFiles)/rsyncRate
	if rsyncSeconds < 1.0 {
		rsyncSeconds = 1.0
	}

	sizeFactor := float64(t.TotalBytes) / (100.0 * 1024 * 1024 * 1024)
	if sizeFactor > 2.0 {
		sizeFactor = 2.0
	}

	preserveSeconds *= 1.0 + sizeFactor*0.1
	fullSeconds *= 1.0 + sizeFactor*0.05
	rsyncSeconds *= 1.0 + sizeFactor*0.1

	return DeletionEstimates{
		PreserveSeconds:   preserveSeconds,
		FullSeconds:       fullSeconds,
		RsyncSeconds:      rsyncSeconds,
		PreserveFormatted: formatDuration(preserveSeconds),
		FullFormatted:     formatDuration(fullSeconds),
		RsyncFormatted:    formatDuration(rsyncSeconds),
	}
}

func formatDuration(seconds float64) string {
	switch {
	case seconds < 1.0:
		return "< 1 second"
	case seconds < 60:
		n := int(seconds)
		return pluralize(n, "second")
	case seconds < 3600:
		m := int(seconds) / 60
		s := int(seconds) % 60
		if s == 0 {
			return pluralize(m, "minute")
		}
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		h := int(seconds) / 3600
		m := (int(seconds) % 3600) / 60
		if m == 0 {
			return pluralize(h, "hour")
		}
		return fmt.Sprintf("%dh %dm", h, m)
	}
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func workerCount() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}
