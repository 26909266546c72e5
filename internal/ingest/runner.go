package ingest

import (
	"context"
	"errors"
	"io"

	"github.com/lancache-ops/cache-pipeline/internal/logdiscovery"
	"github.com/lancache-ops/cache-pipeline/internal/logger"
	"github.com/lancache-ops/cache-pipeline/internal/logparse"
	"github.com/lancache-ops/cache-pipeline/internal/logreader"
	"github.com/lancache-ops/cache-pipeline/internal/pipeutil"
)

// lineCheckInterval matches the "every 1,000 parsed lines" cancellation
// cadence of §4.5.
const lineCheckInterval = 1000

// RunSummary totals a full ingest run across every discovered file.
type RunSummary struct {
	FilesProcessed int
	FilesSkipped   int
	LinesParsed    int
	BatchResult
	Warnings []string
}

func (s *RunSummary) merge(b BatchResult) {
	s.LinesParsed += b.EntriesSeen
	s.EntriesSeen += b.EntriesSeen
	s.EntriesInserted += b.EntriesInserted
	s.DuplicatesDropped += b.DuplicatesDropped
	s.GroupsProcessed += b.GroupsProcessed
	s.NewSessions += b.NewSessions
}

// RunDir discovers every rotation of base under dir (oldest first,
// per C1) and ingests them in order through a, honoring cancelled at
// every point named in §4.5. A single corrupt file is logged and
// skipped — it never aborts the run (§4.2, §7 item 2).
func (a *Aggregator) RunDir(ctx context.Context, dir, base string, cancelled CancelFunc) (RunSummary, error) {
	var summary RunSummary

	files, err := logdiscovery.Discover(dir, base)
	if err != nil {
		return summary, err
	}

	for _, f := range files {
		if cancelled != nil && cancelled() {
			return summary, pipeutil.ErrCancelled
		}

		batch, err := a.ingestFile(ctx, f.Path, cancelled, &summary)
		if errors.Is(err, pipeutil.ErrCancelled) {
			return summary, pipeutil.ErrCancelled
		}
		summary.merge(batch)
		if err != nil {
			var corrupt *logreader.CorruptFileError
			if errors.As(err, &corrupt) {
				logger.Warn("skipping corrupt log file", "path", f.Path, "error", err)
				summary.Warnings = append(summary.Warnings, err.Error())
				summary.FilesSkipped++
				continue
			}
			return summary, err
		}
		summary.FilesProcessed++
	}
	return summary, nil
}

// ingestFile streams one file, batching parsed entries into
// at-most-MaxBatchSize groups and committing each as it fills.
func (a *Aggregator) ingestFile(ctx context.Context, path string, cancelled CancelFunc, summary *RunSummary) (BatchResult, error) {
	var total BatchResult

	r, err := logreader.Open(path)
	if err != nil {
		return total, err
	}
	defer r.Close()

	var batch []*logparse.LogEntry
	lineCount := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		res, err := a.ProcessBatch(ctx, batch, cancelled)
		total.EntriesSeen += res.EntriesSeen
		total.EntriesInserted += res.EntriesInserted
		total.DuplicatesDropped += res.DuplicatesDropped
		total.GroupsProcessed += res.GroupsProcessed
		total.NewSessions += res.NewSessions
		batch = batch[:0]
		return err
	}

	for {
		line, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			flush()
			return total, err
		}

		lineCount++
		if lineCount%lineCheckInterval == 0 && cancelled != nil && cancelled() {
			if err := flush(); err != nil {
				return total, err
			}
			return total, pipeutil.ErrCancelled
		}

		entry, ok := logparse.ParseAccessLine(line, a.loc)
		if !ok || pipeutil.IsHealthCheckURL(entry.URL) {
			continue
		}
		batch = append(batch, entry)
		if len(batch) >= MaxBatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}

	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}
