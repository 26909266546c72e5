package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/lancache-ops/cache-pipeline/internal/config"
	"github.com/lancache-ops/cache-pipeline/internal/pipeutil"
	"github.com/lancache-ops/cache-pipeline/internal/progress"
)

// workerFunc does the actual work of one subcommand, returning the
// payload to record in the final progress event.
type workerFunc func(ctx context.Context, cfg *config.Config, r *progress.Reporter) (any, error)

// runWorker wires a progress.Reporter around fn: it watches for the
// cancel marker, emits started/complete events, writes the terminal
// progress record, and maps the outcome onto the exit-code taxonomy of
// §7 (cancellation is a distinct terminal status, not an error).
func runWorker(name string, fn workerFunc) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	r := progress.NewWithRunID(name, runID, cfg.ProgressPath(runID), cfg.CancelMarkerPath(runID))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go r.WatchCancel(ctx)

	// Long-running workers (e.g. speed-snapshot) take only a context,
	// not a CancelFunc — cancel it as soon as the marker is observed so
	// they stop promptly instead of running until killed.
	workCtx, cancelWork := context.WithCancel(ctx)
	defer cancelWork()
	go func() {
		ticker := time.NewTicker(progress.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workCtx.Done():
				return
			case <-ticker.C:
				if r.Cancelled() {
					cancelWork()
					return
				}
			}
		}
	}()

	r.Started(map[string]string{"run_id": runID})

	result, runErr := fn(workCtx, cfg, r)

	if runErr == nil && r.Cancelled() {
		runErr = pipeutil.ErrCancelled
	}

	switch {
	case errors.Is(runErr, pipeutil.ErrCancelled):
		r.Complete(progress.Cancelled, result)
		return nil
	case runErr != nil:
		r.Complete(progress.Failed, map[string]any{"error": runErr.Error()})
		return runErr
	default:
		r.Complete(progress.Success, result)
		return nil
	}
}

// cancelFunc adapts a Reporter to the CancelFunc signature shared by
// ingest, corruption, and other workers.
func cancelFunc(r *progress.Reporter) func() bool {
	return r.Cancelled
}
