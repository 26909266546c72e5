// Package progress implements the cross-cutting progress and
// cancellation channel every long-running worker uses (C11, §4.11):
// an atomically-written JSON progress file, a polled cancel marker,
// and a line-delimited stdout event stream keyed by a run UUID.
package progress

import (
	"context"
	"encoding/json"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lancache-ops/cache-pipeline/internal/pipeutil"
)

// PollInterval is the cancel-marker poll cadence (§4.11).
const PollInterval = 50 * time.Millisecond

// CompleteStatus is the terminal status of a run.
type CompleteStatus string

const (
	Success   CompleteStatus = "success"
	Failed    CompleteStatus = "failed"
	Cancelled CompleteStatus = "cancelled"
)

// Event is one line of the stdout event stream (§4.11).
type Event struct {
	RunID   string `json:"run_id"`
	TS      string `json:"ts"`
	Type    string `json:"type"`
	Worker  string `json:"worker"`
	Payload any    `json:"payload,omitempty"`
}

// Reporter owns one worker run's progress file, cancel marker, and
// stdout event stream.
type Reporter struct {
	runID            string
	worker           string
	progressPath     string
	cancelMarkerPath string
	cancelled        atomic.Bool
	enc              *json.Encoder
}

// New returns a Reporter for worker, generating a fresh run UUID.
func New(worker, progressPath, cancelMarkerPath string) *Reporter {
	return NewWithRunID(worker, uuid.NewString(), progressPath, cancelMarkerPath)
}

// NewWithRunID returns a Reporter for worker using a caller-supplied
// run ID, so a CLI can name the progress/cancel-marker files after the
// same ID that ends up in every emitted event.
func NewWithRunID(worker, runID, progressPath, cancelMarkerPath string) *Reporter {
	return &Reporter{
		runID:            runID,
		worker:           worker,
		progressPath:     progressPath,
		cancelMarkerPath: cancelMarkerPath,
		enc:              json.NewEncoder(os.Stdout),
	}
}

// RunID returns the UUID identifying this run.
func (r *Reporter) RunID() string { return r.runID }

// Cancelled reports whether the cancel marker has been observed.
func (r *Reporter) Cancelled() bool { return r.cancelled.Load() }

// WatchCancel polls for the cancel marker every PollInterval until ctx
// is done. Run it in its own goroutine; Cancelled() reflects its
// findings immediately after each poll (§4.11).
func (r *Reporter) WatchCancel(ctx context.Context) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := os.Stat(r.cancelMarkerPath); err == nil {
				r.cancelled.Store(true)
			}
		}
	}
}

// Started emits the "started" event.
func (r *Reporter) Started(payload any) error {
	return r.emit("started", payload)
}

// Progress writes the current state atomically to the progress file
// and emits a "progress" event carrying the same state.
func (r *Reporter) Progress(state any) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := pipeutil.WriteFileAtomic(r.progressPath, data, 0o644); err != nil {
		return err
	}
	return r.emit("progress", state)
}

// Complete emits the terminal complete event and writes a final
// snapshot of state to the progress file.
func (r *Reporter) Complete(status CompleteStatus, state any) error {
	data, err := json.Marshal(state)
	if err == nil {
		pipeutil.WriteFileAtomic(r.progressPath, data, 0o644)
	}
	return r.emit("complete_"+string(status), state)
}

func (r *Reporter) emit(eventType string, payload any) error {
	return r.enc.Encode(Event{
		RunID:   r.runID,
		TS:      pipeutil.FormatUTC(time.Now().UTC()),
		Type:    eventType,
		Worker:  r.worker,
		Payload: payload,
	})
}
