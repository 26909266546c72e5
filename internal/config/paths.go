package config

import "path/filepath"

// ProgressPath returns the JSON progress file for a named worker run,
// per §4.11/§6.
func (c *Config) ProgressPath(runID string) string {
	return filepath.Join(c.ProgressDir, runID+".progress.json")
}

// CancelMarkerPath returns the cancellation marker the supervisor
// drops next to a worker's progress file.
func (c *Config) CancelMarkerPath(runID string) string {
	return filepath.Join(c.ProgressDir, runID+".cancel_processing.marker")
}
