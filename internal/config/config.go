// Package config resolves the process-wide settings every worker needs:
// where the database lives, where logs and cache files are rooted, and
// which timezone to use for wall-clock columns.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config is threaded explicitly through parser and aggregator
// constructors rather than read from ambient state at call sites.
type Config struct {
	DBPath      string
	LogDir      string
	CacheRoot   string
	ProgressDir string
	Location    *time.Location
}

// Load builds a Config from environment variables, falling back to
// defaults under the user's home directory. TZ follows Go's standard
// meaning; unset or unrecognized values default to UTC per §6.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".cache-pipeline")

	cfg := &Config{
		DBPath:      envOr("PIPELINE_DB_PATH", filepath.Join(base, "pipeline.db")),
		LogDir:      envOr("PIPELINE_LOG_DIR", filepath.Join(base, "logs")),
		CacheRoot:   envOr("PIPELINE_CACHE_ROOT", filepath.Join(base, "cache")),
		ProgressDir: envOr("PIPELINE_PROGRESS_DIR", filepath.Join(base, "progress")),
		Location:    loadLocation(os.Getenv("TZ")),
	}
	return cfg, nil
}

func loadLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnsureDirs creates the directories a worker writes into.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{filepath.Dir(c.DBPath), c.LogDir, c.CacheRoot, c.ProgressDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
