// Command pipeline is the one-shot worker entry point for the cache
// log pipeline (§6): one binary, one subcommand per worker, each
// process running to completion and exiting with a status reflected
// both in its exit code and in its final progress record.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lancache-ops/cache-pipeline/internal/config"
	"github.com/lancache-ops/cache-pipeline/internal/logger"
	"github.com/lancache-ops/cache-pipeline/internal/store"
)

func main() {
	var logLevel string
	var logFile string

	root := &cobra.Command{
		Use:           "pipeline",
		Short:         "lancache log pipeline — ingest, index, maintain, and report on a shared download cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(logLevel, logFile)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")

	root.AddCommand(
		ingestCmd(),
		detectCorruptionCmd(),
		removeServiceCmd(),
		removeGameCmd(),
		removeCorruptedCmd(),
		indexCacheCmd(),
		estimateSizeCmd(),
		speedSnapshotCmd(),
		dbResetCmd(),
		dbImportCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig loads the shared Config and ensures its directories
// exist, failing fast per the input-shape error taxonomy (§7.1).
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("prepare data directories: %w", err)
	}
	return cfg, nil
}

// openStore opens the pipeline database at cfg.DBPath.
func openStore(cfg *config.Config) (*store.Store, error) {
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}
