package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lancache-ops/cache-pipeline/internal/config"
	"github.com/lancache-ops/cache-pipeline/internal/dbadmin"
	"github.com/lancache-ops/cache-pipeline/internal/progress"
)

func dbResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db-reset",
		Short: "Clear every table in the pipeline database and reclaim disk space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker("db-reset", func(ctx context.Context, cfg *config.Config, r *progress.Reporter) (any, error) {
				s, err := openStore(cfg)
				if err != nil {
					return nil, err
				}
				defer s.Close()

				return dbadmin.Reset(ctx, s, func(table string, deletedSoFar int64) {
					r.Progress(map[string]any{"table": table, "deleted": deletedSoFar})
				})
			})
		},
	}
	return cmd
}

func dbImportCmd() *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "db-import <source-db-path>",
		Short: "Import a legacy DeveLanCacheUI database's download history into this schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourcePath := args[0]
			return runWorker("db-import", func(ctx context.Context, cfg *config.Config, r *progress.Reporter) (any, error) {
				s, err := openStore(cfg)
				if err != nil {
					return nil, err
				}
				defer s.Close()

				return dbadmin.ImportDeveLanCacheUI(ctx, s, cfg.DBPath, sourcePath, overwrite, cfg.Location, func(result dbadmin.ImportResult) {
					r.Progress(result)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "overwrite existing downloads matching (client_ip, start_time_utc)")
	return cmd
}
