package main

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lancache-ops/cache-pipeline/internal/config"
	"github.com/lancache-ops/cache-pipeline/internal/progress"
	"github.com/lancache-ops/cache-pipeline/internal/speedtrack"
)

func speedSnapshotCmd() *cobra.Command {
	var base string
	cmd := &cobra.Command{
		Use:   "speed-snapshot",
		Short: "Tail the access logs and emit rolling throughput snapshots until stopped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker("speed-snapshot", func(ctx context.Context, cfg *config.Config, r *progress.Reporter) (any, error) {
				s, err := openStore(cfg)
				if err != nil {
					return nil, err
				}
				defer s.Close()

				logPaths := []string{
					filepath.Join(cfg.LogDir, base),
					filepath.Join(cfg.LogDir, "stream-"+base),
				}
				tracker := speedtrack.New(s, cfg.Location, logPaths)
				err = tracker.Run(ctx)
				if errors.Is(err, context.Canceled) {
					return nil, nil
				}
				return nil, err
			})
		},
	}
	cmd.Flags().StringVar(&base, "base", "access.log", "base log filename whose current tail to follow")
	return cmd
}
