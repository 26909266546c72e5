package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lancache-ops/cache-pipeline/internal/cacheindex"
	"github.com/lancache-ops/cache-pipeline/internal/config"
	"github.com/lancache-ops/cache-pipeline/internal/progress"
)

func indexCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index-cache",
		Short: "Build an in-memory index of every file under the cache root and report its size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker("index-cache", func(ctx context.Context, cfg *config.Config, r *progress.Reporter) (any, error) {
				idx, err := cacheindex.Build(cfg.CacheRoot)
				if err != nil {
					return nil, err
				}
				return map[string]int{"entries": idx.Len()}, nil
			})
		},
	}
	return cmd
}
