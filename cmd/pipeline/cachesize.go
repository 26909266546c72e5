package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lancache-ops/cache-pipeline/internal/cachesize"
	"github.com/lancache-ops/cache-pipeline/internal/config"
	"github.com/lancache-ops/cache-pipeline/internal/progress"
)

func estimateSizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate-size",
		Short: "Scan the cache root and estimate how long deleting it would take under each strategy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker("estimate-size", func(ctx context.Context, cfg *config.Config, r *progress.Reporter) (any, error) {
				return cachesize.Scan(cfg.CacheRoot)
			})
		},
	}
	return cmd
}
