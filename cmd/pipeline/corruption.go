package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lancache-ops/cache-pipeline/internal/config"
	"github.com/lancache-ops/cache-pipeline/internal/corruption"
	"github.com/lancache-ops/cache-pipeline/internal/progress"
)

func detectCorruptionCmd() *cobra.Command {
	var base string
	var threshold int
	var detailed bool

	cmd := &cobra.Command{
		Use:   "detect-corruption <log-dir>",
		Short: "Scan access logs for URLs with repeated MISS/UNKNOWN responses, a sign of a corrupted cache entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			return runWorker("detect-corruption", func(ctx context.Context, cfg *config.Config, r *progress.Reporter) (any, error) {
				d := corruption.New(threshold)
				report, err := d.Detect(ctx, dir, base, detailed, cancelFunc(r))
				if err != nil {
					return report, err
				}
				return report, nil
			})
		},
	}
	cmd.Flags().StringVar(&base, "base", "access.log", "base log filename to discover rotations of")
	cmd.Flags().IntVar(&threshold, "threshold", corruption.DefaultThreshold, "miss count at which a URL is flagged corrupted")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "report individual corrupted records instead of per-service summaries")
	return cmd
}
