package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lancache-ops/cache-pipeline/internal/config"
	"github.com/lancache-ops/cache-pipeline/internal/ingest"
	"github.com/lancache-ops/cache-pipeline/internal/progress"
)

func ingestCmd() *cobra.Command {
	var autoMap bool
	var base string

	cmd := &cobra.Command{
		Use:   "ingest <log-dir>",
		Short: "Discover and ingest every rotation of an access log into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			return runWorker("ingest", func(ctx context.Context, cfg *config.Config, r *progress.Reporter) (any, error) {
				s, err := openStore(cfg)
				if err != nil {
					return nil, err
				}
				defer s.Close()

				agg := ingest.New(s, cfg.Location, autoMap)
				summary, err := agg.RunDir(ctx, dir, base, cancelFunc(r))
				if err != nil {
					return summary, err
				}
				return summary, nil
			})
		},
	}
	cmd.Flags().StringVar(&base, "base", "access.log", "base log filename to discover rotations of")
	cmd.Flags().BoolVar(&autoMap, "auto-map", true, "automatically resolve Steam depot-to-app mappings")
	return cmd
}
