package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lancache-ops/cache-pipeline/internal/config"
	"github.com/lancache-ops/cache-pipeline/internal/corruption"
	"github.com/lancache-ops/cache-pipeline/internal/progress"
	"github.com/lancache-ops/cache-pipeline/internal/removal"
)

func removeServiceCmd() *cobra.Command {
	var base string
	cmd := &cobra.Command{
		Use:   "remove-service <service>",
		Short: "Remove every cached entry, log line, and download record for one service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := args[0]
			return runWorker("remove-service", func(ctx context.Context, cfg *config.Config, r *progress.Reporter) (any, error) {
				s, err := openStore(cfg)
				if err != nil {
					return nil, err
				}
				defer s.Close()

				eng := removal.New(s, cfg.CacheRoot, cfg.LogDir, base)
				return eng.RemoveService(ctx, service)
			})
		},
	}
	cmd.Flags().StringVar(&base, "base", "access.log", "base log filename to rewrite rotations of")
	return cmd
}

func removeGameCmd() *cobra.Command {
	var base string
	cmd := &cobra.Command{
		Use:   "remove-game <app-id>",
		Short: "Remove every cached entry, log line, and download record for one Steam app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid app id %q: %w", args[0], err)
			}
			return runWorker("remove-game", func(ctx context.Context, cfg *config.Config, r *progress.Reporter) (any, error) {
				s, err := openStore(cfg)
				if err != nil {
					return nil, err
				}
				defer s.Close()

				eng := removal.New(s, cfg.CacheRoot, cfg.LogDir, base)
				return eng.RemoveGame(ctx, appID)
			})
		},
	}
	cmd.Flags().StringVar(&base, "base", "access.log", "base log filename to rewrite rotations of")
	return cmd
}

func removeCorruptedCmd() *cobra.Command {
	var base string
	cmd := &cobra.Command{
		Use:   "remove-corrupted <report.json>",
		Short: "Remove cache entries flagged by a prior detect-corruption --detailed run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read corruption report: %w", err)
			}
			var report corruption.Report
			if err := json.Unmarshal(data, &report); err != nil {
				return fmt.Errorf("parse corruption report: %w", err)
			}
			if len(report.Corrupted) == 0 {
				return fmt.Errorf("report has no detailed corrupted records — rerun detect-corruption with --detailed")
			}

			inputs := make([]removal.CorruptedInput, len(report.Corrupted))
			for i, rec := range report.Corrupted {
				inputs[i] = removal.CorruptedInput{Service: rec.Service, URL: rec.URL, MaxSize: rec.MaxSize}
			}

			return runWorker("remove-corrupted", func(ctx context.Context, cfg *config.Config, r *progress.Reporter) (any, error) {
				s, err := openStore(cfg)
				if err != nil {
					return nil, err
				}
				defer s.Close()

				eng := removal.New(s, cfg.CacheRoot, cfg.LogDir, base)
				return eng.RemoveCorrupted(ctx, inputs)
			})
		},
	}
	cmd.Flags().StringVar(&base, "base", "access.log", "base log filename to rewrite rotations of")
	return cmd
}
