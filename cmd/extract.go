package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/awc-invest/prospect-cli/internal/extract"
	"github.com/awc-invest/prospect-cli/internal/runledger"
)

var (
	extractMinYear int
	extractResume  bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract financial facts from stored raw payloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, cleanup, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		ledger := runledger.New(st.Pool())

		after := ""
		if extractResume {
			cp, err := ledger.LatestCheckpoint(ctx, "extract", extract.Phase)
			if err != nil {
				return err
			}
			if cp != nil {
				after = cp.LastOrgnr
				zap.L().Info("resuming extraction",
					zap.String("from_run", cp.RunID), zap.String("after", after))
			}
		}

		run, err := ledger.Start(ctx, "extract", "")
		if err != nil {
			return err
		}

		r := &extract.Runner{
			Store:           st,
			Ledger:          ledger,
			Concurrency:     cfg.Pipeline.Concurrency,
			CheckpointEvery: cfg.Pipeline.CheckpointEveryN,
			MinYear:         extractMinYear,
		}

		stats, runErr := r.Run(ctx, run.ID, after)
		notes := fmt.Sprintf("entities=%d facts=%d skipped_statements=%d failed_entities=%d",
			stats.Entities, stats.Facts, stats.SkippedStatements, stats.FailedEntities)
		return finishRun(ctx, ledger, run.ID, notes, runErr)
	},
}

func init() {
	extractCmd.Flags().IntVar(&extractMinYear, "min-year", 0, "skip statements older than this fiscal year (0 = keep all)")
	extractCmd.Flags().BoolVar(&extractResume, "resume", false, "resume from the latest failed run's checkpoint")
	rootCmd.AddCommand(extractCmd)
}
