package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/awc-invest/prospect-cli/internal/metrics"
	"github.com/awc-invest/prospect-cli/internal/model"
	"github.com/awc-invest/prospect-cli/internal/runledger"
)

var materializeResume bool

var materializeCmd = &cobra.Command{
	Use:   "materialize",
	Short: "Project extracted facts into per-year metric snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cm, err := metrics.LoadCodeMap(cfg.Pipeline.CodeMapPath)
		if err != nil {
			return err
		}

		st, cleanup, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		ledger := runledger.New(st.Pool())

		after := ""
		if materializeResume {
			cp, err := ledger.LatestCheckpoint(ctx, "materialize", metrics.Phase)
			if err != nil {
				return err
			}
			if cp != nil {
				after = cp.LastOrgnr
				zap.L().Info("resuming materialization",
					zap.String("from_run", cp.RunID), zap.String("after", after))
			}
		}

		run, err := ledger.Start(ctx, "materialize", "")
		if err != nil {
			return err
		}

		r := &metrics.Runner{
			Store:           st,
			Ledger:          ledger,
			CodeMap:         cm,
			View:            model.AccountView(cfg.Pipeline.View),
			Concurrency:     cfg.Pipeline.Concurrency,
			CheckpointEvery: cfg.Pipeline.CheckpointEveryN,
		}

		stats, runErr := r.Run(ctx, run.ID, after)
		notes := fmt.Sprintf("entities=%d snapshots=%d", stats.Entities, stats.Snapshots)
		return finishRun(ctx, ledger, run.ID, notes, runErr)
	},
}

func init() {
	materializeCmd.Flags().BoolVar(&materializeResume, "resume", false, "resume from the latest failed run's checkpoint")
	rootCmd.AddCommand(materializeCmd)
}
