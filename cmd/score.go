package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/awc-invest/prospect-cli/internal/model"
	"github.com/awc-invest/prospect-cli/internal/runledger"
	"github.com/awc-invest/prospect-cli/internal/scorer"
	"github.com/awc-invest/prospect-cli/pkg/anthropic"
)

var (
	scoreYear   int
	scoreResume bool

	deployYear  int
	deployLimit int
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute quality and priority scores from metric snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := scorer.Validate(cfg.Scoring); err != nil {
			return err
		}

		st, cleanup, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		ledger := runledger.New(st.Pool())

		after := ""
		if scoreResume {
			cp, err := ledger.LatestCheckpoint(ctx, "score", scorer.Phase)
			if err != nil {
				return err
			}
			if cp != nil {
				after = cp.LastOrgnr
				zap.L().Info("resuming scoring",
					zap.String("from_run", cp.RunID), zap.String("after", after))
			}
		}

		run, err := ledger.Start(ctx, "score", "")
		if err != nil {
			return err
		}

		r := &scorer.Runner{
			Store:           st,
			Ledger:          ledger,
			Engine:          &scorer.Engine{Cfg: cfg.Scoring},
			View:            model.AccountView(cfg.Pipeline.View),
			FiscalYear:      scoreYear,
			WindowYears:     cfg.Pipeline.WindowYears,
			Concurrency:     cfg.Pipeline.Concurrency,
			CheckpointEvery: cfg.Pipeline.CheckpointEveryN,
		}

		stats, runErr := r.Run(ctx, run.ID, after)
		return finishRun(ctx, ledger, run.ID, fmt.Sprintf("entities=%d", stats.Entities), runErr)
	},
}

var deployabilityCmd = &cobra.Command{
	Use:   "deployability",
	Short: "Estimate deal likelihood for the top-scored companies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, cleanup, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		e := &scorer.Estimator{
			Store:     st,
			AI:        anthropic.NewClient(cfg.Anthropic.Key),
			Model:     cfg.Anthropic.Model,
			MaxTokens: int64(cfg.Anthropic.MaxTokens),
		}

		updated, err := e.EstimateTop(ctx, deployYear, deployLimit, model.AccountView(cfg.Pipeline.View))
		if err != nil {
			return err
		}

		zap.L().Info("deal likelihood updated", zap.Int("companies", updated))
		return nil
	},
}

func init() {
	scoreCmd.Flags().IntVar(&scoreYear, "year", time.Now().Year()-1, "fiscal year to score")
	scoreCmd.Flags().BoolVar(&scoreResume, "resume", false, "resume from the latest failed run's checkpoint")

	deployabilityCmd.Flags().IntVar(&deployYear, "year", time.Now().Year()-1, "fiscal year of the scores")
	deployabilityCmd.Flags().IntVar(&deployLimit, "limit", 25, "number of top-priority companies to estimate")

	scoreCmd.AddCommand(deployabilityCmd)
	rootCmd.AddCommand(scoreCmd)
}
