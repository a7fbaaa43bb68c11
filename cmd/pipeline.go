package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/awc-invest/prospect-cli/internal/extract"
	"github.com/awc-invest/prospect-cli/internal/metrics"
	"github.com/awc-invest/prospect-cli/internal/model"
	"github.com/awc-invest/prospect-cli/internal/runledger"
	"github.com/awc-invest/prospect-cli/internal/scorer"
	"github.com/awc-invest/prospect-cli/internal/shortlist"
	"github.com/awc-invest/prospect-cli/internal/store"
)

var (
	pipelineYear   int
	pipelineView   string
	pipelineDate   string
	pipelineSize   int
	pipelineResume bool
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run extract, materialize, score and shortlist as one ledgered run",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := scorer.Validate(cfg.Scoring); err != nil {
			return err
		}
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

		view := model.AccountView(cfg.Pipeline.View)
		if pipelineView != "" {
			view = model.AccountView(pipelineView)
		}

		pickDate := time.Now().UTC().Truncate(24 * time.Hour)
		if pipelineDate != "" {
			d, err := time.Parse("2006-01-02", pipelineDate)
			if err != nil {
				return eris.Wrapf(err, "parse --date %q", pipelineDate)
			}
			pickDate = d
		}

		size := cfg.Shortlist.Size
		if pipelineSize > 0 {
			size = pipelineSize
		}

		// A resumed pipeline reuses the phase checkpoints of the latest
		// failed pipeline run: finished phases fast-forward past all their
		// entities, the interrupted phase continues mid-way.
		resumeAfter := func(phase string) (string, error) {
			if !pipelineResume {
				return "", nil
			}
			cp, err := ledger.LatestCheckpoint(ctx, "pipeline", phase)
			if err != nil {
				return "", err
			}
			if cp == nil {
				return "", nil
			}
			zap.L().Info("resuming phase",
				zap.String("phase", phase),
				zap.String("from_run", cp.RunID),
				zap.String("after", cp.LastOrgnr))
			return cp.LastOrgnr, nil
		}

		run, err := ledger.Start(ctx, "pipeline", "")
		if err != nil {
			return err
		}

		notes, runErr := runPipeline(ctx, st, ledger, cm, view, run.ID, pickDate, size, resumeAfter)
		return finishRun(ctx, ledger, run.ID, notes, runErr)
	},
}

func runPipeline(
	ctx context.Context,
	st *store.Store,
	ledger *runledger.Ledger,
	cm *metrics.CodeMap,
	view model.AccountView,
	runID string,
	pickDate time.Time,
	size int,
	resumeAfter func(phase string) (string, error),
) (string, error) {
	after, err := resumeAfter(extract.Phase)
	if err != nil {
		return "", err
	}
	ext := &extract.Runner{
		Store:           st,
		Ledger:          ledger,
		Concurrency:     cfg.Pipeline.Concurrency,
		CheckpointEvery: cfg.Pipeline.CheckpointEveryN,
	}
	extStats, err := ext.Run(ctx, runID, after)
	if err != nil {
		return "", err
	}

	after, err = resumeAfter(metrics.Phase)
	if err != nil {
		return "", err
	}
	mat := &metrics.Runner{
		Store:           st,
		Ledger:          ledger,
		CodeMap:         cm,
		View:            view,
		Concurrency:     cfg.Pipeline.Concurrency,
		CheckpointEvery: cfg.Pipeline.CheckpointEveryN,
	}
	matStats, err := mat.Run(ctx, runID, after)
	if err != nil {
		return "", err
	}

	after, err = resumeAfter(scorer.Phase)
	if err != nil {
		return "", err
	}
	sc := &scorer.Runner{
		Store:           st,
		Ledger:          ledger,
		Engine:          &scorer.Engine{Cfg: cfg.Scoring},
		View:            view,
		FiscalYear:      pipelineYear,
		WindowYears:     cfg.Pipeline.WindowYears,
		Concurrency:     cfg.Pipeline.Concurrency,
		CheckpointEvery: cfg.Pipeline.CheckpointEveryN,
	}
	scStats, err := sc.Run(ctx, runID, after)
	if err != nil {
		return "", err
	}

	g := &shortlist.Generator{
		Store:          st,
		Size:           size,
		CooldownMonths: cfg.Shortlist.CooldownMonths,
	}
	picks, err := g.Generate(ctx, pipelineYear, pickDate)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("extracted=%d facts=%d materialized=%d scored=%d picks=%d",
		extStats.Entities, extStats.Facts, matStats.Entities, scStats.Entities, len(picks)), nil
}

func init() {
	pipelineCmd.Flags().IntVar(&pipelineYear, "year", time.Now().Year()-1, "fiscal year to score and shortlist")
	pipelineCmd.Flags().StringVar(&pipelineView, "view", "", "account view (default from config)")
	pipelineCmd.Flags().StringVar(&pipelineDate, "date", "", "pick date (YYYY-MM-DD, default today)")
	pipelineCmd.Flags().IntVar(&pipelineSize, "size", 0, "shortlist size (default from config)")
	pipelineCmd.Flags().BoolVar(&pipelineResume, "resume", false, "resume from the latest failed pipeline run's checkpoints")
	rootCmd.AddCommand(pipelineCmd)
}
