package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/awc-invest/prospect-cli/internal/ingest"
	"github.com/awc-invest/prospect-cli/internal/model"
	"github.com/awc-invest/prospect-cli/internal/runledger"
)

var (
	ingestBatch  string
	ingestResume bool

	searchName string
	searchCode string
	searchYear int
	searchMin  float64
	searchView string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch register payloads for an import batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, cleanup, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		ledger := runledger.New(st.Pool())

		after := ""
		if ingestResume {
			cp, err := ledger.LatestCheckpoint(ctx, "ingest", ingest.Phase)
			if err != nil {
				return err
			}
			if cp != nil {
				after = cp.LastOrgnr
				zap.L().Info("resuming ingest",
					zap.String("from_run", cp.RunID), zap.String("after", after))
			}
		}

		run, err := ledger.Start(ctx, "ingest", ingestBatch)
		if err != nil {
			return err
		}

		r := &ingest.Runner{
			Store:           st,
			Ledger:          ledger,
			Client:          ingest.NewClient(cfg.Provider),
			CheckpointEvery: cfg.Pipeline.CheckpointEveryN,
		}

		stats, runErr := r.Run(ctx, run.ID, ingestBatch, after)
		notes := fmt.Sprintf("fetched=%d not_found=%d failed=%d",
			stats.Fetched, stats.NotFound, stats.Failed)
		return finishRun(ctx, ledger, run.ID, notes, runErr)
	},
}

var ingestSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Build an import batch from a register account search",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, cleanup, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		ledger := runledger.New(st.Pool())

		cursor := ""
		if ingestResume {
			cp, err := ledger.LatestCheckpoint(ctx, "ingest-search", ingest.SearchPhase)
			if err != nil {
				return err
			}
			if cp != nil && cp.LastCursor != "" {
				cursor = cp.LastCursor
				zap.L().Info("resuming search", zap.String("from_run", cp.RunID))
			}
		}

		run, err := ledger.Start(ctx, "ingest-search", searchName)
		if err != nil {
			return err
		}

		r := &ingest.Runner{
			Store:  st,
			Ledger: ledger,
			Client: ingest.NewClient(cfg.Provider),
		}

		q := ingest.SearchQuery{
			Code:     searchCode,
			Year:     searchYear,
			View:     model.AccountView(searchView),
			MinValue: searchMin,
			PageSize: cfg.Provider.PageSize,
		}

		total, runErr := r.BuildBatch(ctx, run.ID, searchName, q, cursor)
		return finishRun(ctx, ledger, run.ID, fmt.Sprintf("members=%d", total), runErr)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestBatch, "batch", "", "import batch to fetch (required)")
	ingestCmd.PersistentFlags().BoolVar(&ingestResume, "resume", false, "resume from the latest failed run's checkpoint")
	_ = ingestCmd.MarkFlagRequired("batch")

	ingestSearchCmd.Flags().StringVar(&searchName, "name", "", "batch name (required)")
	ingestSearchCmd.Flags().StringVar(&searchCode, "code", "DR", "account code to filter on")
	ingestSearchCmd.Flags().IntVar(&searchYear, "year", 0, "fiscal year (required)")
	ingestSearchCmd.Flags().Float64Var(&searchMin, "min", 0, "minimum account value")
	ingestSearchCmd.Flags().StringVar(&searchView, "view", "company", "account view (company, corporate, annual)")
	_ = ingestSearchCmd.MarkFlagRequired("name")
	_ = ingestSearchCmd.MarkFlagRequired("year")

	ingestCmd.AddCommand(ingestSearchCmd)
	rootCmd.AddCommand(ingestCmd)
}
