package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/awc-invest/prospect-cli/internal/config"
	"github.com/awc-invest/prospect-cli/internal/db"
	"github.com/awc-invest/prospect-cli/internal/runledger"
	"github.com/awc-invest/prospect-cli/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "prospect-cli",
	Short: "Acquisition-prospect scoring pipeline",
	Long:  "Fetches Norwegian company register data, extracts financial facts, scores acquisition prospects and maintains a daily outreach shortlist.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// initStore connects, migrates and returns the store plus a cleanup func.
func initStore(ctx context.Context) (*store.Store, func(), error) {
	pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store.New(pool), pool.Close, nil
}

// finishRun closes out a ledgered run according to the stage outcome and
// returns the stage error unchanged.
func finishRun(ctx context.Context, ledger *runledger.Ledger, runID, notes string, stageErr error) error {
	if stageErr != nil {
		if err := ledger.Fail(ctx, runID, stageErr.Error()); err != nil {
			zap.L().Error("failed to mark run failed", zap.String("run_id", runID), zap.Error(err))
		}
		return stageErr
	}
	if err := ledger.Succeed(ctx, runID, notes); err != nil {
		return err
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
