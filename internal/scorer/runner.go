package scorer

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/awc-invest/prospect-cli/internal/model"
	"github.com/awc-invest/prospect-cli/internal/runledger"
	"github.com/awc-invest/prospect-cli/internal/store"
)

// Phase is the checkpoint phase name for this stage.
const Phase = "score"

// Runner scores every entity that has a metric snapshot for the target
// fiscal year and view.
type Runner struct {
	Store  *store.Store
	Ledger *runledger.Ledger
	Engine *Engine

	View        model.AccountView
	FiscalYear  int
	WindowYears int

	Concurrency     int
	CheckpointEvery int
}

// Stats summarizes one scoring pass.
type Stats struct {
	Entities int
}

// Run scores entities with orgnr > after, checkpointing after every chunk.
func (r *Runner) Run(ctx context.Context, runID, after string) (Stats, error) {
	log := zap.L().With(zap.String("component", "scorer"), zap.String("run_id", runID))

	var stats Stats

	orgnrs, err := r.Store.MetricOrgnrs(ctx, r.View, r.FiscalYear, after)
	if err != nil {
		return stats, err
	}
	if len(orgnrs) == 0 {
		log.Info("nothing to score",
			zap.Int("fiscal_year", r.FiscalYear), zap.String("after", after))
		return stats, nil
	}

	every := r.CheckpointEvery
	if every <= 0 {
		every = 25
	}
	conc := r.Concurrency
	if conc <= 0 {
		conc = 4
	}
	window := r.WindowYears
	if window <= 0 {
		window = 4
	}

	var mu sync.Mutex
	var offset int64

	for start := 0; start < len(orgnrs); start += every {
		end := start + every
		if end > len(orgnrs) {
			end = len(orgnrs)
		}
		chunk := orgnrs[start:end]

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(conc)

		for _, orgnr := range chunk {
			g.Go(func() error {
				snaps, err := r.Store.MetricsWindow(gctx, orgnr, r.View, r.FiscalYear, window)
				if err != nil {
					return err
				}

				score := r.Engine.Score(orgnr, r.FiscalYear, r.View, snaps)
				if err := r.Store.UpsertScore(gctx, score); err != nil {
					return eris.Wrapf(err, "scorer: persist score for %s", orgnr)
				}

				mu.Lock()
				stats.Entities++
				mu.Unlock()
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return stats, err
		}

		offset += int64(len(chunk))
		if err := r.Ledger.SaveCheckpoint(ctx, model.Checkpoint{
			RunID:      runID,
			Phase:      Phase,
			LastOrgnr:  chunk[len(chunk)-1],
			LastOffset: offset,
		}); err != nil {
			return stats, err
		}
	}

	log.Info("scoring finished",
		zap.Int("fiscal_year", r.FiscalYear), zap.Int("entities", stats.Entities))
	return stats, nil
}
