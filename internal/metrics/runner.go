package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/awc-invest/prospect-cli/internal/model"
	"github.com/awc-invest/prospect-cli/internal/runledger"
	"github.com/awc-invest/prospect-cli/internal/store"
)

// Phase is the checkpoint phase name for this stage.
const Phase = "materialize"

// Runner projects facts into metric snapshots for every entity that has
// facts under the configured view.
type Runner struct {
	Store   *store.Store
	Ledger  *runledger.Ledger
	CodeMap *CodeMap
	View    model.AccountView

	Concurrency     int
	CheckpointEvery int
}

// Stats summarizes one materialization pass.
type Stats struct {
	Entities  int
	Snapshots int
}

// Run materializes metrics for every entity with orgnr > after, writing a
// checkpoint after every chunk.
func (r *Runner) Run(ctx context.Context, runID, after string) (Stats, error) {
	log := zap.L().With(zap.String("component", "metrics"), zap.String("run_id", runID))

	var stats Stats

	orgnrs, err := r.Store.FactOrgnrs(ctx, r.View, after)
	if err != nil {
		return stats, err
	}
	if len(orgnrs) == 0 {
		log.Info("nothing to materialize", zap.String("after", after))
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

	now := time.Now().UTC()

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
				facts, err := r.Store.FactsForEntity(gctx, orgnr, r.View)
				if err != nil {
					return err
				}

				snaps := BuildSnapshots(orgnr, r.View, facts, r.CodeMap, now)
				if _, err := r.Store.UpsertMetrics(gctx, snaps); err != nil {
					return eris.Wrapf(err, "metrics: persist snapshots for %s", orgnr)
				}

				mu.Lock()
				stats.Entities++
				stats.Snapshots += len(snaps)
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

	log.Info("materialization finished",
		zap.Int("entities", stats.Entities),
		zap.Int("snapshots", stats.Snapshots))
	return stats, nil
}
