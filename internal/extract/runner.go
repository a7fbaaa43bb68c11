package extract

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
const Phase = "extract"

// Runner walks stored raw payloads, extracts facts and upserts them with
// periodic checkpointing.
type Runner struct {
	Store  *store.Store
	Ledger *runledger.Ledger

	Concurrency     int
	CheckpointEvery int
	MinYear         int
}

// Stats summarizes one extraction pass.
type Stats struct {
	Entities          int
	Facts             int
	SkippedStatements int
	SkippedEntries    int
	FailedEntities    int
}

// Run extracts facts for every payload with orgnr > after. A parse failure
// on one entity is logged and counted, never fatal; storage errors abort.
// A checkpoint is written after every chunk so a resumed run skips finished
// entities.
func (r *Runner) Run(ctx context.Context, runID, after string) (Stats, error) {
	log := zap.L().With(zap.String("component", "extract"), zap.String("run_id", runID))

	var stats Stats

	orgnrs, err := r.Store.ListRawPayloadOrgnrs(ctx, after)
	if err != nil {
		return stats, err
	}
	if len(orgnrs) == 0 {
		log.Info("nothing to extract", zap.String("after", after))
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
				payload, err := r.Store.GetRawPayload(gctx, orgnr)
				if err != nil {
					return err
				}
				if payload == nil {
					return nil
				}

				facts, ps, err := ParsePayload(*payload, r.MinYear)
				if err != nil {
					log.Warn("skipping unparseable payload", zap.String("orgnr", orgnr), zap.Error(err))
					mu.Lock()
					stats.FailedEntities++
					mu.Unlock()
					return nil
				}

				if _, err := r.Store.UpsertFacts(gctx, facts); err != nil {
					return eris.Wrapf(err, "extract: persist facts for %s", orgnr)
				}

				mu.Lock()
				stats.Entities++
				stats.Facts += ps.Facts
				stats.SkippedStatements += ps.SkippedStatements
				stats.SkippedEntries += ps.SkippedEntries
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

	log.Info("extraction finished",
		zap.Int("entities", stats.Entities),
		zap.Int("facts", stats.Facts),
		zap.Int("skipped_statements", stats.SkippedStatements),
		zap.Int("skipped_entries", stats.SkippedEntries),
		zap.Int("failed_entities", stats.FailedEntities))
	return stats, nil
}
