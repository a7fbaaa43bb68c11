package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/awc-invest/prospect-cli/internal/model"
	"github.com/awc-invest/prospect-cli/internal/runledger"
	"github.com/awc-invest/prospect-cli/internal/store"
)

// Checkpoint phase names for the two ingest stages.
const (
	Phase       = "ingest"
	SearchPhase = "search"
)

// Runner fetches payloads for every member of an import batch. Fetches are
// sequential; the provider rate limit dominates throughput anyway and
// sequential order keeps checkpoints exact.
type Runner struct {
	Store  *store.Store
	Ledger *runledger.Ledger
	Client *Client

	CheckpointEvery int
}

// Stats summarizes one ingest pass.
type Stats struct {
	Fetched  int
	NotFound int
	Failed   int
}

// Run fetches batch members with orgnr > after. Entities the provider does
// not know are skipped; fetches still failing after retries are counted and
// skipped; quota exhaustion aborts the run so the checkpoint marks where to
// resume once the quota resets.
func (r *Runner) Run(ctx context.Context, runID, batchName, after string) (Stats, error) {
	log := zap.L().With(zap.String("component", "ingest"), zap.String("run_id", runID))

	var stats Stats

	orgnrs, err := r.Store.BatchOrgnrs(ctx, batchName, after)
	if err != nil {
		return stats, err
	}
	if len(orgnrs) == 0 {
		log.Info("nothing to fetch", zap.String("batch", batchName), zap.String("after", after))
		return stats, nil
	}

	every := r.CheckpointEvery
	if every <= 0 {
		every = 25
	}

	var offset int64
	for i, orgnr := range orgnrs {
		payload, err := r.Client.FetchCompany(ctx, orgnr)
		switch {
		case err == nil:
			company := CompanyFromPayload(orgnr, payload.Payload, payload.FetchedAt)
			if err := r.Store.UpsertCompany(ctx, company); err != nil {
				return stats, err
			}
			if err := r.Store.UpsertRawPayload(ctx, *payload); err != nil {
				return stats, err
			}
			stats.Fetched++
		case eris.Is(err, ErrNotFound):
			log.Info("entity not in register", zap.String("orgnr", orgnr))
			stats.NotFound++
		case eris.Is(err, ErrQuotaExhausted):
			return stats, err
		default:
			log.Warn("fetch failed", zap.String("orgnr", orgnr), zap.Error(err))
			stats.Failed++
		}

		offset++
		if int(offset)%every == 0 || i == len(orgnrs)-1 {
			if err := r.Ledger.SaveCheckpoint(ctx, model.Checkpoint{
				RunID:      runID,
				Phase:      Phase,
				LastOrgnr:  orgnr,
				LastOffset: offset,
			}); err != nil {
				return stats, err
			}
		}
	}

	log.Info("ingest finished",
		zap.String("batch", batchName),
		zap.Int("fetched", stats.Fetched),
		zap.Int("not_found", stats.NotFound),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

// BuildBatch runs a register search and records the matching organization
// numbers as an import batch. The pagination cursor is checkpointed after
// every page; resume by passing the checkpoint's cursor.
func (r *Runner) BuildBatch(ctx context.Context, runID, batchName string, q SearchQuery, cursor string) (int64, error) {
	log := zap.L().With(zap.String("component", "ingest"), zap.String("run_id", runID))

	batchID, err := r.Store.CreateImportBatch(ctx, batchName, q.Criteria())
	if err != nil {
		return 0, err
	}

	var total int64
	pageURL := cursor
	for {
		orgnrs, next, err := r.Client.SearchPage(ctx, q, pageURL)
		if err != nil {
			return total, err
		}

		added, err := r.Store.AddBatchItems(ctx, batchID, orgnrs)
		if err != nil {
			return total, err
		}
		total += added

		if err := r.Ledger.SaveCheckpoint(ctx, model.Checkpoint{
			RunID:      runID,
			Phase:      SearchPhase,
			LastOffset: total,
			LastCursor: next,
		}); err != nil {
			return total, err
		}

		if next == "" {
			break
		}
		pageURL = next
	}

	log.Info("batch built", zap.String("batch", batchName), zap.Int64("members", total))
	return total, nil
}
