// Package runledger records pipeline runs and per-phase checkpoints so an
// interrupted batch can resume instead of starting over.
package runledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/awc-invest/prospect-cli/internal/db"
	"github.com/awc-invest/prospect-cli/internal/model"
)

// Ledger provides read/write access to the ingestion_run and
// ingestion_checkpoint tables.
type Ledger struct {
	pool db.Pool
}

// New creates a Ledger backed by the given connection pool.
func New(pool db.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Start records the beginning of a run and returns it.
func (l *Ledger) Start(ctx context.Context, runType, batchName string) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.NewString(),
		RunType:   runType,
		BatchName: batchName,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := l.pool.Exec(ctx, `
		INSERT INTO ingestion_run (run_id, run_type, batch_name, status, started_at)
		VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.RunType, run.BatchName, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "runledger: start %s run", runType)
	}
	return run, nil
}

// Succeed marks a run as successfully finished.
func (l *Ledger) Succeed(ctx context.Context, runID, notes string) error {
	return l.finish(ctx, runID, model.RunStatusSucceeded, notes)
}

// Fail marks a run as failed with an explanatory note.
func (l *Ledger) Fail(ctx context.Context, runID, notes string) error {
	return l.finish(ctx, runID, model.RunStatusFailed, notes)
}

func (l *Ledger) finish(ctx context.Context, runID string, status model.RunStatus, notes string) error {
	tag, err := l.pool.Exec(ctx, `
		UPDATE ingestion_run
		SET status = $1, finished_at = now(), notes = $2
		WHERE run_id = $3 AND status = 'running'`,
		string(status), notes, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runledger: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("runledger: run %s is not running", runID)
	}
	return nil
}

// SaveCheckpoint upserts the resume position for one phase of a run.
func (l *Ledger) SaveCheckpoint(ctx context.Context, cp model.Checkpoint) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO ingestion_checkpoint (run_id, phase, last_orgnr, last_offset, last_cursor, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (run_id, phase) DO UPDATE SET
			last_orgnr  = EXCLUDED.last_orgnr,
			last_offset = EXCLUDED.last_offset,
			last_cursor = EXCLUDED.last_cursor,
			updated_at  = now()`,
		cp.RunID, cp.Phase, cp.LastOrgnr, cp.LastOffset, cp.LastCursor,
	)
	if err != nil {
		return eris.Wrapf(err, "runledger: save checkpoint %s/%s", cp.RunID, cp.Phase)
	}
	return nil
}

// LoadCheckpoint returns the checkpoint for one phase of a run, or nil if the
// phase has never checkpointed.
func (l *Ledger) LoadCheckpoint(ctx context.Context, runID, phase string) (*model.Checkpoint, error) {
	var cp model.Checkpoint
	err := l.pool.QueryRow(ctx, `
		SELECT run_id, phase, last_orgnr, last_offset, last_cursor, updated_at
		FROM ingestion_checkpoint
		WHERE run_id = $1 AND phase = $2`,
		runID, phase,
	).Scan(&cp.RunID, &cp.Phase, &cp.LastOrgnr, &cp.LastOffset, &cp.LastCursor, &cp.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "runledger: load checkpoint %s/%s", runID, phase)
	}
	return &cp, nil
}

// LatestCheckpoint returns the most recent checkpoint for a phase across the
// failed runs of a run type, or nil if none exists. A new run resumes from
// here after a crash or quota abort.
func (l *Ledger) LatestCheckpoint(ctx context.Context, runType, phase string) (*model.Checkpoint, error) {
	var cp model.Checkpoint
	err := l.pool.QueryRow(ctx, `
		SELECT c.run_id, c.phase, c.last_orgnr, c.last_offset, c.last_cursor, c.updated_at
		FROM ingestion_checkpoint c
		JOIN ingestion_run r ON r.run_id = c.run_id
		WHERE r.run_type = $1 AND c.phase = $2 AND r.status = 'failed'
		ORDER BY c.updated_at DESC
		LIMIT 1`,
		runType, phase,
	).Scan(&cp.RunID, &cp.Phase, &cp.LastOrgnr, &cp.LastOffset, &cp.LastCursor, &cp.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "runledger: latest checkpoint for %s/%s", runType, phase)
	}
	return &cp, nil
}

// Get returns one run by id, or nil if unknown.
func (l *Ledger) Get(ctx context.Context, runID string) (*model.Run, error) {
	row := l.pool.QueryRow(ctx, `
		SELECT run_id, run_type, batch_name, status, started_at, finished_at, notes
		FROM ingestion_run WHERE run_id = $1`,
		runID,
	)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "runledger: get run %s", runID)
	}
	return run, nil
}

// List returns the most recent runs, newest first.
func (l *Ledger) List(ctx context.Context, limit int) ([]model.Run, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT run_id, run_type, batch_name, status, started_at, finished_at, notes
		FROM ingestion_run
		ORDER BY started_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runledger: list runs")
	}
	defer rows.Close()

	var out []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "runledger: scan run row")
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

func scanRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var status string
	if err := row.Scan(&r.ID, &r.RunType, &r.BatchName, &status,
		&r.StartedAt, &r.FinishedAt, &r.Notes); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	return &r, nil
}
