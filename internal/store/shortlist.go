package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/awc-invest/prospect-cli/internal/model"
)

// ReplaceShortlist atomically replaces the shortlist for one pick date.
// Other dates are never touched, so historical picks stay frozen.
func (s *Store) ReplaceShortlist(ctx context.Context, pickDate time.Time, entries []model.ShortlistEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "store: replace shortlist: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM daily_top_pick WHERE pick_date = $1`, pickDate); err != nil {
		return eris.Wrap(err, "store: replace shortlist: delete old picks")
	}

	for _, e := range entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO daily_top_pick (pick_date, rank, orgnr, reason_summary, total_score_snapshot)
			VALUES ($1, $2, $3, $4, $5)`,
			pickDate, e.Rank, e.Orgnr, e.ReasonSummary, e.ScoreSnapshot,
		); err != nil {
			return eris.Wrapf(err, "store: replace shortlist: insert pick %s", e.Orgnr)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "store: replace shortlist: commit tx")
	}
	return nil
}

// ShortlistForDate returns the picks for one date ordered by rank.
func (s *Store) ShortlistForDate(ctx context.Context, pickDate time.Time) ([]model.ShortlistEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pick_date, rank, orgnr, reason_summary, total_score_snapshot
		FROM daily_top_pick
		WHERE pick_date = $1
		ORDER BY rank`,
		pickDate,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: shortlist for date")
	}
	defer rows.Close()

	var out []model.ShortlistEntry
	for rows.Next() {
		var e model.ShortlistEntry
		if err := rows.Scan(&e.PickDate, &e.Rank, &e.Orgnr, &e.ReasonSummary, &e.ScoreSnapshot); err != nil {
			return nil, eris.Wrap(err, "store: scan shortlist row")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetOutreach returns the outreach record for a company, or nil if none exists.
func (s *Store) GetOutreach(ctx context.Context, orgnr string) (*model.Outreach, error) {
	var o model.Outreach
	err := s.pool.QueryRow(ctx, `
		SELECT orgnr, owner, status, last_contact_at, next_step_at, note, updated_at
		FROM outreach WHERE orgnr = $1`,
		orgnr,
	).Scan(&o.Orgnr, &o.Owner, &o.Status, &o.LastContactAt, &o.NextStepAt, &o.Note, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: get outreach %s", orgnr)
	}
	return &o, nil
}

// UpsertOutreach inserts or updates the outreach record for a company.
// Empty incoming fields preserve stored ones; timestamps merge via COALESCE.
func (s *Store) UpsertOutreach(ctx context.Context, o model.Outreach) error {
	if o.Status == "" {
		o.Status = model.OutreachStatusNew
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO outreach (orgnr, owner, status, last_contact_at, next_step_at, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (orgnr) DO UPDATE SET
			owner           = COALESCE(NULLIF(EXCLUDED.owner, ''), outreach.owner),
			status          = EXCLUDED.status,
			last_contact_at = COALESCE(EXCLUDED.last_contact_at, outreach.last_contact_at),
			next_step_at    = COALESCE(EXCLUDED.next_step_at, outreach.next_step_at),
			note            = COALESCE(NULLIF(EXCLUDED.note, ''), outreach.note),
			updated_at      = now()`,
		o.Orgnr, o.Owner, o.Status, o.LastContactAt, o.NextStepAt, o.Note,
	)
	if err != nil {
		return eris.Wrapf(err, "store: upsert outreach %s", o.Orgnr)
	}
	return nil
}
