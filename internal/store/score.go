package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/awc-invest/prospect-cli/internal/model"
)

// The conflict clause recomputes priority against the stored deal fields and
// appends the incoming tag set to the history unless already present verbatim,
// inside the statement itself so concurrent writers cannot race past it.
const upsertScoreSQL = `
	INSERT INTO score (
		orgnr, fiscal_year, quality_score, deal_likelihood_score,
		competition_penalty, priority_score, component_scores, tags, computed_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	ON CONFLICT (orgnr, fiscal_year) DO UPDATE SET
		quality_score    = EXCLUDED.quality_score,
		priority_score   = EXCLUDED.quality_score * score.deal_likelihood_score - score.competition_penalty,
		component_scores = EXCLUDED.component_scores,
		tags = CASE
			WHEN score.tags = '' THEN EXCLUDED.tags
			WHEN position(EXCLUDED.tags IN score.tags) > 0 THEN score.tags
			ELSE score.tags || ' | ' || EXCLUDED.tags
		END,
		computed_at = now()`

// UpsertScore writes a scoring result for one (orgnr, fiscal year).
// On conflict the stored deal_likelihood_score and competition_penalty are
// preserved and priority is recomputed against them, so a quality re-run
// never erases likelihood work done between runs. The incoming tag set is
// appended to the tag history unless it is already present verbatim.
func (s *Store) UpsertScore(ctx context.Context, sc model.Score) error {
	var compJSON []byte
	if sc.Components != nil {
		var err error
		compJSON, err = json.Marshal(sc.Components)
		if err != nil {
			return eris.Wrap(err, "store: marshal component scores")
		}
	}

	priority := model.Priority(sc.QualityScore, sc.DealLikelihood, sc.CompetitionPenalty)

	_, err := s.pool.Exec(ctx, upsertScoreSQL,
		sc.Orgnr, sc.FiscalYear, sc.QualityScore, sc.DealLikelihood,
		sc.CompetitionPenalty, priority, compJSON, sc.Tags,
	)
	if err != nil {
		return eris.Wrapf(err, "store: upsert score %s/%d", sc.Orgnr, sc.FiscalYear)
	}
	return nil
}

// UpdateDealLikelihood sets the deal-likelihood multiplier and note for an
// existing score and recomputes priority against the stored quality score.
func (s *Store) UpdateDealLikelihood(ctx context.Context, orgnr string, fiscalYear int, likelihood float64, note string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE score SET
			deal_likelihood_score = $1,
			deal_note             = $2,
			priority_score        = quality_score * $1 - competition_penalty,
			computed_at           = now()
		WHERE orgnr = $3 AND fiscal_year = $4`,
		likelihood, note, orgnr, fiscalYear,
	)
	if err != nil {
		return eris.Wrapf(err, "store: update deal likelihood %s/%d", orgnr, fiscalYear)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("store: no score row for %s/%d", orgnr, fiscalYear)
	}
	return nil
}

// SetCompetitionPenalty sets the stored penalty and recomputes priority.
func (s *Store) SetCompetitionPenalty(ctx context.Context, orgnr string, fiscalYear int, penalty float64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE score SET
			competition_penalty = $1,
			priority_score      = quality_score * deal_likelihood_score - $1,
			computed_at         = now()
		WHERE orgnr = $2 AND fiscal_year = $3`,
		penalty, orgnr, fiscalYear,
	)
	if err != nil {
		return eris.Wrapf(err, "store: set competition penalty %s/%d", orgnr, fiscalYear)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("store: no score row for %s/%d", orgnr, fiscalYear)
	}
	return nil
}

const scoreSelect = `
	SELECT orgnr, fiscal_year, quality_score, deal_likelihood_score,
	       competition_penalty, priority_score, component_scores, tags,
	       deal_note, computed_at
	FROM score`

// GetScore returns the score for one (orgnr, fiscal year), or nil if absent.
func (s *Store) GetScore(ctx context.Context, orgnr string, fiscalYear int) (*model.Score, error) {
	row := s.pool.QueryRow(ctx, scoreSelect+` WHERE orgnr = $1 AND fiscal_year = $2`, orgnr, fiscalYear)
	sc, err := scanScore(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: get score %s/%d", orgnr, fiscalYear)
	}
	return sc, nil
}

// LatestScore returns the most recent fiscal year's score for a company.
func (s *Store) LatestScore(ctx context.Context, orgnr string) (*model.Score, error) {
	row := s.pool.QueryRow(ctx, scoreSelect+` WHERE orgnr = $1 ORDER BY fiscal_year DESC LIMIT 1`, orgnr)
	sc, err := scanScore(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: latest score %s", orgnr)
	}
	return sc, nil
}

// TopScores returns the highest-priority scores for a fiscal year, ties
// broken by orgnr ascending.
func (s *Store) TopScores(ctx context.Context, fiscalYear, limit int) ([]model.Score, error) {
	rows, err := s.pool.Query(ctx,
		scoreSelect+` WHERE fiscal_year = $1 ORDER BY priority_score DESC, orgnr ASC LIMIT $2`,
		fiscalYear, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: top scores")
	}
	defer rows.Close()

	var out []model.Score
	for rows.Next() {
		sc, err := scanScore(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan score row")
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

// Candidate is one shortlist input row: a scored company joined with the
// master-data and outreach fields the eligibility rules consume.
type Candidate struct {
	Orgnr          string
	Name           string
	Priority       float64
	Tags           string
	IsPublicSector bool
	ExcludedReason string
	OutreachStatus string
	LastContactAt  *time.Time
}

// ShortlistCandidates returns every scored company for a fiscal year with the
// fields the shortlist eligibility and ranking rules need. Filtering happens
// in the caller so the rules stay unit-testable.
func (s *Store) ShortlistCandidates(ctx context.Context, fiscalYear int) ([]Candidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sc.orgnr, c.name, sc.priority_score, sc.tags,
		       c.is_public_sector, c.excluded_reason,
		       COALESCE(o.status, ''), o.last_contact_at
		FROM score sc
		JOIN company c ON c.orgnr = sc.orgnr
		LEFT JOIN outreach o ON o.orgnr = sc.orgnr
		WHERE sc.fiscal_year = $1`,
		fiscalYear,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: shortlist candidates")
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var cd Candidate
		if err := rows.Scan(&cd.Orgnr, &cd.Name, &cd.Priority, &cd.Tags,
			&cd.IsPublicSector, &cd.ExcludedReason, &cd.OutreachStatus, &cd.LastContactAt); err != nil {
			return nil, eris.Wrap(err, "store: scan candidate row")
		}
		out = append(out, cd)
	}
	return out, rows.Err()
}

func scanScore(row pgx.Row) (*model.Score, error) {
	var sc model.Score
	var compJSON []byte
	if err := row.Scan(
		&sc.Orgnr, &sc.FiscalYear, &sc.QualityScore, &sc.DealLikelihood,
		&sc.CompetitionPenalty, &sc.PriorityScore, &compJSON, &sc.Tags,
		&sc.DealNote, &sc.ComputedAt,
	); err != nil {
		return nil, err
	}
	if compJSON != nil {
		_ = json.Unmarshal(compJSON, &sc.Components)
	}
	return &sc, nil
}
