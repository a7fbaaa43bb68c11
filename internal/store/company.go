package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/awc-invest/prospect-cli/internal/model"
)

// UpsertCompany inserts or merges a company row. Non-empty incoming fields
// win; empty fields preserve what is already stored, so a sparse source
// (e.g. a spreadsheet import) never erases richer master data.
// is_public_sector is sticky once set.
func (s *Store) UpsertCompany(ctx context.Context, c model.Company) error {
	if model.NormalizeOrgnr(c.Orgnr) == "" {
		return eris.Errorf("store: invalid orgnr %q", c.Orgnr)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO company (
			orgnr, name, nace, municipality, website, sector_code,
			is_public_sector, excluded_reason, description, last_fetch_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (orgnr) DO UPDATE SET
			name             = COALESCE(NULLIF(EXCLUDED.name, ''), company.name),
			nace             = COALESCE(NULLIF(EXCLUDED.nace, ''), company.nace),
			municipality     = COALESCE(NULLIF(EXCLUDED.municipality, ''), company.municipality),
			website          = COALESCE(NULLIF(EXCLUDED.website, ''), company.website),
			sector_code      = COALESCE(NULLIF(EXCLUDED.sector_code, ''), company.sector_code),
			is_public_sector = company.is_public_sector OR EXCLUDED.is_public_sector,
			excluded_reason  = COALESCE(NULLIF(EXCLUDED.excluded_reason, ''), company.excluded_reason),
			description      = COALESCE(NULLIF(EXCLUDED.description, ''), company.description),
			last_fetch_at    = COALESCE(EXCLUDED.last_fetch_at, company.last_fetch_at),
			updated_at       = now()`,
		c.Orgnr, c.Name, c.NACE, c.Municipality, c.Website, c.SectorCode,
		c.IsPublicSector, c.ExcludedReason, c.Description, c.LastFetchAt,
	)
	if err != nil {
		return eris.Wrapf(err, "store: upsert company %s", c.Orgnr)
	}
	return nil
}

// GetCompany returns the company with the given orgnr, or nil if unknown.
func (s *Store) GetCompany(ctx context.Context, orgnr string) (*model.Company, error) {
	var c model.Company
	err := s.pool.QueryRow(ctx, `
		SELECT orgnr, name, nace, municipality, website, sector_code,
		       is_public_sector, excluded_reason, description, last_fetch_at,
		       created_at, updated_at
		FROM company WHERE orgnr = $1`,
		orgnr,
	).Scan(
		&c.Orgnr, &c.Name, &c.NACE, &c.Municipality, &c.Website, &c.SectorCode,
		&c.IsPublicSector, &c.ExcludedReason, &c.Description, &c.LastFetchAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: get company %s", orgnr)
	}
	return &c, nil
}

// ListCompanies returns all companies ordered by orgnr.
func (s *Store) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT orgnr, name, nace, municipality, website, sector_code,
		       is_public_sector, excluded_reason, description, last_fetch_at,
		       created_at, updated_at
		FROM company ORDER BY orgnr`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: list companies")
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(
			&c.Orgnr, &c.Name, &c.NACE, &c.Municipality, &c.Website, &c.SectorCode,
			&c.IsPublicSector, &c.ExcludedReason, &c.Description, &c.LastFetchAt,
			&c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "store: scan company row")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetExclusion sets or clears the manual exclusion reason for a company.
// Unlike UpsertCompany's merge, an empty reason here clears the exclusion.
func (s *Store) SetExclusion(ctx context.Context, orgnr, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE company SET excluded_reason = $1, updated_at = now() WHERE orgnr = $2`,
		reason, orgnr,
	)
	if err != nil {
		return eris.Wrapf(err, "store: set exclusion for %s", orgnr)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("store: unknown company %s", orgnr)
	}
	return nil
}
