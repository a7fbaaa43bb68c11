package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/awc-invest/prospect-cli/internal/model"
)

// UpsertRawPayload stores the latest successful provider response for a
// company. Callers must only pass successful fetches; a failed fetch must
// never reach this method so the previous good payload survives.
func (s *Store) UpsertRawPayload(ctx context.Context, p model.RawPayload) error {
	if len(p.Payload) == 0 {
		return eris.Errorf("store: refusing empty payload for %s", p.Orgnr)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO raw_payload (orgnr, http_status, source_url, payload_json, fetched_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (orgnr) DO UPDATE SET
			http_status  = EXCLUDED.http_status,
			source_url   = EXCLUDED.source_url,
			payload_json = EXCLUDED.payload_json,
			fetched_at   = EXCLUDED.fetched_at`,
		p.Orgnr, p.HTTPStatus, p.SourceURL, p.Payload, p.FetchedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "store: upsert raw payload %s", p.Orgnr)
	}
	return nil
}

// GetRawPayload returns the stored payload for a company, or nil if absent.
func (s *Store) GetRawPayload(ctx context.Context, orgnr string) (*model.RawPayload, error) {
	var p model.RawPayload
	err := s.pool.QueryRow(ctx, `
		SELECT orgnr, http_status, source_url, payload_json, fetched_at
		FROM raw_payload WHERE orgnr = $1`,
		orgnr,
	).Scan(&p.Orgnr, &p.HTTPStatus, &p.SourceURL, &p.Payload, &p.FetchedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: get raw payload %s", orgnr)
	}
	return &p, nil
}

// ListRawPayloadOrgnrs returns stored payload keys greater than after, in
// ascending order. Pass "" to start from the beginning; the extraction stage
// uses this for checkpointed resume.
func (s *Store) ListRawPayloadOrgnrs(ctx context.Context, after string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT orgnr FROM raw_payload WHERE orgnr > $1 ORDER BY orgnr`,
		after,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: list raw payload orgnrs")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, eris.Wrap(err, "store: scan raw payload orgnr")
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
