package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/awc-invest/prospect-cli/internal/db"
	"github.com/awc-invest/prospect-cli/internal/model"
)

var factColumns = []string{
	"orgnr", "fiscal_year", "account_view", "code",
	"value", "currency", "unit", "source", "fetched_at",
}

// UpsertFacts bulk-upserts normalized facts. Re-extracting the same payload
// rewrites identical rows; a changed value for an existing
// (orgnr, fiscal_year, account_view, code) key replaces the old one.
func (s *Store) UpsertFacts(ctx context.Context, facts []model.Fact) (int64, error) {
	if len(facts) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(facts))
	for _, f := range facts {
		if model.NormalizeOrgnr(f.Orgnr) == "" {
			return 0, eris.Errorf("store: fact with invalid orgnr %q", f.Orgnr)
		}
		rows = append(rows, []any{
			f.Orgnr, f.FiscalYear, string(f.View), f.Code,
			f.Value, f.Currency, f.Unit, f.Source, f.FetchedAt,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "financial_fact",
		Columns:      factColumns,
		ConflictKeys: []string{"orgnr", "fiscal_year", "account_view", "code"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "store: upsert facts")
	}
	return n, nil
}

// FactsForEntity returns all facts for one company and view, ordered by
// fiscal year then code.
func (s *Store) FactsForEntity(ctx context.Context, orgnr string, view model.AccountView) ([]model.Fact, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT orgnr, fiscal_year, account_view, code, value, currency, unit, source, fetched_at
		FROM financial_fact
		WHERE orgnr = $1 AND account_view = $2
		ORDER BY fiscal_year, code`,
		orgnr, string(view),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "store: facts for %s", orgnr)
	}
	defer rows.Close()

	var out []model.Fact
	for rows.Next() {
		var f model.Fact
		var view string
		if err := rows.Scan(&f.Orgnr, &f.FiscalYear, &view, &f.Code, &f.Value,
			&f.Currency, &f.Unit, &f.Source, &f.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan fact row")
		}
		f.View = model.AccountView(view)
		out = append(out, f)
	}
	return out, rows.Err()
}

// FactOrgnrs returns the distinct companies that have facts for a view,
// greater than after, in ascending order.
func (s *Store) FactOrgnrs(ctx context.Context, view model.AccountView, after string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT orgnr FROM financial_fact
		WHERE account_view = $1 AND orgnr > $2
		ORDER BY orgnr`,
		string(view), after,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: list fact orgnrs")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, eris.Wrap(err, "store: scan fact orgnr")
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
