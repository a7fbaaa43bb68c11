package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/awc-invest/prospect-cli/internal/db"
	"github.com/awc-invest/prospect-cli/internal/model"
)

var metricColumns = append(
	[]string{"orgnr", "fiscal_year", "account_view"},
	append(append([]string{}, model.MetricFields...), "updated_at")...,
)

// UpsertMetrics bulk-upserts metric snapshots. The projection is
// deterministic, so re-materializing the same facts rewrites identical rows.
func (s *Store) UpsertMetrics(ctx context.Context, snaps []model.MetricSnapshot) (int64, error) {
	if len(snaps) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(snaps))
	for _, m := range snaps {
		rows = append(rows, []any{
			m.Orgnr, m.FiscalYear, string(m.View),
			m.Revenue, m.EBITDA, m.EBIT, m.CFO, m.Assets, m.Equity, m.NetDebt,
			m.COGS, m.Depreciation, m.Inventory, m.TradeReceivables, m.TradePayables, m.Goodwill,
			m.UpdatedAt,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "financial_metric",
		Columns:      metricColumns,
		ConflictKeys: []string{"orgnr", "fiscal_year", "account_view"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "store: upsert metrics")
	}
	return n, nil
}

const metricSelect = `
	SELECT orgnr, fiscal_year, account_view,
	       revenue, ebitda, ebit, cfo, assets, equity, net_debt,
	       cogs, depreciation, inventory, trade_receivables, trade_payables, goodwill,
	       updated_at
	FROM financial_metric`

// MetricsWindow returns the snapshots for one company and view with fiscal
// years in [endYear-years+1, endYear], ascending. The scoring engine feeds
// this window into CAGR and stability calculations.
func (s *Store) MetricsWindow(ctx context.Context, orgnr string, view model.AccountView, endYear, years int) ([]model.MetricSnapshot, error) {
	if years < 1 {
		years = 1
	}
	rows, err := s.pool.Query(ctx,
		metricSelect+`
		WHERE orgnr = $1 AND account_view = $2 AND fiscal_year BETWEEN $3 AND $4
		ORDER BY fiscal_year`,
		orgnr, string(view), endYear-years+1, endYear,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "store: metrics window for %s", orgnr)
	}
	defer rows.Close()
	return scanMetricRows(rows)
}

// MetricOrgnrs returns companies that have a metric row for the given view
// and fiscal year, greater than after, ascending. The scoring stage iterates
// this list with checkpointed resume.
func (s *Store) MetricOrgnrs(ctx context.Context, view model.AccountView, fiscalYear int, after string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT orgnr FROM financial_metric
		WHERE account_view = $1 AND fiscal_year = $2 AND orgnr > $3
		ORDER BY orgnr`,
		string(view), fiscalYear, after,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: list metric orgnrs")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, eris.Wrap(err, "store: scan metric orgnr")
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanMetricRows(rows rowScanner) ([]model.MetricSnapshot, error) {
	var out []model.MetricSnapshot
	for rows.Next() {
		var m model.MetricSnapshot
		var view string
		if err := rows.Scan(
			&m.Orgnr, &m.FiscalYear, &view,
			&m.Revenue, &m.EBITDA, &m.EBIT, &m.CFO, &m.Assets, &m.Equity, &m.NetDebt,
			&m.COGS, &m.Depreciation, &m.Inventory, &m.TradeReceivables, &m.TradePayables, &m.Goodwill,
			&m.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "store: scan metric row")
		}
		m.View = model.AccountView(view)
		out = append(out, m)
	}
	return out, rows.Err()
}
