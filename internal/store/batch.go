package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/awc-invest/prospect-cli/internal/db"
	"github.com/awc-invest/prospect-cli/internal/model"
)

// CreateImportBatch records a named batch and its selection criteria,
// returning the batch id. Re-running with the same name replaces the
// criteria but keeps the id stable.
func (s *Store) CreateImportBatch(ctx context.Context, name, criteria string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO import_batch (batch_name, criteria)
		VALUES ($1, $2)
		ON CONFLICT (batch_name) DO UPDATE SET criteria = EXCLUDED.criteria
		RETURNING batch_id`,
		name, criteria,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "store: create import batch %s", name)
	}
	return id, nil
}

// AddBatchItems adds companies to a batch, ignoring duplicates.
func (s *Store) AddBatchItems(ctx context.Context, batchID int64, orgnrs []string) (int64, error) {
	if len(orgnrs) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(orgnrs))
	for _, o := range orgnrs {
		if model.NormalizeOrgnr(o) == "" {
			return 0, eris.Errorf("store: batch item with invalid orgnr %q", o)
		}
		rows = append(rows, []any{batchID, o})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "import_batch_item",
		Columns:      []string{"batch_id", "orgnr"},
		ConflictKeys: []string{"batch_id", "orgnr"},
		UpdateCols:   []string{"orgnr"},
	}, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "store: add items to batch %d", batchID)
	}
	return n, nil
}

// BatchOrgnrs returns the members of a named batch greater than after,
// ascending. The ingest stage iterates this with checkpointed resume.
func (s *Store) BatchOrgnrs(ctx context.Context, batchName, after string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT i.orgnr
		FROM import_batch_item i
		JOIN import_batch b ON b.batch_id = i.batch_id
		WHERE b.batch_name = $1 AND i.orgnr > $2
		ORDER BY i.orgnr`,
		batchName, after,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "store: batch orgnrs for %s", batchName)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, eris.Wrap(err, "store: scan batch orgnr")
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
