package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/awc-invest/prospect-cli/internal/model"
)

func init() {
	// Replace global logger with a no-op to avoid nil pointer panics in tests.
	zap.ReplaceGlobals(zap.NewNop())
}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(mock), mock
}

func TestUpsertCompany_InvalidOrgnr(t *testing.T) {
	s, mock := newMockStore(t)

	err := s.UpsertCompany(context.Background(), model.Company{Orgnr: "12345"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid orgnr")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertCompany(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO company").
		WithArgs("915933149", "Eksempel AS", "62.010", "Oslo", "https://eksempel.no", "",
			false, "", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertCompany(context.Background(), model.Company{
		Orgnr:        "915933149",
		Name:         "Eksempel AS",
		NACE:         "62.010",
		Municipality: "Oslo",
		Website:      "https://eksempel.no",
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCompany_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM company WHERE orgnr").
		WithArgs("999999999").
		WillReturnError(pgx.ErrNoRows)

	c, err := s.GetCompany(context.Background(), "999999999")
	assert.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRawPayload_RefusesEmpty(t *testing.T) {
	s, mock := newMockStore(t)

	err := s.UpsertRawPayload(context.Background(), model.RawPayload{Orgnr: "915933149"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty payload")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRawPayload(t *testing.T) {
	s, mock := newMockStore(t)

	fetched := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"companyAccounts":[]}`)

	mock.ExpectExec("INSERT INTO raw_payload").
		WithArgs("915933149", 200, "https://api.proff.no/companies/NO/915933149", payload, fetched).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertRawPayload(context.Background(), model.RawPayload{
		Orgnr:      "915933149",
		HTTPStatus: 200,
		SourceURL:  "https://api.proff.no/companies/NO/915933149",
		Payload:    payload,
		FetchedAt:  fetched,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRawPayloadOrgnrs_Resume(t *testing.T) {
	s, mock := newMockStore(t)

	rows := pgxmock.NewRows([]string{"orgnr"}).
		AddRow("915933150").
		AddRow("915933151")
	mock.ExpectQuery("SELECT orgnr FROM raw_payload WHERE orgnr >").
		WithArgs("915933149").
		WillReturnRows(rows)

	orgnrs, err := s.ListRawPayloadOrgnrs(context.Background(), "915933149")
	assert.NoError(t, err)
	assert.Equal(t, []string{"915933150", "915933151"}, orgnrs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertFacts_Empty(t *testing.T) {
	s, mock := newMockStore(t)

	n, err := s.UpsertFacts(context.Background(), nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertFacts_InvalidOrgnr(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.UpsertFacts(context.Background(), []model.Fact{{Orgnr: "abc"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid orgnr")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertFacts_BulkPath(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_financial_fact"}, factColumns).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "financial_fact"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	v := 1234.0
	n, err := s.UpsertFacts(context.Background(), []model.Fact{{
		Orgnr:      "915933149",
		FiscalYear: 2024,
		View:       model.ViewCompany,
		Code:       "SDI",
		Value:      &v,
		Currency:   "NOK",
		Source:     model.SourceProff,
		FetchedAt:  time.Now(),
	}})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertScore_PriorityFormula(t *testing.T) {
	s, mock := newMockStore(t)

	// 80 * 1.2 - 5 = 91 on first insert.
	mock.ExpectExec("INSERT INTO score").
		WithArgs("915933149", 2024, 80.0, 1.2, 5.0, 91.0, []byte(nil), "QS_v3;view=company").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertScore(context.Background(), model.Score{
		Orgnr:              "915933149",
		FiscalYear:         2024,
		QualityScore:       80,
		DealLikelihood:     1.2,
		CompetitionPenalty: 5,
		Tags:               "QS_v3;view=company",
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertScore_ConflictPreservesDealFields(t *testing.T) {
	// The preservation happens inside the ON CONFLICT clause itself, so it
	// holds for any concurrent writer. Assert the statement carries it.
	assert.Contains(t, upsertScoreSQL, "score.deal_likelihood_score")
	assert.Contains(t, upsertScoreSQL, "score.competition_penalty")
	assert.Contains(t, upsertScoreSQL, "position(EXCLUDED.tags IN score.tags)")
	assert.Contains(t, upsertScoreSQL, "score.tags || ' | ' || EXCLUDED.tags")
}

func TestUpdateDealLikelihood_NoRow(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE score SET").
		WithArgs(0.8, "strong fit", "915933149", 2024).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateDealLikelihood(context.Background(), "915933149", 2024, 0.8, "strong fit")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no score row")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceShortlist_SingleTransaction(t *testing.T) {
	s, mock := newMockStore(t)

	pickDate := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM daily_top_pick").
		WithArgs(pickDate).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("INSERT INTO daily_top_pick").
		WithArgs(pickDate, 1, "915933149", "high margin", 91.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO daily_top_pick").
		WithArgs(pickDate, 2, "915933150", "steady growth", 88.5).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.ReplaceShortlist(context.Background(), pickDate, []model.ShortlistEntry{
		{PickDate: pickDate, Rank: 1, Orgnr: "915933149", ReasonSummary: "high margin", ScoreSnapshot: 91.0},
		{PickDate: pickDate, Rank: 2, Orgnr: "915933150", ReasonSummary: "steady growth", ScoreSnapshot: 88.5},
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceShortlist_InsertFailureRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	pickDate := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM daily_top_pick").
		WithArgs(pickDate).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO daily_top_pick").
		WithArgs(pickDate, 1, "915933149", "", 91.0).
		WillReturnError(fmt.Errorf("duplicate key"))
	mock.ExpectRollback()

	err := s.ReplaceShortlist(context.Background(), pickDate, []model.ShortlistEntry{
		{Rank: 1, Orgnr: "915933149", ScoreSnapshot: 91.0},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert pick")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShortlistCandidates(t *testing.T) {
	s, mock := newMockStore(t)

	contact := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{
		"orgnr", "name", "priority_score", "tags",
		"is_public_sector", "excluded_reason", "status", "last_contact_at",
	}).
		AddRow("915933149", "Eksempel AS", 91.0, "QS_v3", false, "", "active", &contact).
		AddRow("915933150", "Kommune KF", 95.0, "QS_v3", true, "", "", nil)

	mock.ExpectQuery("SELECT sc.orgnr, c.name, sc.priority_score").
		WithArgs(2024).
		WillReturnRows(rows)

	cands, err := s.ShortlistCandidates(context.Background(), 2024)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, "Eksempel AS", cands[0].Name)
	assert.Equal(t, "active", cands[0].OutreachStatus)
	require.NotNil(t, cands[0].LastContactAt)
	assert.True(t, cands[1].IsPublicSector)
	assert.Nil(t, cands[1].LastContactAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertOutreach_DefaultsStatus(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO outreach").
		WithArgs("915933149", "kari", model.OutreachStatusNew, pgxmock.AnyArg(), pgxmock.AnyArg(), "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertOutreach(context.Background(), model.Outreach{
		Orgnr: "915933149",
		Owner: "kari",
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricsWindow(t *testing.T) {
	s, mock := newMockStore(t)

	rev := 150000.0
	updated := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{
		"orgnr", "fiscal_year", "account_view",
		"revenue", "ebitda", "ebit", "cfo", "assets", "equity", "net_debt",
		"cogs", "depreciation", "inventory", "trade_receivables", "trade_payables", "goodwill",
		"updated_at",
	}).AddRow("915933149", 2024, "company",
		&rev, nil, nil, nil, nil, nil, nil,
		nil, nil, nil, nil, nil, nil,
		updated)

	mock.ExpectQuery("FROM financial_metric").
		WithArgs("915933149", "company", 2021, 2024).
		WillReturnRows(rows)

	snaps, err := s.MetricsWindow(context.Background(), "915933149", model.ViewCompany, 2024, 4)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.NotNil(t, snaps[0].Revenue)
	assert.Equal(t, 150000.0, *snaps[0].Revenue)
	assert.Nil(t, snaps[0].EBITDA)
	assert.Equal(t, model.ViewCompany, snaps[0].View)
	assert.NoError(t, mock.ExpectationsWereMet())
}
