package shortlist

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/awc-invest/prospect-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var now = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func TestEligible_PublicSector(t *testing.T) {
	ok, reason := Eligible(store.Candidate{Orgnr: "915933149", IsPublicSector: true}, 12, now)
	assert.False(t, ok)
	assert.Equal(t, "public sector", reason)
}

func TestEligible_ManualExclusion(t *testing.T) {
	ok, reason := Eligible(store.Candidate{Orgnr: "915933149", ExcludedReason: "competitor"}, 12, now)
	assert.False(t, ok)
	assert.Contains(t, reason, "competitor")
}

func TestEligible_OutreachStatus(t *testing.T) {
	for _, status := range []string{"active", "declined", "excluded"} {
		ok, _ := Eligible(store.Candidate{Orgnr: "915933149", OutreachStatus: status}, 12, now)
		assert.Falsef(t, ok, "status %s should be ineligible", status)
	}

	ok, _ := Eligible(store.Candidate{Orgnr: "915933149", OutreachStatus: "new"}, 12, now)
	assert.True(t, ok)
}

func TestEligible_Cooldown(t *testing.T) {
	recent := now.AddDate(0, -3, 0)
	stale := now.AddDate(0, -13, 0)

	ok, reason := Eligible(store.Candidate{Orgnr: "915933149", LastContactAt: &recent}, 12, now)
	assert.False(t, ok)
	assert.Contains(t, reason, "12 months")

	ok, _ = Eligible(store.Candidate{Orgnr: "915933149", LastContactAt: &stale}, 12, now)
	assert.True(t, ok)

	// Cooldown disabled keeps even fresh contacts eligible.
	ok, _ = Eligible(store.Candidate{Orgnr: "915933149", LastContactAt: &recent}, 0, now)
	assert.True(t, ok)
}

func TestRank_Deterministic(t *testing.T) {
	cands := []store.Candidate{
		{Orgnr: "300000000", Priority: 90},
		{Orgnr: "100000000", Priority: 90},
		{Orgnr: "200000000", Priority: 80},
	}

	// Equal scores break ties by orgnr ascending; size trims the tail.
	ranked := Rank(cands, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "100000000", ranked[0].Orgnr)
	assert.Equal(t, "300000000", ranked[1].Orgnr)

	again := Rank(cands, 2)
	assert.Equal(t, ranked, again)
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	cands := []store.Candidate{
		{Orgnr: "200000000", Priority: 10},
		{Orgnr: "100000000", Priority: 20},
	}

	Rank(cands, 1)
	assert.Equal(t, "200000000", cands[0].Orgnr)
}

func TestReasonSummary_UsesLatestTagSet(t *testing.T) {
	c := store.Candidate{
		Priority: 91.25,
		Tags:     "QS_v2;view=company;rev_band=low | QS_v3;view=company;rev_band=mid",
	}
	assert.Equal(t, "priority 91.2; QS_v3;view=company;rev_band=mid", reasonSummary(c))
}

func TestGenerate_RanksFiltersAndPersists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	pickDate := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{
		"orgnr", "name", "priority_score", "tags",
		"is_public_sector", "excluded_reason", "status", "last_contact_at",
	}).
		AddRow("100000000", "A AS", 90.0, "QS_v3;view=company;rev_band=mid", false, "", "", nil).
		AddRow("200000000", "B AS", 90.0, "QS_v3;view=company;rev_band=mid", false, "", "", nil).
		AddRow("300000000", "C Kommune", 99.0, "QS_v3;view=company;rev_band=high", true, "", "", nil).
		AddRow("400000000", "D AS", 80.0, "QS_v3;view=company;rev_band=low", false, "", "", nil)

	mock.ExpectQuery("FROM score sc").WithArgs(2024).WillReturnRows(rows)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM daily_top_pick").
		WithArgs(pickDate).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO daily_top_pick").
		WithArgs(pickDate, 1, "100000000", "priority 90.0; QS_v3;view=company;rev_band=mid", 90.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO daily_top_pick").
		WithArgs(pickDate, 2, "200000000", "priority 90.0; QS_v3;view=company;rev_band=mid", 90.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	g := &Generator{Store: store.New(mock), Size: 2, CooldownMonths: 12}
	entries, err := g.Generate(context.Background(), 2024, pickDate)
	require.NoError(t, err)

	// The public-sector top scorer is filtered out; ties break by orgnr.
	require.Len(t, entries, 2)
	assert.Equal(t, "100000000", entries[0].Orgnr)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "200000000", entries[1].Orgnr)
	assert.NoError(t, mock.ExpectationsWereMet())
}
