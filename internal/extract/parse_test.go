package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/awc-invest/prospect-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func payload(t *testing.T, body string) model.RawPayload {
	t.Helper()
	return model.RawPayload{
		Orgnr:      "915933149",
		HTTPStatus: 200,
		Payload:    []byte(body),
		FetchedAt:  time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
	}
}

func factByCode(facts []model.Fact, view model.AccountView, year int, code string) *model.Fact {
	for i := range facts {
		f := facts[i]
		if f.View == view && f.FiscalYear == year && f.Code == code {
			return &f
		}
	}
	return nil
}

func TestParsePayload_ListShape(t *testing.T) {
	p := payload(t, `{
		"companyAccounts": [
			{"year": 2024, "currency": "NOK", "accounts": [
				{"code": "SDI", "amount": 150000},
				{"code": "DR", "amount": "12 500"},
				{"code": "EK", "amount": null}
			]}
		]
	}`)

	facts, stats, err := ParsePayload(p, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Facts)
	assert.Zero(t, stats.SkippedEntries)

	sdi := factByCode(facts, model.ViewCompany, 2024, "SDI")
	require.NotNil(t, sdi)
	require.NotNil(t, sdi.Value)
	assert.Equal(t, 150000.0, *sdi.Value)
	assert.Equal(t, "NOK", sdi.Currency)
	assert.Equal(t, model.SourceProff, sdi.Source)

	// NBSP-free space-grouped string amounts still parse.
	dr := factByCode(facts, model.ViewCompany, 2024, "DR")
	require.NotNil(t, dr)
	require.NotNil(t, dr.Value)
	assert.Equal(t, 12500.0, *dr.Value)

	// Null amounts keep the row with a nil value.
	ek := factByCode(facts, model.ViewCompany, 2024, "EK")
	require.NotNil(t, ek)
	assert.Nil(t, ek.Value)
}

func TestParsePayload_MapShape(t *testing.T) {
	p := payload(t, `{
		"corporateAccounts": [
			{"year": 2023, "accounts": {"SDI": 90000, "EBITDA": "7 250,5"}}
		]
	}`)

	facts, stats, err := ParsePayload(p, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Facts)

	ebitda := factByCode(facts, model.ViewCorporate, 2023, "EBITDA")
	require.NotNil(t, ebitda)
	require.NotNil(t, ebitda.Value)
	assert.Equal(t, 7250.5, *ebitda.Value)
}

func TestParsePayload_AllViews(t *testing.T) {
	p := payload(t, `{
		"companyAccounts":   [{"year": 2024, "accounts": {"SDI": 1}}],
		"corporateAccounts": [{"year": 2024, "accounts": {"SDI": 2}}],
		"annualAccounts":    [{"year": 2024, "accounts": {"SDI": 3}}]
	}`)

	facts, _, err := ParsePayload(p, 0)
	require.NoError(t, err)
	require.Len(t, facts, 3)
	assert.NotNil(t, factByCode(facts, model.ViewCompany, 2024, "SDI"))
	assert.NotNil(t, factByCode(facts, model.ViewCorporate, 2024, "SDI"))
	assert.NotNil(t, factByCode(facts, model.ViewAnnual, 2024, "SDI"))
}

func TestParsePayload_MinYearFilter(t *testing.T) {
	p := payload(t, `{
		"companyAccounts": [
			{"year": 2019, "accounts": {"SDI": 1}},
			{"year": 2023, "accounts": {"SDI": 2}}
		]
	}`)

	facts, _, err := ParsePayload(p, 2020)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, 2023, facts[0].FiscalYear)
}

func TestParsePayload_MalformedEntriesSkippedAndCounted(t *testing.T) {
	p := payload(t, `{
		"companyAccounts": [
			{"year": 2024, "accounts": [
				{"code": "SDI", "amount": 100},
				{"code": "", "amount": 5},
				{"code": "DR", "amount": "not a number"}
			]},
			{"year": "garbage", "accounts": {"SDI": 1}}
		]
	}`)

	facts, stats, err := ParsePayload(p, 0)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, 2, stats.SkippedEntries)
	assert.Equal(t, 1, stats.SkippedStatements)
}

func TestParsePayload_NotAnObject(t *testing.T) {
	_, _, err := ParsePayload(payload(t, `[1, 2, 3]`), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a JSON object")
}

func TestParsePayload_Idempotent(t *testing.T) {
	p := payload(t, `{"companyAccounts": [{"year": 2024, "accounts": {"SDI": 100, "DR": 20}}]}`)

	first, _, err := ParsePayload(p, 0)
	require.NoError(t, err)
	second, _, err := ParsePayload(p, 0)
	require.NoError(t, err)

	assert.ElementsMatch(t, first, second)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"1234", 1234},
		{"1 234", 1234},
		{"1 234 000", 1234000},
		{"1 234 567", 1234567},
		{"-12,5", -12.5},
		{"0.75", 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := model.ParseAmount(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := model.ParseAmount("n/a")
	assert.Error(t, err)
}
