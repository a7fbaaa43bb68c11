package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/awc-invest/prospect-cli/internal/config"
	"github.com/awc-invest/prospect-cli/internal/runledger"
	"github.com/awc-invest/prospect-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func testClient(baseURL string) *Client {
	return NewClient(config.ProviderConfig{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		APIVersion: "1.1",
		Country:    "NO",
		RatePerSec: 1000,
		MaxRetries: 2,
	})
}

func TestFetchCompany_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/companies/register/NO/915933149", r.URL.Path)
		assert.Equal(t, "Token test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "1.1", r.Header.Get("api-version"))
		w.Write([]byte(`{"name": "Eksempel AS"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	p, err := testClient(srv.URL).FetchCompany(context.Background(), "915933149")
	require.NoError(t, err)
	assert.Equal(t, "915933149", p.Orgnr)
	assert.Equal(t, http.StatusOK, p.HTTPStatus)
	assert.Contains(t, p.SourceURL, "/915933149")
	assert.JSONEq(t, `{"name": "Eksempel AS"}`, string(p.Payload))
	assert.False(t, p.FetchedAt.IsZero())
}

func TestFetchCompany_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchCompany(context.Background(), "915933149")
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestFetchCompany_QuotaExhausted(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		_, err := testClient(srv.URL).FetchCompany(context.Background(), "915933149")
		assert.Truef(t, eris.Is(err, ErrQuotaExhausted), "status %d", status)
		srv.Close()
	}
}

func TestFetchCompany_RefusesEmptyObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchCompany(context.Background(), "915933149")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unusable body")
}

func TestFetchCompany_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0.01")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"name": "Eksempel AS"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	p, err := testClient(srv.URL).FetchCompany(context.Background(), "915933149")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.NotNil(t, p)
}

func TestFetchCompany_GivesUpAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "0.01")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchCompany(context.Background(), "915933149")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up")
}

func TestSearchPage_ExtractsAndPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("pageSize"))
		assert.Equal(t, "DR|2024|companyAccounts", r.URL.Query().Get("accounts"))
		assert.Equal(t, "40000:", r.URL.Query().Get("accountRange"))
		w.Write([]byte(`{
			"companies": [
				{"organisationNumber": "915 933 149"},
				{"orgnr": "915933149"},
				{"id": "998877665"},
				{"name": "mangler orgnr"}
			],
			"pagination": {"next": {"href": "https://example.invalid/page2"}}
		}`)) //nolint:errcheck
	}))
	defer srv.Close()

	orgnrs, next, err := testClient(srv.URL).SearchPage(context.Background(), SearchQuery{
		Code: "DR", Year: 2024, MinValue: 40_000,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"915933149", "998877665"}, orgnrs)
	assert.Equal(t, "https://example.invalid/page2", next)
}

func TestSearchPage_LastPageHasNoNext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"results": [{"organizationNumber": "915933149"}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	orgnrs, next, err := testClient(srv.URL).SearchPage(context.Background(), SearchQuery{Code: "DR", Year: 2024}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"915933149"}, orgnrs)
	assert.Empty(t, next)
}

func TestCompanyFromPayload(t *testing.T) {
	fetchedAt := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	payload := []byte(`{
		"name": "Eksempel AS",
		"homePage": "https://eksempel.no",
		"naceCategories": [{"code": "62.010", "name": "Programmeringstjenester"}],
		"sectorCode": "2100",
		"postalAddress": {"municipality": "Bergen", "postCode": "5003"},
		"companyType": {"code": "AS", "name": "Aksjeselskap"}
	}`)

	c := CompanyFromPayload("915933149", payload, fetchedAt)
	assert.Equal(t, "915933149", c.Orgnr)
	assert.Equal(t, "Eksempel AS", c.Name)
	assert.Equal(t, "https://eksempel.no", c.Website)
	assert.Equal(t, "62.010", c.NACE)
	assert.Equal(t, "2100", c.SectorCode)
	assert.Equal(t, "Bergen", c.Municipality)
	assert.False(t, c.IsPublicSector)
	require.NotNil(t, c.LastFetchAt)
	assert.Equal(t, fetchedAt, *c.LastFetchAt)
}

func TestCompanyFromPayload_PublicSectorForm(t *testing.T) {
	c := CompanyFromPayload("915933149", []byte(`{"name": "En Kommune", "companyType": "KOMM"}`), time.Now())
	assert.True(t, c.IsPublicSector)
}

func TestCompanyFromPayload_UnparsablePayloadKeepsOrgnr(t *testing.T) {
	c := CompanyFromPayload("915933149", []byte(`not json`), time.Now())
	assert.Equal(t, "915933149", c.Orgnr)
	assert.Empty(t, c.Name)
}

func TestRun_FetchesSkipsAndCheckpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/companies/register/NO/100000000":
			w.Write([]byte(`{"name": "A AS"}`)) //nolint:errcheck
		case "/api/companies/register/NO/200000000":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.Write([]byte(`{"name": "C AS"}`)) //nolint:errcheck
		}
	}))
	defer srv.Close()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM import_batch_item i").
		WithArgs("ebit-2024", "").
		WillReturnRows(pgxmock.NewRows([]string{"orgnr"}).
			AddRow("100000000").AddRow("200000000").AddRow("300000000"))

	// 100000000 succeeds: company then payload.
	mock.ExpectExec("INSERT INTO company").
		WithArgs("100000000", "A AS", "", "", "", "", false, "", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO raw_payload").
		WithArgs("100000000", http.StatusOK, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO ingestion_checkpoint").
		WithArgs("run-1", Phase, "100000000", int64(1), "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	// 200000000 is a register miss; no writes until the next checkpoint.
	mock.ExpectExec("INSERT INTO ingestion_checkpoint").
		WithArgs("run-1", Phase, "200000000", int64(2), "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectExec("INSERT INTO company").
		WithArgs("300000000", "C AS", "", "", "", "", false, "", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO raw_payload").
		WithArgs("300000000", http.StatusOK, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO ingestion_checkpoint").
		WithArgs("run-1", Phase, "300000000", int64(3), "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	r := &Runner{
		Store:           store.New(mock),
		Ledger:          runledger.New(mock),
		Client:          testClient(srv.URL),
		CheckpointEvery: 1,
	}

	stats, err := r.Run(context.Background(), "run-1", "ebit-2024", "")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Fetched)
	assert.Equal(t, 1, stats.NotFound)
	assert.Equal(t, 0, stats.Failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_QuotaExhaustionAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM import_batch_item i").
		WithArgs("ebit-2024", "").
		WillReturnRows(pgxmock.NewRows([]string{"orgnr"}).AddRow("100000000").AddRow("200000000"))

	r := &Runner{
		Store:  store.New(mock),
		Ledger: runledger.New(mock),
		Client: testClient(srv.URL),
	}

	_, err = r.Run(context.Background(), "run-1", "ebit-2024", "")
	assert.True(t, eris.Is(err, ErrQuotaExhausted))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildBatch_PaginatesAndCheckpointsCursor(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/page2" {
			w.Write([]byte(`{"companies": [{"orgnr": "300000000"}]}`)) //nolint:errcheck
			return
		}
		w.Write([]byte(`{
			"companies": [{"orgnr": "100000000"}, {"orgnr": "200000000"}],
			"pagination": {"next": {"href": "` + srvURL + `/page2"}}
		}`)) //nolint:errcheck
	}))
	defer srv.Close()
	srvURL = srv.URL

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO import_batch").
		WithArgs("ebit-2024", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"batch_id"}).AddRow(int64(7)))

	// Page 1: two members via the temp-table bulk path.
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_import_batch_item"}, []string{"batch_id", "orgnr"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "import_batch_item"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectExec("INSERT INTO ingestion_checkpoint").
		WithArgs("run-1", SearchPhase, "", int64(2), srvURL+"/page2").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	// Page 2: one member, then the final checkpoint clears the cursor.
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_import_batch_item"}, []string{"batch_id", "orgnr"}).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "import_batch_item"`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectExec("INSERT INTO ingestion_checkpoint").
		WithArgs("run-1", SearchPhase, "", int64(3), "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	r := &Runner{
		Store:  store.New(mock),
		Ledger: runledger.New(mock),
		Client: testClient(srv.URL),
	}

	total, err := r.BuildBatch(context.Background(), "run-1", "ebit-2024", SearchQuery{
		Code: "DR", Year: 2024, MinValue: 40_000,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
