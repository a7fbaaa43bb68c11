package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/awc-invest/prospect-cli/internal/model"
)

// SearchQuery selects register companies by one account line item of one
// fiscal year, bounded below.
type SearchQuery struct {
	Code     string            `json:"code"`
	Year     int               `json:"year"`
	View     model.AccountView `json:"view"`
	MinValue float64           `json:"min_value"`
	PageSize int               `json:"page_size"`
}

// Criteria renders the query as the JSON stored on the import batch.
func (q SearchQuery) Criteria() string {
	b, _ := json.Marshal(q)
	return string(b)
}

func viewScope(v model.AccountView) string {
	switch v {
	case model.ViewCorporate:
		return "corporateAccounts"
	case model.ViewAnnual:
		return "annualAccounts"
	default:
		return "companyAccounts"
	}
}

// SearchPage fetches one page of register search results. An empty pageURL
// starts a fresh search; otherwise pageURL is the pagination href returned by
// the previous page. It returns the organization numbers on the page in
// response order and the next page's URL, empty when the search is done.
func (c *Client) SearchPage(ctx context.Context, q SearchQuery, pageURL string) ([]string, string, error) {
	if pageURL == "" {
		pageSize := q.PageSize
		if pageSize <= 0 {
			pageSize = 100
		}

		params := url.Values{}
		params.Set("pageSize", strconv.Itoa(pageSize))
		params.Set("accounts", fmt.Sprintf("%s|%d|%s", q.Code, q.Year, viewScope(q.View)))
		params.Set("accountRange", fmt.Sprintf("%.0f:", q.MinValue))
		pageURL = fmt.Sprintf("%s/api/companies/register/%s?%s", c.baseURL, c.country, params.Encode())
	}

	status, body, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, "", err
	}

	switch {
	case status == http.StatusOK:
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, "", eris.Wrapf(ErrQuotaExhausted, "ingest: search returned %d", status)
	default:
		return nil, "", eris.Errorf("ingest: search returned %d", status)
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, "", eris.Wrap(err, "ingest: decode search response")
	}

	return extractOrgnrs(root), nextHref(root), nil
}

// Result lists and per-entry identifier fields seen across provider API
// versions. Order is preserved and duplicates dropped.
var (
	searchListKeys  = []string{"companies", "results", "items", "hits", "entities"}
	searchOrgnrKeys = []string{"organisationNumber", "organizationNumber", "orgnr", "id", "businessId"}
)

func extractOrgnrs(root map[string]json.RawMessage) []string {
	var out []string
	seen := map[string]bool{}

	for _, listKey := range searchListKeys {
		raw, ok := root[listKey]
		if !ok {
			continue
		}
		var list []map[string]json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			continue
		}
		for _, entry := range list {
			orgnr := model.NormalizeOrgnr(firstString(entry, searchOrgnrKeys...))
			if orgnr == "" || seen[orgnr] {
				continue
			}
			seen[orgnr] = true
			out = append(out, orgnr)
		}
	}
	return out
}

func nextHref(root map[string]json.RawMessage) string {
	raw, ok := root["pagination"]
	if !ok {
		return ""
	}
	var pagination map[string]json.RawMessage
	if err := json.Unmarshal(raw, &pagination); err != nil {
		return ""
	}
	next, ok := pagination["next"]
	if !ok {
		return ""
	}
	var nextObj map[string]json.RawMessage
	if err := json.Unmarshal(next, &nextObj); err != nil {
		return ""
	}
	return firstString(nextObj, "href")
}
