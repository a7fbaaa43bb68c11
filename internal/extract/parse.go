// Package extract turns stored raw provider payloads into normalized
// financial facts.
package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/awc-invest/prospect-cli/internal/model"
)

// viewKeys maps the provider's statement sections onto account views.
var viewKeys = map[string]model.AccountView{
	"companyAccounts":   model.ViewCompany,
	"corporateAccounts": model.ViewCorporate,
	"annualAccounts":    model.ViewAnnual,
}

// ParseStats counts what a payload parse produced and skipped.
type ParseStats struct {
	Facts             int
	SkippedStatements int
	SkippedEntries    int
}

type statement struct {
	Year     json.RawMessage `json:"year"`
	Currency string          `json:"currency"`
	Unit     string          `json:"unit"`
	Accounts json.RawMessage `json:"accounts"`
}

type accountEntry struct {
	Code   string          `json:"code"`
	Amount json.RawMessage `json:"amount"`
	Value  json.RawMessage `json:"value"`
}

// ParsePayload extracts facts from one stored payload. The provider emits
// accounts either as a list of {code, amount} objects or as a code->value
// map; both shapes are handled. Statements older than minYear are dropped
// (pass 0 to keep everything). Malformed statements and entries are skipped
// and counted, never fatal; only a payload that is not a JSON object errors.
func ParsePayload(p model.RawPayload, minYear int) ([]model.Fact, ParseStats, error) {
	var stats ParseStats

	var root map[string]json.RawMessage
	if err := json.Unmarshal(p.Payload, &root); err != nil {
		return nil, stats, eris.Wrapf(err, "extract: payload for %s is not a JSON object", p.Orgnr)
	}

	var facts []model.Fact
	for key, view := range viewKeys {
		raw, ok := root[key]
		if !ok {
			continue
		}

		var rawStmts []json.RawMessage
		if err := json.Unmarshal(raw, &rawStmts); err != nil {
			stats.SkippedStatements++
			continue
		}

		// Statements decode one by one so a single malformed entry cannot
		// poison the rest of the section.
		for _, rs := range rawStmts {
			var st statement
			if err := json.Unmarshal(rs, &st); err != nil {
				stats.SkippedStatements++
				continue
			}

			year, ok := parseYear(st.Year)
			if !ok || year < 1900 {
				stats.SkippedStatements++
				continue
			}
			if minYear > 0 && year < minYear {
				continue
			}

			entries, skipped := parseAccounts(st.Accounts)
			stats.SkippedEntries += skipped
			if entries == nil {
				stats.SkippedStatements++
				continue
			}

			for code, value := range entries {
				facts = append(facts, model.Fact{
					Orgnr:      p.Orgnr,
					FiscalYear: year,
					View:       view,
					Code:       code,
					Value:      value,
					Currency:   st.Currency,
					Unit:       st.Unit,
					Source:     model.SourceProff,
					FetchedAt:  p.FetchedAt,
				})
			}
		}
	}

	stats.Facts = len(facts)
	return facts, stats, nil
}

// parseYear accepts the fiscal year as a JSON number or numeric string.
func parseYear(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if y, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return y, true
		}
	}
	return 0, false
}

// parseAccounts handles both account shapes. It returns nil when the shape
// is unrecognized, plus the count of individually malformed entries.
func parseAccounts(raw json.RawMessage) (map[string]*float64, int) {
	if len(raw) == 0 {
		return nil, 0
	}

	skipped := 0

	var list []accountEntry
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make(map[string]*float64, len(list))
		for _, e := range list {
			if e.Code == "" {
				skipped++
				continue
			}
			amount := e.Amount
			if amount == nil {
				amount = e.Value
			}
			v, ok := parseValue(amount)
			if !ok {
				skipped++
				continue
			}
			out[e.Code] = v
		}
		return out, skipped
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err == nil {
		out := make(map[string]*float64, len(m))
		for code, rawVal := range m {
			v, ok := parseValue(rawVal)
			if !ok {
				skipped++
				continue
			}
			out[code] = v
		}
		return out, skipped
	}

	return nil, skipped
}

// parseValue coerces a JSON number, numeric string, or null into *float64.
// nil with ok=true means the code was reported without a usable number.
func parseValue(raw json.RawMessage) (*float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, true
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" || s == "-" {
			return nil, true
		}
		if v, err := model.ParseAmount(s); err == nil {
			return &v, true
		}
	}

	return nil, false
}
