package model

import "time"

// AccountView distinguishes the reporting scope of a financial statement.
type AccountView string

const (
	ViewCompany   AccountView = "company"
	ViewCorporate AccountView = "corporate"
	ViewAnnual    AccountView = "annual"
)

// FactSource identifies where a fact was extracted from.
const (
	SourceProff        = "proff"
	SourceForvaltExcel = "proff_forvalt_excel"
)

// RawPayload is the most recent successful provider response for a company.
// It is only ever overwritten by another successful fetch; every downstream
// fact must be re-derivable from it without a new provider call.
type RawPayload struct {
	Orgnr      string    `json:"orgnr"`
	HTTPStatus int       `json:"http_status"`
	SourceURL  string    `json:"source_url"`
	Payload    []byte    `json:"payload_json"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Fact is one normalized (entity, fiscal year, view, code) -> value record.
// Value nil means the source reported the line item without a usable number;
// the row is still kept so the code inventory stays complete.
type Fact struct {
	Orgnr      string      `json:"orgnr"`
	FiscalYear int         `json:"fiscal_year"`
	View       AccountView `json:"account_view"`
	Code       string      `json:"code"`
	Value      *float64    `json:"value,omitempty"`
	Currency   string      `json:"currency,omitempty"`
	Unit       string      `json:"unit,omitempty"`
	Source     string      `json:"source"`
	FetchedAt  time.Time   `json:"fetched_at"`
}
