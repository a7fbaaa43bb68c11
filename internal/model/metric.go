package model

import "time"

// MetricSnapshot is the fixed-shape projection of facts for one
// (entity, fiscal year, view). A nil field means the underlying code was
// absent from the facts, never zero.
type MetricSnapshot struct {
	Orgnr      string      `json:"orgnr"`
	FiscalYear int         `json:"fiscal_year"`
	View       AccountView `json:"account_view"`

	Revenue *float64 `json:"revenue,omitempty"`
	EBITDA  *float64 `json:"ebitda,omitempty"`
	EBIT    *float64 `json:"ebit,omitempty"`
	CFO     *float64 `json:"cfo,omitempty"`
	Assets  *float64 `json:"assets,omitempty"`
	Equity  *float64 `json:"equity,omitempty"`
	NetDebt *float64 `json:"net_debt,omitempty"`

	// Compounder inputs carried alongside the core set.
	COGS             *float64 `json:"cogs,omitempty"`
	Depreciation     *float64 `json:"depreciation,omitempty"`
	Inventory        *float64 `json:"inventory,omitempty"`
	TradeReceivables *float64 `json:"trade_receivables,omitempty"`
	TradePayables    *float64 `json:"trade_payables,omitempty"`
	Goodwill         *float64 `json:"goodwill,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// MetricFields enumerates the snapshot field names in storage column order.
// The materializer and the code map validate against this list so a mapping
// file cannot silently target a non-existent metric.
var MetricFields = []string{
	"revenue", "ebitda", "ebit", "cfo", "assets", "equity", "net_debt",
	"cogs", "depreciation", "inventory", "trade_receivables", "trade_payables", "goodwill",
}

// Set assigns a value to the named metric field. Unknown names are ignored
// by returning false so callers can count mapping misses.
func (m *MetricSnapshot) Set(field string, v *float64) bool {
	switch field {
	case "revenue":
		m.Revenue = v
	case "ebitda":
		m.EBITDA = v
	case "ebit":
		m.EBIT = v
	case "cfo":
		m.CFO = v
	case "assets":
		m.Assets = v
	case "equity":
		m.Equity = v
	case "net_debt":
		m.NetDebt = v
	case "cogs":
		m.COGS = v
	case "depreciation":
		m.Depreciation = v
	case "inventory":
		m.Inventory = v
	case "trade_receivables":
		m.TradeReceivables = v
	case "trade_payables":
		m.TradePayables = v
	case "goodwill":
		m.Goodwill = v
	default:
		return false
	}
	return true
}
