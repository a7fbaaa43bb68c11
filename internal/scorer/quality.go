package scorer

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/awc-invest/prospect-cli/internal/config"
	"github.com/awc-invest/prospect-cli/internal/model"
)

// FormulaVersion is stamped into every tag set so a stored score can always
// be traced to the formula that produced it.
const FormulaVersion = "QS_v3"

// Engine turns a trailing metric window into a Score using the configured
// weights and bands.
type Engine struct {
	Cfg config.ScoringConfig
}

// Validate rejects configurations that would silently distort scores.
func Validate(cfg config.ScoringConfig) error {
	var errs []string

	wSum := cfg.ROEWeight + cfg.MarginWeight + cfg.RevenueCAGRWeight +
		cfg.EBITDACAGRWeight + cfg.EquityRatioWeight + cfg.ScaleWeight
	if math.Abs(wSum-100) > 0.001 {
		errs = append(errs, fmt.Sprintf("business-quality weights sum to %.2f, want 100", wSum))
	}

	dSum := cfg.DeployScaleWeight + cfg.DeployTicketWeight
	if math.Abs(dSum-100) > 0.001 {
		errs = append(errs, fmt.Sprintf("deployability weights sum to %.2f, want 100", dSum))
	}

	if cfg.BusinessShare < 0 || cfg.BusinessShare > 100 {
		errs = append(errs, fmt.Sprintf("business share %.2f outside [0,100]", cfg.BusinessShare))
	}

	bands := []struct {
		name string
		band config.Band
	}{
		{"roe", cfg.ROEBand},
		{"margin", cfg.MarginBand},
		{"cagr", cfg.CAGRBand},
		{"equity_ratio", cfg.EquityRatioBand},
		{"ebit_scale", cfg.EBITScaleBand},
		{"ticket_fit", cfg.TicketFitBand},
	}
	for _, b := range bands {
		if b.band.Ceiling <= b.band.Floor {
			errs = append(errs, fmt.Sprintf("%s band ceiling %.2f not above floor %.2f", b.name, b.band.Ceiling, b.band.Floor))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Score computes the quality score for one entity from its trailing metric
// window (ascending fiscal years, last entry = target year). The window may
// be empty or hold snapshots with any subset of fields; missing data always
// scores 0, never errors.
func (e *Engine) Score(orgnr string, fiscalYear int, view model.AccountView, window []model.MetricSnapshot) model.Score {
	cfg := e.Cfg

	var latest *model.MetricSnapshot
	for i := range window {
		if window[i].FiscalYear == fiscalYear {
			latest = &window[i]
		}
	}

	var roe, margin, equityRatio, ebit, revenue *float64
	if latest != nil {
		roe = ratio(latest.EBIT, latest.Equity)
		margin = ratio(latest.EBIT, latest.Revenue)
		equityRatio = ratio(latest.Equity, latest.Assets)
		ebit = latest.EBIT
		revenue = latest.Revenue
	}

	revCAGR, ebitdaCAGR := windowCAGR(window)

	components := map[string]float64{
		"roe":          Normalize(roe, cfg.ROEBand),
		"ebit_margin":  Normalize(margin, cfg.MarginBand),
		"revenue_cagr": Normalize(revCAGR, cfg.CAGRBand),
		"ebitda_cagr":  Normalize(ebitdaCAGR, cfg.CAGRBand),
		"equity_ratio": Normalize(equityRatio, cfg.EquityRatioBand),
		"ebit_scale":   Normalize(ebit, cfg.EBITScaleBand),
	}

	base := (components["roe"]*cfg.ROEWeight +
		components["ebit_margin"]*cfg.MarginWeight +
		components["revenue_cagr"]*cfg.RevenueCAGRWeight +
		components["ebitda_cagr"]*cfg.EBITDACAGRWeight +
		components["equity_ratio"]*cfg.EquityRatioWeight +
		components["ebit_scale"]*cfg.ScaleWeight) / 100

	stability := stabilityMultiplier(cfg, window)
	businessQuality := base * stability

	ticketScore := Normalize(revenue, cfg.TicketFitBand)
	deploy := (components["ebit_scale"]*cfg.DeployScaleWeight + ticketScore*cfg.DeployTicketWeight) / 100

	quality := (businessQuality*cfg.BusinessShare + deploy*(100-cfg.BusinessShare)) / 100

	components["ticket_fit"] = ticketScore
	components["stability_multiplier"] = stability
	components["business_quality"] = businessQuality
	components["deployability"] = deploy

	return model.Score{
		Orgnr:          orgnr,
		FiscalYear:     fiscalYear,
		QualityScore:   quality,
		DealLikelihood: model.DefaultDealLikelihood,
		PriorityScore:  model.Priority(quality, model.DefaultDealLikelihood, 0),
		Components:     components,
		Tags:           buildTags(view, ticketScore),
		ComputedAt:     time.Now().UTC(),
	}
}

// windowCAGR derives revenue and EBITDA growth from the earliest and latest
// years in the window that carry the respective metric.
func windowCAGR(window []model.MetricSnapshot) (rev, ebitda *float64) {
	var firstRev, lastRev, firstEBITDA, lastEBITDA *float64
	var firstRevYear, lastRevYear, firstEBITDAYear, lastEBITDAYear int

	for i := range window {
		s := window[i]
		if s.Revenue != nil {
			if firstRev == nil {
				firstRev, firstRevYear = s.Revenue, s.FiscalYear
			}
			lastRev, lastRevYear = s.Revenue, s.FiscalYear
		}
		if s.EBITDA != nil {
			if firstEBITDA == nil {
				firstEBITDA, firstEBITDAYear = s.EBITDA, s.FiscalYear
			}
			lastEBITDA, lastEBITDAYear = s.EBITDA, s.FiscalYear
		}
	}

	rev = CAGR(firstRev, lastRev, lastRevYear-firstRevYear)
	ebitda = CAGR(firstEBITDA, lastEBITDA, lastEBITDAYear-firstEBITDAYear)
	return rev, ebitda
}

// stabilityMultiplier discounts the business-quality base for volatile or
// loss-making histories. Bounded to [0.1, 1.0] so even an ugly history never
// zeroes out an otherwise-computed score, and a short history is capped
// rather than trusted.
func stabilityMultiplier(cfg config.ScoringConfig, window []model.MetricSnapshot) float64 {
	var margins []float64
	negatives := 0

	for i := range window {
		s := window[i]
		if s.EBITDA == nil {
			continue
		}
		if *s.EBITDA < 0 {
			negatives++
		}
		if m := ratio(s.EBITDA, s.Revenue); m != nil {
			margins = append(margins, *m)
		}
	}

	mult := 1.0

	if len(margins) >= 2 && cfg.StabilityVolatilityRef > 0 {
		vol := stddev(margins)
		mult -= 0.5 * math.Min(vol/cfg.StabilityVolatilityRef, 1)
	}

	mult -= float64(negatives) * cfg.StabilityNegativeStep

	if len(margins) < cfg.StabilityMinPeriods && mult > cfg.StabilityShortCap {
		mult = cfg.StabilityShortCap
	}

	return clamp(mult, 0.1, 1.0)
}

func stddev(xs []float64) float64 {
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return math.Sqrt(variance)
}

// buildTags emits the formula-versioned explanation tag set for one score.
func buildTags(view model.AccountView, ticketScore float64) string {
	band := "mid"
	switch {
	case ticketScore <= 0:
		band = "low"
	case ticketScore >= 100:
		band = "high"
	}
	return fmt.Sprintf("%s;view=%s;rev_band=%s", FormulaVersion, view, band)
}
