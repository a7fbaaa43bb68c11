package metrics

import (
	"sort"
	"time"

	"github.com/awc-invest/prospect-cli/internal/model"
)

// BuildSnapshots projects one entity's facts for a view into per-year metric
// snapshots. For each metric the first candidate code carrying a non-nil
// value wins; a metric with no usable candidate stays nil. The projection is
// a pure function of its inputs, so re-running it rewrites identical rows.
func BuildSnapshots(orgnr string, view model.AccountView, facts []model.Fact, cm *CodeMap, now time.Time) []model.MetricSnapshot {
	fields := cm.FieldsFor(view)
	if fields == nil {
		return nil
	}

	// code -> value, per fiscal year
	byYear := make(map[int]map[string]*float64)
	for _, f := range facts {
		if f.View != view || f.Orgnr != orgnr {
			continue
		}
		codes, ok := byYear[f.FiscalYear]
		if !ok {
			codes = make(map[string]*float64)
			byYear[f.FiscalYear] = codes
		}
		codes[f.Code] = f.Value
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	snaps := make([]model.MetricSnapshot, 0, len(years))
	for _, year := range years {
		codes := byYear[year]

		snap := model.MetricSnapshot{
			Orgnr:      orgnr,
			FiscalYear: year,
			View:       view,
			UpdatedAt:  now,
		}
		for field, candidates := range fields {
			for _, code := range candidates {
				if v, ok := codes[code]; ok && v != nil {
					snap.Set(field, v)
					break
				}
			}
		}
		snaps = append(snaps, snap)
	}
	return snaps
}
