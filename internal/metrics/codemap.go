// Package metrics materializes normalized facts into fixed-shape metric
// snapshots using a configurable account-code mapping.
package metrics

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/awc-invest/prospect-cli/internal/model"
)

// CodeMap maps metric fields to ordered candidate account codes, per view.
// The first candidate with a non-nil fact value wins. Keeping the mapping in
// a file means a chart-of-accounts change is a config edit, not a release.
type CodeMap struct {
	Views map[model.AccountView]map[string][]string `yaml:"views"`
}

// LoadCodeMap reads and validates a mapping file.
func LoadCodeMap(path string) (*CodeMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "metrics: read code map %s", path)
	}

	var cm CodeMap
	if err := yaml.Unmarshal(data, &cm); err != nil {
		return nil, eris.Wrapf(err, "metrics: parse code map %s", path)
	}

	if err := cm.Validate(); err != nil {
		return nil, err
	}
	return &cm, nil
}

// Validate rejects mappings that target unknown views or metric fields, so a
// typo in the file fails loudly instead of silently dropping a metric.
func (cm *CodeMap) Validate() error {
	if len(cm.Views) == 0 {
		return eris.New("metrics: code map has no views")
	}

	known := make(map[string]bool, len(model.MetricFields))
	for _, f := range model.MetricFields {
		known[f] = true
	}

	for view, fields := range cm.Views {
		switch view {
		case model.ViewCompany, model.ViewCorporate, model.ViewAnnual:
		default:
			return eris.Errorf("metrics: code map references unknown view %q", view)
		}
		if len(fields) == 0 {
			return eris.Errorf("metrics: code map view %q has no fields", view)
		}
		for field, codes := range fields {
			if !known[field] {
				return eris.Errorf("metrics: code map view %q references unknown metric %q", view, field)
			}
			if len(codes) == 0 {
				return eris.Errorf("metrics: code map metric %q/%q has no candidate codes", view, field)
			}
		}
	}
	return nil
}

// FieldsFor returns the field->candidates mapping for a view, or nil if the
// view is unmapped.
func (cm *CodeMap) FieldsFor(view model.AccountView) map[string][]string {
	return cm.Views[view]
}
