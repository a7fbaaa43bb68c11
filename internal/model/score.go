package model

import "time"

// DefaultDealLikelihood is the neutral multiplier applied until a real
// deal-likelihood estimate exists, so priority degrades gracefully to the
// quality score.
const DefaultDealLikelihood = 1.0

// Score is the scoring result for one (entity, fiscal year).
type Score struct {
	Orgnr      string `json:"orgnr"`
	FiscalYear int    `json:"fiscal_year"`

	QualityScore       float64 `json:"quality_score"`
	DealLikelihood     float64 `json:"deal_likelihood_score"`
	CompetitionPenalty float64 `json:"competition_penalty"`
	PriorityScore      float64 `json:"priority_score"`

	// Components holds the per-sub-score breakdown for explainability.
	Components map[string]float64 `json:"component_scores,omitempty"`

	// Tags is the semicolon-delimited, formula-versioned explanation of the
	// bands that produced the score. Historical tag sets are joined with " | ".
	Tags string `json:"tags,omitempty"`

	DealNote   string    `json:"deal_note,omitempty"`
	ComputedAt time.Time `json:"computed_at"`
}

// Priority applies the combination rule:
// priority = quality * deal_likelihood - competition_penalty.
func Priority(quality, likelihood, penalty float64) float64 {
	return quality*likelihood - penalty
}
