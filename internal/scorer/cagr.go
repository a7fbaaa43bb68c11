package scorer

import "math"

// CAGR returns the compound annual growth rate between two endpoint values
// over the given number of year steps. Both endpoints must be strictly
// positive; a non-positive endpoint makes the exponent meaningless, so the
// result is nil rather than a fabricated number.
func CAGR(start, end *float64, years int) *float64 {
	if start == nil || end == nil || years < 1 {
		return nil
	}
	if *start <= 0 || *end <= 0 {
		return nil
	}
	g := math.Pow(*end / *start, 1/float64(years)) - 1
	return &g
}
