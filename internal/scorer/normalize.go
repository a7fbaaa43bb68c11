// Package scorer computes quality and priority scores from metric snapshots.
package scorer

import "github.com/awc-invest/prospect-cli/internal/config"

// Normalize maps a value onto [0,100] against a floor/ceiling band:
// at or below the floor scores 0, at or above the ceiling scores 100,
// linear in between. A nil value scores 0; missing data never helps.
func Normalize(value *float64, band config.Band) float64 {
	if value == nil {
		return 0
	}
	v := *value
	if v <= band.Floor {
		return 0
	}
	if v >= band.Ceiling {
		return 100
	}
	return (v - band.Floor) / (band.Ceiling - band.Floor) * 100
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ratio returns a/b when both are present and b is positive, else nil.
func ratio(a, b *float64) *float64 {
	if a == nil || b == nil || *b <= 0 {
		return nil
	}
	r := *a / *b
	return &r
}
