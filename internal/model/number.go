package model

import (
	"strconv"
	"strings"
)

var amountReplacer = strings.NewReplacer(
	"\u00a0", "", // NBSP thousand separator
	"\u202f", "", // narrow NBSP
	" ", "",
)

// ParseAmount parses a numeric string as the Norwegian sources format it:
// NBSP or space thousand separators and a decimal comma. Plain machine
// formats pass through unchanged.
func ParseAmount(s string) (float64, error) {
	s = amountReplacer.Replace(strings.TrimSpace(s))
	// A comma is a decimal separator only when no dot competes with it.
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return strconv.ParseFloat(s, 64)
}
