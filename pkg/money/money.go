// Package money holds the arithmetic rules for amounts expressed in minor
// currency units (cents). All division goes through SplitEqual so the
// rounding behavior is named and tested rather than incidental.
package money

import "github.com/shopspring/decimal"

// SplitEqual returns the per-head share of totalCents divided across heads,
// rounded half-up to the nearest minor unit. A zero or negative head count
// yields 0: an empty participant set charges nobody.
//
// The rounded share times heads may differ from totalCents by at most
// heads-1 minor units. That drift is accepted, not corrected.
func SplitEqual(totalCents int, heads int) int {
	if heads <= 0 {
		return 0
	}
	share := decimal.NewFromInt(int64(totalCents)).
		DivRound(decimal.NewFromInt(int64(heads)), 0)
	return int(share.IntPart())
}

// FormatCents renders a minor-unit amount as a dollar string, e.g. 1250 -> "$12.50".
func FormatCents(cents int) string {
	return "$" + decimal.NewFromInt(int64(cents)).
		Div(decimal.NewFromInt(100)).
		StringFixed(2)
}
