package odds

import (
	"github.com/shopspring/decimal"
)

// Chance returns the percentage in [0, 100] of entries out of totalEntries.
// A zero total yields 0. The result is not rounded, use Percent for display.
func Chance(entries, totalEntries int64) float64 {
	if totalEntries == 0 {
		return 0
	}

	return float64(entries) / float64(totalEntries) * 100
}

// Percent renders a chance rounded to the given number of decimal places,
// without trailing zeros: 33.3333 -> "33.33", 50 -> "50".
func Percent(chance float64, places int32) string {
	return decimal.NewFromFloat(chance).Round(places).String()
}
