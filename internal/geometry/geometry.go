// Package geometry computes ladder prices and per-level order sizes from a
// price band, a level count, and an investment budget.
package geometry

import (
	"math"

	"github.com/kallisto-labs/gridbot/internal/precision"
)

// Spacing is how successive ladder prices relate to one another.
type Spacing string

const (
	Arithmetic Spacing = "arithmetic"
	Geometric  Spacing = "geometric"
)

// PriceStep returns the uniform dollar step of an arithmetic ladder with
// numGrids intervals between lower and upper.
func PriceStep(lower, upper float64, numGrids int) float64 {
	return (upper - lower) / float64(numGrids)
}

// Levels returns the numGrids+1 ladder prices from lower to upper inclusive,
// each rounded to the venue's precision. This is the level-variant's line
// set and also the edge set a zone ladder is built from.
func Levels(lower, upper float64, numGrids int, spacing Spacing, p precision.Precision) []float64 {
	out := make([]float64, numGrids+1)
	switch spacing {
	case Geometric:
		ratio := math.Pow(upper/lower, 1.0/float64(numGrids))
		for i := 0; i <= numGrids; i++ {
			raw := lower * math.Pow(ratio, float64(i))
			out[i] = p.RoundPrice(raw, false)
		}
	default:
		step := PriceStep(lower, upper, numGrids)
		for i := 0; i <= numGrids; i++ {
			raw := lower + step*float64(i)
			out[i] = p.RoundPrice(raw, false)
		}
	}
	return out
}

// UsdPerGrid is the quote-currency notional each level commits when sizing
// is investment-based.
func UsdPerGrid(totalInvestment float64, numGrids int) float64 {
	return totalInvestment / float64(numGrids)
}

// SizeAtPrice returns the precision-truncated base quantity for a level at
// the given price, holding a constant quote notional (usdPerGrid) across
// every level: lower levels therefore hold more base, upper levels less.
func SizeAtPrice(usdPerGrid, price float64, p precision.Precision) float64 {
	return p.RoundSize(usdPerGrid / price)
}

// NumLevels is the number of ladder lines (level variant): numGrids+1.
func NumLevels(numGrids int) int {
	return numGrids + 1
}

// NumZones is the number of spans between adjacent lines (zone variant).
func NumZones(numGrids int) int {
	return numGrids
}
