// Package precision rounds prices and sizes to a venue's tick/lot rules.
//
// The rule is the one Hyperliquid-style venues enforce: a price carries at
// most 5 significant figures *and* at most price_decimals fractional
// digits, whichever is tighter. Sizes are truncated (never rounded up) to
// size_decimals.
package precision

import "math"

const (
	maxDecimalsPerp = 6
	maxDecimalsSpot = 8
)

// Precision holds the decimal-place rules for one asset on one market type.
type Precision struct {
	SizeDecimals  int
	PriceDecimals int
	MaxDecimals   int
}

// ForPerp derives Precision for a perpetual-futures asset from its exchange
// reported size-decimals. Perp venues cap total decimals at 6.
func ForPerp(sizeDecimals int) Precision {
	return forMarket(sizeDecimals, maxDecimalsPerp)
}

// ForSpot derives Precision for a spot asset. Spot venues cap total
// decimals at 8.
func ForSpot(sizeDecimals int) Precision {
	return forMarket(sizeDecimals, maxDecimalsSpot)
}

func forMarket(sizeDecimals, maxDecimals int) Precision {
	priceDecimals := maxDecimals - sizeDecimals
	if priceDecimals < 0 {
		priceDecimals = 0
	}
	return Precision{
		SizeDecimals:  sizeDecimals,
		PriceDecimals: priceDecimals,
		MaxDecimals:   maxDecimals,
	}
}

// RoundPrice rounds price to the venue's tick rule. Integral prices pass
// through unchanged. roundUp forces the dropped tail to round up, used when
// a limit price must be at least as high as the target (e.g. a protective
// buy limit above the current mid).
func (p Precision) RoundPrice(price float64, roundUp bool) float64 {
	if price == 0 {
		return 0
	}
	if price == math.Trunc(price) {
		return price
	}

	absPrice := math.Abs(price)
	sign := 1.0
	if price < 0 {
		sign = -1.0
	}

	firstDigitPos := int(math.Floor(math.Log10(absPrice)))

	var decimalsFor5Sig int
	if firstDigitPos >= 0 {
		decimalsFor5Sig = 4 - firstDigitPos
		if decimalsFor5Sig < 0 {
			decimalsFor5Sig = 0
		}
	} else {
		decimalsFor5Sig = -firstDigitPos + 4
	}

	decimals := decimalsFor5Sig
	if p.PriceDecimals < decimals {
		decimals = p.PriceDecimals
	}
	if decimals < 0 {
		decimals = 0
	}

	shouldRoundUp := roundUp
	if !shouldRoundUp {
		multiplier := math.Pow(10, float64(decimals))
		nextDigit := int64(math.Floor(absPrice*multiplier*10)) % 10
		shouldRoundUp = nextDigit >= 5
	}

	return sign * truncateFloat(absPrice, decimals, shouldRoundUp)
}

// RoundSize truncates size to the venue's lot rule. Sizes are never rounded
// up: the engine must never commit more base quantity than it asked for.
func (p Precision) RoundSize(size float64) float64 {
	return truncateFloat(size, p.SizeDecimals, false)
}

// truncateFloat keeps `decimals` fractional digits, optionally rounding the
// kept tail up by one unit in the last place instead of discarding it.
func truncateFloat(value float64, decimals int, roundUp bool) float64 {
	multiplier := math.Pow(10, float64(decimals))
	truncated := math.Trunc(value * multiplier)
	if roundUp {
		truncated++
	}
	return truncated / multiplier
}
