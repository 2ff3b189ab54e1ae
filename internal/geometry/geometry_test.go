package geometry

import (
	"testing"

	"github.com/kallisto-labs/gridbot/internal/precision"
	"github.com/stretchr/testify/assert"
)

func TestPriceStep(t *testing.T) {
	assert.InDelta(t, 10.0, PriceStep(100, 200, 10), 1e-9)
}

func TestUsdPerGrid(t *testing.T) {
	assert.InDelta(t, 100.0, UsdPerGrid(1000, 10), 1e-9)
}

func TestNumLevelsAndZones(t *testing.T) {
	assert.Equal(t, 11, NumLevels(10))
	assert.Equal(t, 10, NumZones(10))
	assert.Equal(t, 3, NumLevels(2))
	assert.Equal(t, 2, NumZones(2))
}

func TestLevels_Arithmetic(t *testing.T) {
	p := precision.ForSpot(4)
	lv := Levels(100, 200, 10, Arithmetic, p)
	assert.Len(t, lv, 11)
	assert.InDelta(t, 100.0, lv[0], 1e-9)
	assert.InDelta(t, 110.0, lv[1], 1e-9)
	assert.InDelta(t, 200.0, lv[10], 1e-9)
}

func TestLevels_Geometric(t *testing.T) {
	p := precision.ForSpot(4)
	lv := Levels(100, 200, 2, Geometric, p)
	assert.Len(t, lv, 3)
	assert.InDelta(t, 100.0, lv[0], 1e-9)
	assert.InDelta(t, 200.0, lv[2], 1e-9)
	// middle term of a 2-step geometric ladder is the geometric mean.
	assert.InDelta(t, 141.421, lv[1], 1e-2)
}

func TestSizeAtPrice(t *testing.T) {
	p := precision.ForSpot(4)
	usdPerGrid := UsdPerGrid(1000, 10)
	assert.InDelta(t, 2.0, SizeAtPrice(usdPerGrid, 50, p), 1e-9)
	assert.InDelta(t, 2.5, SizeAtPrice(usdPerGrid, 40, p), 1e-9)
	assert.InDelta(t, 1.0, SizeAtPrice(usdPerGrid, 100, p), 1e-9)
}
