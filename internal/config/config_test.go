package config

import (
	"os"
	"testing"

	"github.com/kallisto-labs/gridbot/internal/gridcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearGridEnv(t *testing.T) {
	for k := range neededKeys {
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_DefaultsToLevelVariantAndSpot(t *testing.T) {
	clearGridEnv(t)
	os.Setenv("GRID_ASSET", "ETH-USD")
	os.Setenv("GRID_LOWER_PRICE", "100")
	os.Setenv("GRID_UPPER_PRICE", "200")
	os.Setenv("GRID_NUM_GRIDS", "10")
	os.Setenv("GRID_TOTAL_INVESTMENT", "1000")
	defer clearGridEnv(t)

	app, err := Load()
	require.NoError(t, err)
	assert.Equal(t, VariantLevel, app.Variant)
	assert.Equal(t, gridcore.MarketSpot, app.Grid.MarketType)
	assert.Equal(t, "ETH-USD", app.Grid.Asset)
	assert.Equal(t, 10, app.Grid.NumGrids)
}

func TestLoad_ZoneVariantAndPerpFields(t *testing.T) {
	clearGridEnv(t)
	os.Setenv("GRID_ASSET", "BTC-PERP")
	os.Setenv("GRID_MARKET_TYPE", "perp")
	os.Setenv("GRID_LOWER_PRICE", "100")
	os.Setenv("GRID_UPPER_PRICE", "200")
	os.Setenv("GRID_NUM_GRIDS", "10")
	os.Setenv("GRID_FIXED_BASE_SIZE", "1")
	os.Setenv("GRID_VARIANT", "zone")
	os.Setenv("GRID_LEVERAGE", "5")
	os.Setenv("GRID_MAX_MARGIN_RATIO", "0.8")
	defer clearGridEnv(t)

	app, err := Load()
	require.NoError(t, err)
	assert.Equal(t, VariantZone, app.Variant)
	assert.Equal(t, gridcore.MarketPerp, app.Grid.MarketType)
	require.NotNil(t, app.Grid.Leverage)
	assert.Equal(t, 5, *app.Grid.Leverage)
	require.NotNil(t, app.Grid.MaxMarginRatio)
	assert.InDelta(t, 0.8, *app.Grid.MaxMarginRatio, 0.0001)
}

func TestLoad_InvalidConfigSurfacesGridError(t *testing.T) {
	clearGridEnv(t)
	os.Setenv("GRID_ASSET", "BTC-USD")
	os.Setenv("GRID_LOWER_PRICE", "200")
	os.Setenv("GRID_UPPER_PRICE", "100")
	os.Setenv("GRID_NUM_GRIDS", "10")
	os.Setenv("GRID_TOTAL_INVESTMENT", "1000")
	defer clearGridEnv(t)

	_, err := Load()
	require.Error(t, err)
	var ge *gridcore.GridError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, gridcore.KindInvalidConfig, ge.Kind)
}
