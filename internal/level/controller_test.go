package level

import (
	"context"
	"testing"
	"time"

	"github.com/kallisto-labs/gridbot/internal/exchange"
	"github.com/kallisto-labs/gridbot/internal/geometry"
	"github.com/kallisto-labs/gridbot/internal/gridcore"
	"github.com/kallisto-labs/gridbot/internal/precision"
	"github.com/kallisto-labs/gridbot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() gridcore.GridConfig {
	cfg := gridcore.NewGridConfig("BTC", 100, 200, 10)
	cfg.TotalInvestment = 1500
	cfg.InitialPosition = gridcore.InitialSkip
	cfg.StateFile = ""
	return cfg
}

func newTestController(t *testing.T, cfg gridcore.GridConfig) (*Controller, *exchange.PaperExchange) {
	t.Helper()
	p := precision.ForSpot(4)
	ex := exchange.NewPaperExchange(0, 10000)
	ex.UpdatePrice(context.Background(), cfg.Asset, 150)
	levels := BuildInitialLevels(cfg, p)
	st := store.New(store.GridState{
		Status:         gridcore.StatusWaitingForEntry,
		Levels:         levels,
		OIDToLevel:     map[string]int{},
		ConfigSnapshot: gridcore.SnapshotOf(cfg),
	}, cfg.StateFile, time.Hour)
	return NewController(cfg, p, ex, st), ex
}

func TestInitialize_S1_ArithmeticEleven(t *testing.T) {
	cfg := testConfig()
	ctrl, _ := newTestController(t, cfg)

	require.NoError(t, ctrl.Initialize(context.Background(), 150))
	summary := ctrl.StateSummary()
	assert.Equal(t, 11, summary.NumLevels)

	snap := ctrl.store.Read()
	assert.InDelta(t, 100, snap.Levels[0].Price, 1e-9)
	assert.InDelta(t, 200, snap.Levels[10].Price, 1e-9)
	for _, l := range snap.Levels {
		if l.Price < 150 {
			assert.Equal(t, gridcore.Buy, l.IntendedSide)
		} else {
			assert.Equal(t, gridcore.Sell, l.IntendedSide)
		}
	}
}

func TestStart_S1_TenRestingOrdersAroundGap(t *testing.T) {
	cfg := testConfig()
	ctrl, _ := newTestController(t, cfg)
	ctx := context.Background()
	require.NoError(t, ctrl.Initialize(ctx, 150))
	require.NoError(t, ctrl.Start(ctx, 150))

	snap := ctrl.store.Read()
	assert.Equal(t, gridcore.StatusRunning, snap.Status)
	active := 0
	for _, l := range snap.Levels {
		if l.HasActiveOrder() {
			active++
		}
	}
	assert.Equal(t, 10, active)
	assert.Equal(t, 5, snap.CountActiveBuys())
	assert.Equal(t, 5, snap.CountActiveSells())
}

func TestHandleFill_S2_PropagatesToAdjacentLevel(t *testing.T) {
	cfg := testConfig()
	ctrl, ex := newTestController(t, cfg)
	ctx := context.Background()
	require.NoError(t, ctrl.Initialize(ctx, 150))
	require.NoError(t, ctrl.Start(ctx, 150))

	snap := ctrl.store.Read()
	// level at price 140 is index 4; fill its resting buy.
	level4 := snap.Levels[4]
	require.InDelta(t, 140, level4.Price, 1e-9)
	require.True(t, level4.HasActiveOrder())

	fillSize := 1500.0 / 10.0 / 140.0
	err := ctrl.HandleFill(ctx, gridcore.Fill{OID: level4.OID, Price: 140, Size: fillSize, Side: gridcore.Buy, Fee: 0.05})
	require.NoError(t, err)

	after := ctrl.store.Read()
	assert.Equal(t, gridcore.LevelEmpty, after.Levels[4].Status)
	assert.Equal(t, gridcore.Sell, after.Levels[4].IntendedSide)
	assert.InDelta(t, fillSize, after.CurrentPosition, 1e-9)
	assert.InDelta(t, 0.05, after.Profit.TotalFees, 1e-9)
	assert.Equal(t, 0.0, after.Profit.RealizedPnL, "level variant never credits PnL in the fill handler")

	level5 := after.Levels[5]
	assert.True(t, level5.HasActiveOrder())
	assert.InDelta(t, 150, level5.Price, 1e-9)

	_ = ex
}

func TestHandleFill_SkipsReplacementWhenAdjacentAlreadyActive(t *testing.T) {
	cfg := testConfig()
	ctrl, _ := newTestController(t, cfg)
	ctx := context.Background()
	require.NoError(t, ctrl.Initialize(ctx, 150))
	require.NoError(t, ctrl.Start(ctx, 150))

	snap := ctrl.store.Read()
	// level 3 (price 130) fills; its adjacent level 4 (price 140) already
	// has a resting order from Start (only the gap, level 5, was skipped).
	level3 := snap.Levels[3]
	originalLevel4OID := snap.Levels[4].OID
	require.NotEmpty(t, originalLevel4OID)

	fillSize := geometry.SizeAtPrice(geometry.UsdPerGrid(1500, 10), 130, precision.ForSpot(4))
	require.NoError(t, ctrl.HandleFill(ctx, gridcore.Fill{OID: level3.OID, Price: 130, Size: fillSize, Side: gridcore.Buy}))

	after := ctrl.store.Read()
	assert.Equal(t, originalLevel4OID, after.Levels[4].OID, "adjacent level already had a resting order; it must not be replaced")
}

func TestCancelAllOrders_ResetsLadder(t *testing.T) {
	cfg := testConfig()
	ctrl, _ := newTestController(t, cfg)
	ctx := context.Background()
	require.NoError(t, ctrl.Initialize(ctx, 150))
	require.NoError(t, ctrl.Start(ctx, 150))

	count, err := ctrl.CancelAllOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, count)

	snap := ctrl.store.Read()
	for _, l := range snap.Levels {
		assert.Equal(t, gridcore.LevelEmpty, l.Status)
		assert.Empty(t, l.OID)
	}
	assert.Empty(t, snap.OIDToLevel)
}
