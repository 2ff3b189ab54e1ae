package zone

import (
	"context"
	"testing"
	"time"

	"github.com/kallisto-labs/gridbot/internal/exchange"
	"github.com/kallisto-labs/gridbot/internal/gridcore"
	"github.com/kallisto-labs/gridbot/internal/precision"
	"github.com/kallisto-labs/gridbot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func s3Config() gridcore.GridConfig {
	cfg := gridcore.NewGridConfig("SOL", 100, 120, 2)
	cfg.FixedBaseSize = 1
	cfg.StateFile = ""
	return cfg
}

func newZoneController(t *testing.T, cfg gridcore.GridConfig, initialPrice float64) (*Controller, *exchange.PaperExchange) {
	t.Helper()
	p := precision.ForSpot(4)
	zones := BuildInitialZones(cfg, p, initialPrice)
	ex := exchange.NewPaperExchange(0, 10000)
	ex.UpdatePrice(context.Background(), cfg.Asset, initialPrice)
	st := store.New(store.GridState{
		Status:          gridcore.StatusRunning,
		Zones:           zones,
		OIDToLevel:      map[string]int{},
		CurrentPosition: InitialPosition(zones),
		LastMidPrice:    initialPrice,
		ConfigSnapshot:  gridcore.SnapshotOf(cfg),
	}, cfg.StateFile, time.Hour)
	return NewController(cfg, p, ex, st), ex
}

func TestBuildInitialZones_S3(t *testing.T) {
	cfg := s3Config()
	p := precision.ForSpot(4)
	zones := BuildInitialZones(cfg, p, 110)
	require.Len(t, zones, 2)

	assert.InDelta(t, 100, zones[0].LowerPrice, 1e-9)
	assert.InDelta(t, 110, zones[0].UpperPrice, 1e-9)
	assert.Equal(t, gridcore.WaitingBuy, zones[0].State)
	assert.Equal(t, 0.0, zones[0].EntryPrice)

	assert.InDelta(t, 110, zones[1].LowerPrice, 1e-9)
	assert.InDelta(t, 120, zones[1].UpperPrice, 1e-9)
	assert.Equal(t, gridcore.WaitingSell, zones[1].State)
	assert.InDelta(t, 110, zones[1].EntryPrice, 1e-9)
}

func TestOnPriceUpdate_S3_PlacesTwoOrders(t *testing.T) {
	ctrl, _ := newZoneController(t, s3Config(), 110)
	require.NoError(t, ctrl.OnPriceUpdate(context.Background()))

	snap := ctrl.store.Read()
	assert.NotEmpty(t, snap.Zones[0].OID)
	assert.NotEmpty(t, snap.Zones[1].OID)
	assert.Len(t, snap.OIDToLevel, 2)
}

func TestOnOrderFilled_S4_RoundTrip(t *testing.T) {
	cfg := s3Config()
	ctrl, _ := newZoneController(t, cfg, 110)
	ctx := context.Background()
	require.NoError(t, ctrl.OnPriceUpdate(ctx))

	snap := ctrl.store.Read()
	sellOID := snap.Zones[1].OID
	require.NotEmpty(t, sellOID)

	require.NoError(t, ctrl.OnOrderFilled(ctx, gridcore.Fill{OID: sellOID, Price: 120, Size: 1, Side: gridcore.Sell}))

	after := ctrl.store.Read()
	assert.InDelta(t, 10.0, after.Profit.RealizedPnL, 1e-9)
	assert.Equal(t, 1, after.Profit.NumRoundTrips)
	assert.Equal(t, gridcore.WaitingBuy, after.Zones[1].State)
	assert.Equal(t, 1, after.Zones[1].RoundTripCount)
	assert.NotEmpty(t, after.Zones[1].OID, "a new buy must be resting at the zone's lower edge")
	assert.Len(t, after.RecentTrades, 1)
	assert.Len(t, after.RoundTrips, 1)
}

func TestOnOrderFilled_BuyNeverCreditsPnL(t *testing.T) {
	cfg := s3Config()
	ctrl, _ := newZoneController(t, cfg, 110)
	ctx := context.Background()
	require.NoError(t, ctrl.OnPriceUpdate(ctx))

	snap := ctrl.store.Read()
	buyOID := snap.Zones[0].OID
	require.NotEmpty(t, buyOID)

	require.NoError(t, ctrl.OnOrderFilled(ctx, gridcore.Fill{OID: buyOID, Price: 100, Size: 1, Side: gridcore.Buy}))

	after := ctrl.store.Read()
	assert.Equal(t, 0.0, after.Profit.RealizedPnL)
	assert.Equal(t, gridcore.WaitingSell, after.Zones[0].State)
	assert.InDelta(t, 100, after.Zones[0].EntryPrice, 1e-9)
}

func TestPerZoneSumEqualsGlobalRealizedPnL(t *testing.T) {
	cfg := s3Config()
	ctrl, _ := newZoneController(t, cfg, 110)
	ctx := context.Background()
	require.NoError(t, ctrl.OnPriceUpdate(ctx))

	snap := ctrl.store.Read()
	require.NoError(t, ctrl.OnOrderFilled(ctx, gridcore.Fill{OID: snap.Zones[1].OID, Price: 120, Size: 1, Side: gridcore.Sell}))

	after := ctrl.store.Read()
	sum := 0.0
	for _, z := range after.Zones {
		sum += z.TotalPnL
	}
	assert.InDelta(t, after.Profit.RealizedPnL, sum, 1e-9)
}
