package exchange

import (
	"context"
	"testing"

	"github.com/kallisto-labs/gridbot/internal/gridcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaperExchange_RestingOrderFillsOnCross(t *testing.T) {
	ex := NewPaperExchange(0.001, 10000)
	ctx := context.Background()
	ex.UpdatePrice(ctx, "BTC", 150)

	res, err := ex.PlaceOrder(ctx, "BTC", gridcore.OrderRequest{Price: 140, Size: 1, Side: gridcore.Buy})
	require.NoError(t, err)
	assert.True(t, res.Status.Resting)

	ex.UpdatePrice(ctx, "BTC", 139)
	fill := <-ex.fillCh
	assert.Equal(t, res.OID, fill.OID)
	assert.InDelta(t, 139.0, fill.Price, 1e-9)
	assert.InDelta(t, 1.0, fill.Size, 1e-9)
}

func TestPaperExchange_ImmediateFillOnPlace(t *testing.T) {
	ex := NewPaperExchange(0, 10000)
	ctx := context.Background()
	ex.UpdatePrice(ctx, "BTC", 100)

	res, err := ex.PlaceOrder(ctx, "BTC", gridcore.OrderRequest{Price: 90, Size: 1, Side: gridcore.Sell})
	require.NoError(t, err)
	assert.True(t, res.Status.Filled)
}

func TestPaperExchange_CancelOrder(t *testing.T) {
	ex := NewPaperExchange(0, 10000)
	ctx := context.Background()
	ex.UpdatePrice(ctx, "BTC", 150)

	res, err := ex.PlaceOrder(ctx, "BTC", gridcore.OrderRequest{Price: 140, Size: 1, Side: gridcore.Buy})
	require.NoError(t, err)

	ok, err := ex.CancelOrder(ctx, "BTC", res.OID)
	require.NoError(t, err)
	assert.True(t, ok)

	ex.UpdatePrice(ctx, "BTC", 100)
	select {
	case <-ex.fillCh:
		t.Fatal("cancelled order must not fill")
	default:
	}
}

func TestPaperPosition_FlipAccountsPnLCorrectly(t *testing.T) {
	pos := &paperPosition{}
	pos.applyFill(1, 100, true) // open long 1 @ 100
	assert.Equal(t, 1.0, pos.size)

	pos.applyFill(2, 110, false) // sell 2: closes the long (+10 realized) and opens short 1 @ 110
	assert.InDelta(t, -1.0, pos.size, 1e-9)
	assert.InDelta(t, 10.0, pos.realized, 1e-9)
	assert.InDelta(t, 110.0, pos.entryPrice, 1e-9)
}

func TestPaperExchange_MarginInfo(t *testing.T) {
	ex := NewPaperExchange(0, 10000)
	ctx := context.Background()
	ex.UpdatePrice(ctx, "BTC", 100)
	_, err := ex.PlaceOrder(ctx, "BTC", gridcore.OrderRequest{Price: 90, Size: 1, Side: gridcore.Sell})
	require.NoError(t, err)

	mi, err := ex.MarginInfo(ctx)
	require.NoError(t, err)
	assert.Greater(t, mi.MarginUsed, 0.0)
}
