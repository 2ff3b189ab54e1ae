package exchange

import (
	"context"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/kallisto-labs/gridbot/internal/gridcore"
	"github.com/kallisto-labs/gridbot/internal/precision"
)

// pendingOrder is a resting limit order the simulator has not yet filled.
type pendingOrder struct {
	asset   string
	request gridcore.OrderRequest
}

// shouldFill applies the simulator's fill rule: a Buy fills once mid drops
// to or below its limit, a Sell fills once mid rises to or above its limit.
func (o *pendingOrder) shouldFill(mid float64) bool {
	if o.request.Side == gridcore.Buy {
		return mid <= o.request.Price
	}
	return mid >= o.request.Price
}

// paperPosition tracks inventory and realized PnL for one asset, including
// correct accounting across adds, reductions, closes, and side flips.
type paperPosition struct {
	size       float64
	entryPrice float64
	realized   float64
}

// applyFill folds one fill into the position. isBuy increases size; a sell
// decreases it. Realized PnL is only produced when a fill reduces or closes
// an existing opposite-direction position.
func (p *paperPosition) applyFill(qty, price float64, isBuy bool) {
	signedQty := qty
	if !isBuy {
		signedQty = -qty
	}

	switch {
	case p.size == 0:
		p.size = signedQty
		p.entryPrice = price
	case (p.size > 0) == isBuy:
		// adding to an existing position in the same direction
		totalCost := p.entryPrice*math.Abs(p.size) + price*qty
		p.size += signedQty
		p.entryPrice = totalCost / math.Abs(p.size)
	default:
		// reducing, closing, or flipping
		closingQty := math.Min(qty, math.Abs(p.size))
		if p.size > 0 {
			p.realized += (price - p.entryPrice) * closingQty
		} else {
			p.realized += (p.entryPrice - price) * closingQty
		}
		remaining := qty - closingQty
		p.size += signedQty
		if remaining > 0 {
			// flipped through zero: the remainder opens a new position
			p.entryPrice = price
		} else if p.size == 0 {
			p.entryPrice = 0
		}
	}
}

// PaperExchange simulates venue behavior for dry runs and tests: it fills
// resting orders against a simulator-controlled mid price and tracks
// balances with realistic PnL accounting, charging a configurable fee rate.
type PaperExchange struct {
	mu         sync.Mutex
	mid        map[string]float64
	feeRate    float64
	accountVal float64
	orders     map[string]*pendingOrder
	positions  map[string]*paperPosition
	precisions map[string]precision.Precision
	priceCh    chan float64
	fillCh     chan gridcore.Fill
}

// NewPaperExchange creates a simulator with the given fee rate and a
// synthetic account value used for margin-ratio calculations. No mid price
// is set until the first UpdatePrice call.
func NewPaperExchange(feeRate, accountValue float64) *PaperExchange {
	return &PaperExchange{
		mid:        make(map[string]float64),
		feeRate:    feeRate,
		accountVal: accountValue,
		orders:     make(map[string]*pendingOrder),
		positions:  make(map[string]*paperPosition),
		precisions: make(map[string]precision.Precision),
		priceCh:    make(chan float64, 256),
		fillCh:     make(chan gridcore.Fill, 256),
	}
}

// SetAssetPrecision registers the rounding rule a live venue would otherwise
// report from its metadata endpoint.
func (e *PaperExchange) SetAssetPrecision(asset string, p precision.Precision) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.precisions[asset] = p
}

// UpdatePrice moves the simulated mid for asset and fills any resting order
// the new price crosses, publishing both the tick and any resulting fills.
func (e *PaperExchange) UpdatePrice(ctx context.Context, asset string, price float64) {
	e.mu.Lock()
	e.mid[asset] = price
	var fills []gridcore.Fill
	for oid, order := range e.orders {
		if order.asset != asset || !order.shouldFill(price) {
			continue
		}
		fill := e.executeFillLocked(oid, order, price)
		fills = append(fills, fill)
		delete(e.orders, oid)
	}
	e.mu.Unlock()

	select {
	case e.priceCh <- price:
	default:
	}
	for _, f := range fills {
		select {
		case e.fillCh <- f:
		default:
		}
	}
}

func (e *PaperExchange) executeFillLocked(oid string, order *pendingOrder, price float64) gridcore.Fill {
	fee := price * order.request.Size * e.feeRate
	pos, ok := e.positions[order.asset]
	if !ok {
		pos = &paperPosition{}
		e.positions[order.asset] = pos
	}
	pos.applyFill(order.request.Size, price, order.request.Side == gridcore.Buy)
	e.accountVal -= fee

	return gridcore.Fill{
		OID:   oid,
		Price: price,
		Size:  order.request.Size,
		Side:  order.request.Side,
		Fee:   fee,
	}
}

// PlaceOrder registers a resting limit order, or fills it immediately if
// the current mid already crosses its limit.
func (e *PaperExchange) PlaceOrder(ctx context.Context, asset string, order gridcore.OrderRequest) (gridcore.OrderResult, error) {
	oid := uuid.New().String()
	e.mu.Lock()
	mid := e.mid[asset]
	po := &pendingOrder{asset: asset, request: order}
	if po.shouldFill(mid) {
		fill := e.executeFillLocked(oid, po, mid)
		e.mu.Unlock()
		select {
		case e.fillCh <- fill:
		default:
		}
		return gridcore.OrderResult{OID: oid, Status: gridcore.OrderResultStatus{
			Filled: true, FilledAvgPrice: fill.Price, FilledSize: fill.Size,
		}}, nil
	}
	e.orders[oid] = po
	e.mu.Unlock()
	return gridcore.OrderResult{OID: oid, Status: gridcore.OrderResultStatus{Resting: true}}, nil
}

// CancelOrder removes a single resting order.
func (e *PaperExchange) CancelOrder(ctx context.Context, asset, oid string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.orders[oid]; !ok {
		return false, nil
	}
	delete(e.orders, oid)
	return true, nil
}

// CancelAllOrders removes every resting order for asset.
func (e *PaperExchange) CancelAllOrders(ctx context.Context, asset string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	count := 0
	for oid, order := range e.orders {
		if order.asset == asset {
			delete(e.orders, oid)
			count++
		}
	}
	return count, nil
}

// MidPrice returns the simulator's current price for asset.
func (e *PaperExchange) MidPrice(ctx context.Context, asset string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mid[asset], nil
}

// Position returns the simulated position for asset, or nil if flat.
func (e *PaperExchange) Position(ctx context.Context, asset string) (*gridcore.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pos, ok := e.positions[asset]
	if !ok || pos.size == 0 {
		return nil, nil
	}
	mid := e.mid[asset]
	unrealized := (mid - pos.entryPrice) * pos.size
	entry := pos.entryPrice
	return &gridcore.Position{
		Size:          pos.size,
		EntryPrice:    &entry,
		UnrealizedPnL: unrealized,
	}, nil
}

// MarginInfo reports the simulator's synthetic account-wide margin snapshot.
func (e *PaperExchange) MarginInfo(ctx context.Context) (gridcore.MarginInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	marginUsed := 0.0
	for asset, pos := range e.positions {
		marginUsed += math.Abs(pos.size) * e.mid[asset]
	}
	return gridcore.MarginInfo{
		AccountValue:    e.accountVal,
		MarginUsed:      marginUsed,
		AvailableMargin: e.accountVal - marginUsed,
		Withdrawable:    e.accountVal - marginUsed,
	}, nil
}

// UpdateLeverage is a no-op for the simulator: paper margin math does not
// model leverage tiers.
func (e *PaperExchange) UpdateLeverage(ctx context.Context, asset string, leverage int, isCross bool) error {
	return nil
}

// AssetPrecision returns the rounding rule registered via
// SetAssetPrecision, or the market type's default if none was set.
func (e *PaperExchange) AssetPrecision(ctx context.Context, asset string, marketType gridcore.MarketType) (precision.Precision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.precisions[asset]; ok {
		return p, nil
	}
	if marketType == gridcore.MarketPerp {
		return precision.ForPerp(4), nil
	}
	return precision.ForSpot(4), nil
}

// PriceFeed returns a PriceFeed view of this simulator's tick stream. The
// simulator itself cannot implement both PriceFeed and FillFeed directly
// since their Subscribe signatures collide.
func (e *PaperExchange) PriceFeed() PriceFeed {
	return paperPriceFeed{e}
}

// FillFeed returns a FillFeed view of this simulator's fill stream.
func (e *PaperExchange) FillFeed() FillFeed {
	return paperFillFeed{e}
}

type paperPriceFeed struct{ e *PaperExchange }

func (f paperPriceFeed) Subscribe(ctx context.Context, asset string) (<-chan float64, error) {
	return f.e.priceCh, nil
}

func (f paperPriceFeed) Unsubscribe() error { return nil }

type paperFillFeed struct{ e *PaperExchange }

func (f paperFillFeed) Subscribe(ctx context.Context) (<-chan gridcore.Fill, error) {
	return f.e.fillCh, nil
}

func (f paperFillFeed) Unsubscribe() error { return nil }
