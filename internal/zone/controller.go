// Package zone implements the zone-variant grid controller: each span
// between two adjacent ladder lines toggles between waiting to buy at its
// lower edge and waiting to sell at its upper edge, realizing PnL on every
// upward crossing.
package zone

import (
	"context"
	"log"

	"github.com/kallisto-labs/gridbot/internal/exchange"
	"github.com/kallisto-labs/gridbot/internal/geometry"
	"github.com/kallisto-labs/gridbot/internal/gridcore"
	"github.com/kallisto-labs/gridbot/internal/metrics"
	"github.com/kallisto-labs/gridbot/internal/precision"
	"github.com/kallisto-labs/gridbot/internal/store"
)

const recentTradesCapacity = 50

// Controller owns the zone ladder's state machine.
type Controller struct {
	cfg       gridcore.GridConfig
	precision precision.Precision
	exchange  exchange.Exchange
	store     *store.Store
}

// NewController wires a zone-variant controller over an already
// loaded-or-created Store.
func NewController(cfg gridcore.GridConfig, p precision.Precision, ex exchange.Exchange, st *store.Store) *Controller {
	return &Controller{cfg: cfg, precision: p, exchange: ex, store: st}
}

// Config returns the grid's immutable configuration.
func (c *Controller) Config() gridcore.GridConfig { return c.cfg }

// LifecycleStatus returns the current bot lifecycle status.
func (c *Controller) LifecycleStatus() gridcore.BotStatus {
	return c.store.Read().Status
}

// SetStatus transitions the bot to a new lifecycle status.
func (c *Controller) SetStatus(status gridcore.BotStatus) error {
	return c.store.Update(func(s *store.GridState) { s.Status = status })
}

// ForceSave flushes the current state to disk unconditionally.
func (c *Controller) ForceSave() error {
	return c.store.ForceSave()
}

// BuildInitialZones constructs the zone ladder and its initial
// WaitingBuy/WaitingSell assignment for an initial reference price.
// Per zone z: if initialPrice < z.upper, the zone starts WaitingSell with
// entry_price = initialPrice (it is credited with one unit of starting
// inventory); otherwise it starts WaitingBuy with entry_price = 0.
func BuildInitialZones(cfg gridcore.GridConfig, p precision.Precision, initialPrice float64) []gridcore.Zone {
	lines := geometry.Levels(cfg.LowerPrice, cfg.UpperPrice, cfg.NumGrids, cfg.Spacing, p)
	zones := make([]gridcore.Zone, 0, len(lines)-1)
	usdPerZone := 0.0
	if cfg.UsesInvestmentSizing() {
		usdPerZone = geometry.UsdPerGrid(cfg.TotalInvestment, cfg.NumGrids)
	}
	for i := 0; i < len(lines)-1; i++ {
		z := gridcore.Zone{
			Index:      i,
			LowerPrice: lines[i],
			UpperPrice: lines[i+1],
		}
		if cfg.UsesInvestmentSizing() {
			z.Size = p.RoundSize(usdPerZone / z.LowerPrice)
		} else {
			z.Size = p.RoundSize(cfg.FixedBaseSize)
		}
		if initialPrice < z.UpperPrice {
			z.State = gridcore.WaitingSell
			z.EntryPrice = initialPrice
		} else {
			z.State = gridcore.WaitingBuy
			z.EntryPrice = 0
		}
		zones = append(zones, z)
	}
	return zones
}

// initialPosition sums the starting inventory credited to every WaitingSell
// zone, mirroring the `self.position += size` bookkeeping performed at
// construction for zones that begin holding a unit of base.
func initialPosition(zones []gridcore.Zone) float64 {
	total := 0.0
	for _, z := range zones {
		if z.State == gridcore.WaitingSell {
			total += z.Size
		}
	}
	return total
}

// InitialPosition exposes the starting inventory for a freshly built zone
// ladder, to be folded into GridState.CurrentPosition at construction.
func InitialPosition(zones []gridcore.Zone) float64 {
	return initialPosition(zones)
}

// HandlePrice routes one price tick: the zone ladder only needs the first
// tick to place its initial two-sided orders, so this simply delegates to
// OnPriceUpdate, which is itself idempotent for zones already resting an
// order.
func (c *Controller) HandlePrice(ctx context.Context, price float64) error {
	if err := c.store.Update(func(s *store.GridState) { s.LastMidPrice = price }); err != nil {
		return err
	}
	return c.OnPriceUpdate(ctx)
}

// OnPriceUpdate places each zone's first resting order on first call. Later
// calls are no-ops for zones that already own a resting order; the zone
// ladder otherwise only reacts to fills.
func (c *Controller) OnPriceUpdate(ctx context.Context) error {
	snapshot := c.store.Read()
	for _, z := range snapshot.Zones {
		if z.OID != "" {
			continue
		}
		if err := c.placeZoneOrder(ctx, z); err != nil {
			log.Printf("zone: failed to place order for zone %d: %v", z.Index, err)
		}
	}
	return nil
}

func (c *Controller) placeZoneOrder(ctx context.Context, z gridcore.Zone) error {
	side := gridcore.Buy
	price := z.LowerPrice
	if z.State == gridcore.WaitingSell {
		side = gridcore.Sell
		price = z.UpperPrice
	}
	result, err := c.exchange.PlaceOrder(ctx, c.cfg.Asset, gridcore.OrderRequest{
		LevelIndex: z.Index, Price: price, Size: z.Size, Side: side,
	})
	if err != nil {
		return gridcore.ErrExchange(err)
	}
	metrics.IncOrdersPlaced(string(side))
	err = c.store.Update(func(s *store.GridState) {
		s.Zones[z.Index].OID = result.OID
		s.RegisterOrder(result.OID, z.Index)
	})
	if err != nil {
		return err
	}
	c.reportActiveOrderGauges()
	return nil
}

// reportActiveOrderGauges refreshes the active-orders-by-side gauges from
// the current snapshot: a zone's resting order side follows its state
// directly (WaitingBuy rests a buy at the lower edge, WaitingSell a sell
// at the upper edge).
func (c *Controller) reportActiveOrderGauges() {
	s := c.store.Read()
	buys, sells := 0, 0
	for _, z := range s.Zones {
		if z.OID == "" {
			continue
		}
		if z.State == gridcore.WaitingBuy {
			buys++
		} else {
			sells++
		}
	}
	metrics.SetActiveOrders(string(gridcore.Buy), buys)
	metrics.SetActiveOrders(string(gridcore.Sell), sells)
}

// reportProfitGauges refreshes the realized-PnL, fees, and position gauges
// from the current snapshot. Called after any fill.
func (c *Controller) reportProfitGauges() {
	s := c.store.Read()
	metrics.SetRealizedPnL(s.Profit.RealizedPnL)
	metrics.SetTotalFees(s.Profit.TotalFees)
	metrics.SetCurrentPosition(s.CurrentPosition)
}

// OnOrderFilled is the central zone-variant fill algorithm. The side that
// just filled is read from the zone's state *before* it toggles: a zone in
// WaitingBuy only ever has a resting buy, so a fill against it is a buy,
// and symmetrically for WaitingSell/sell.
func (c *Controller) OnOrderFilled(ctx context.Context, fill gridcore.Fill) error {
	var nextOrderZone *gridcore.Zone

	err := c.store.Update(func(s *store.GridState) {
		idx, ok := s.FindLevelByOID(fill.OID)
		if !ok {
			return
		}
		z := &s.Zones[idx]
		s.UnregisterOrder(fill.OID)
		z.OID = ""

		sideFilled := gridcore.Buy
		if z.State == gridcore.WaitingSell {
			sideFilled = gridcore.Sell
		}

		s.RecentTrades = pushTrade(s.RecentTrades, gridcore.TradeRecord{
			Price: fill.Price, Size: fill.Size, Side: sideFilled, Time: fill.Timestamp,
		})
		s.Profit.TotalFees += fill.Fee
		s.Profit.TotalVolume += fill.Size * fill.Price

		if sideFilled == gridcore.Buy {
			s.CurrentPosition += fill.Size
			z.EntryPrice = fill.Price
			z.State = gridcore.WaitingSell
		} else {
			s.CurrentPosition -= fill.Size
			if z.EntryPrice > 0 {
				pnl := (fill.Price - z.EntryPrice) * fill.Size
				z.TotalPnL += pnl
				z.RoundTripCount++
				s.Profit.AddTrade(pnl, 0, 0)
				s.Profit.CompleteRoundTrip()
				s.RoundTrips = pushRoundTrip(s.RoundTrips, gridcore.RoundTrip{
					ZoneIndex: z.Index, BuyPrice: z.EntryPrice, SellPrice: fill.Price,
					Size: fill.Size, PnL: pnl, Time: fill.Timestamp,
				})
			}
			z.EntryPrice = fill.Price
			z.State = gridcore.WaitingBuy
		}
		s.LastMidPrice = fill.Price
		zoneCopy := *z
		nextOrderZone = &zoneCopy
	})
	if err != nil {
		return err
	}
	if nextOrderZone == nil {
		log.Printf("zone: fill for unknown oid %s ignored", fill.OID)
		return nil
	}

	metrics.IncFills(string(fill.Side))
	c.reportActiveOrderGauges()
	c.reportProfitGauges()

	if err := c.placeZoneOrder(ctx, *nextOrderZone); err != nil {
		log.Printf("zone: failed to place follow-up order for zone %d: %v", nextOrderZone.Index, err)
	}
	return c.ForceSave()
}

// HandleFill satisfies the supervisor's Controller interface by delegating
// to OnOrderFilled.
func (c *Controller) HandleFill(ctx context.Context, fill gridcore.Fill) error {
	return c.OnOrderFilled(ctx, fill)
}

func pushTrade(trades []gridcore.TradeRecord, t gridcore.TradeRecord) []gridcore.TradeRecord {
	trades = append([]gridcore.TradeRecord{t}, trades...)
	if len(trades) > recentTradesCapacity {
		trades = trades[:recentTradesCapacity]
	}
	return trades
}

func pushRoundTrip(trips []gridcore.RoundTrip, t gridcore.RoundTrip) []gridcore.RoundTrip {
	trips = append([]gridcore.RoundTrip{t}, trips...)
	if len(trips) > recentTradesCapacity {
		trips = trips[:recentTradesCapacity]
	}
	return trips
}

// CancelAllOrders cancels every zone's resting order and clears its binding.
func (c *Controller) CancelAllOrders(ctx context.Context) (int, error) {
	count, err := c.exchange.CancelAllOrders(ctx, c.cfg.Asset)
	if err != nil {
		return 0, gridcore.ErrExchange(err)
	}
	err = c.store.Update(func(s *store.GridState) {
		for i := range s.Zones {
			s.Zones[i].OID = ""
		}
		s.OIDToLevel = map[string]int{}
	})
	c.reportActiveOrderGauges()
	return count, err
}

// Status is the dashboard-facing read view of the zone ladder, including
// unmatched (open) PnL for zones currently holding inventory.
type Status struct {
	BotStatus       gridcore.BotStatus `json:"status"`
	NumZones        int                `json:"num_zones"`
	ActiveGrids     int                `json:"active_grids"`
	CurrentPosition float64            `json:"current_position"`
	RealizedPnL     float64            `json:"realized_pnl"`
	TotalFees       float64            `json:"total_fees"`
	RoundTrips      int                `json:"round_trips"`
	UnmatchedPnL    float64            `json:"unmatched_pnl"`
}

// Status builds the dashboard read view from a cloned snapshot.
func (c *Controller) Status() Status {
	s := c.store.Read()
	active := 0
	unmatched := 0.0
	for _, z := range s.Zones {
		if z.OID != "" {
			active++
		}
		unmatched += z.UnmatchedPnL(s.LastMidPrice)
	}
	return Status{
		BotStatus:       s.Status,
		NumZones:        len(s.Zones),
		ActiveGrids:     active,
		CurrentPosition: s.CurrentPosition,
		RealizedPnL:     s.Profit.RealizedPnL,
		TotalFees:       s.Profit.TotalFees,
		RoundTrips:      s.Profit.NumRoundTrips,
		UnmatchedPnL:    unmatched,
	}
}
