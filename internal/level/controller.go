// Package level implements the level-variant grid controller: on a fill at
// level i, place a counter-order at the adjacent level i±1.
package level

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

// Controller owns the level ladder's state machine. Exactly one writer (a
// supervisor goroutine driving price ticks and fills) should call into it.
type Controller struct {
	cfg       gridcore.GridConfig
	precision precision.Precision
	exchange  exchange.Exchange
	store     *store.Store
}

// NewController wires a level-variant controller over an already
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

// CheckTrigger reports whether a WaitingForEntry bot should transition into
// Initializing at this price: immediately if no trigger was configured,
// otherwise once price has fallen to or below the configured trigger.
func (c *Controller) CheckTrigger(price float64) bool {
	if c.cfg.TriggerPrice == nil {
		return true
	}
	return price <= *c.cfg.TriggerPrice
}

// HandlePrice routes one price tick through the lifecycle: a
// WaitingForEntry bot checks its trigger and, once met, initializes and
// starts the ladder; a Running bot just warns (without stopping) if price
// has left the configured band.
func (c *Controller) HandlePrice(ctx context.Context, price float64) error {
	switch c.LifecycleStatus() {
	case gridcore.StatusWaitingForEntry:
		if !c.CheckTrigger(price) {
			return nil
		}
		if err := c.Initialize(ctx, price); err != nil {
			return err
		}
		return c.Start(ctx, price)
	case gridcore.StatusRunning:
		if !c.IsPriceInRange(price) {
			log.Printf("level: price %g left the configured band for %s", price, c.cfg.Asset)
		}
		return c.store.Update(func(s *store.GridState) { s.LastMidPrice = price })
	default:
		return nil
	}
}

// SetStatus transitions the bot to a new lifecycle status.
func (c *Controller) SetStatus(status gridcore.BotStatus) error {
	return c.store.Update(func(s *store.GridState) { s.Status = status })
}

// ForceSave flushes the current state to disk unconditionally.
func (c *Controller) ForceSave() error {
	return c.store.ForceSave()
}

// BuildInitialLevels constructs the ladder from the config's band, to be
// used when no persisted state is found.
func BuildInitialLevels(cfg gridcore.GridConfig, p precision.Precision) []gridcore.Level {
	prices := geometry.Levels(cfg.LowerPrice, cfg.UpperPrice, cfg.NumGrids, cfg.Spacing, p)
	levels := make([]gridcore.Level, len(prices))
	for i, price := range prices {
		levels[i] = gridcore.Level{Index: i, Price: price, Status: gridcore.LevelEmpty}
	}
	return levels
}

// IsPriceInRange reports whether price lies within the configured band.
func (c *Controller) IsPriceInRange(price float64) bool {
	return price >= c.cfg.LowerPrice && price <= c.cfg.UpperPrice
}

// Initialize assigns each level's intended side from the current price:
// Buy below it, Sell at or above it. Requires the price to lie in the band.
func (c *Controller) Initialize(ctx context.Context, currentPrice float64) error {
	if !c.IsPriceInRange(currentPrice) {
		return gridcore.ErrPriceOutOfRange(currentPrice, c.cfg.LowerPrice, c.cfg.UpperPrice)
	}
	return c.store.Update(func(s *store.GridState) {
		for i := range s.Levels {
			assignSide(&s.Levels[i], currentPrice)
		}
	})
}

// UpdateLevelSides re-derives intended_side for every currently Empty level,
// used when the reference price has moved since the last assignment.
func (c *Controller) UpdateLevelSides(currentPrice float64) error {
	return c.store.Update(func(s *store.GridState) {
		for i := range s.Levels {
			if s.Levels[i].Status == gridcore.LevelEmpty {
				assignSide(&s.Levels[i], currentPrice)
			}
		}
	})
}

func assignSide(l *gridcore.Level, currentPrice float64) {
	if l.Price < currentPrice {
		l.IntendedSide = gridcore.Buy
	} else {
		l.IntendedSide = gridcore.Sell
	}
}

// nearestLevelIndex returns the ladder index closest to price, preferring
// the lower index on an exact tie.
func nearestLevelIndex(levels []gridcore.Level, price float64) int {
	best := 0
	bestDiff := -1.0
	for i, l := range levels {
		diff := l.Price - price
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			bestDiff = diff
			best = i
		}
	}
	return best
}

// PlaceOrder submits one level's resting order and records the result.
func (c *Controller) PlaceOrder(ctx context.Context, levelIndex int, side gridcore.OrderSide, price, size float64) error {
	result, err := c.exchange.PlaceOrder(ctx, c.cfg.Asset, gridcore.OrderRequest{
		LevelIndex: levelIndex, Price: price, Size: size, Side: side,
	})
	if err != nil {
		return gridcore.ErrExchange(err)
	}
	metrics.IncOrdersPlaced(string(side))
	err = c.store.Update(func(s *store.GridState) {
		s.RegisterOrder(result.OID, levelIndex)
		s.Levels[levelIndex].IntendedSide = side
		if result.Status.Resting {
			s.Levels[levelIndex].MarkActive(result.OID)
		} else {
			s.Levels[levelIndex].MarkPending(result.OID)
		}
	})
	if err != nil {
		return err
	}
	c.reportActiveOrderGauges()
	return nil
}

// reportActiveOrderGauges refreshes the active-orders-by-side gauges from
// the current snapshot. Called after any mutation that can change the
// resting-order count.
func (c *Controller) reportActiveOrderGauges() {
	s := c.store.Read()
	metrics.SetActiveOrders(string(gridcore.Buy), s.CountActiveBuys())
	metrics.SetActiveOrders(string(gridcore.Sell), s.CountActiveSells())
}

// reportProfitGauges refreshes the realized-PnL, fees, and position gauges
// from the current snapshot. Called after any fill.
func (c *Controller) reportProfitGauges() {
	s := c.store.Read()
	metrics.SetRealizedPnL(s.Profit.RealizedPnL)
	metrics.SetTotalFees(s.Profit.TotalFees)
	metrics.SetCurrentPosition(s.CurrentPosition)
}

// PlaceGridOrders places one resting order at every level except skipIndex
// (the gap). Individual placement errors are logged and skipped so one bad
// level does not prevent the rest of the ladder from going live.
func (c *Controller) PlaceGridOrders(ctx context.Context, skipIndex int) error {
	snapshot := c.store.Read()
	placed := 0
	for _, l := range snapshot.Levels {
		if l.Index == skipIndex || l.HasActiveOrder() {
			continue
		}
		size := c.sizeForLevel(l.Price)
		if err := c.PlaceOrder(ctx, l.Index, l.IntendedSide, l.Price, size); err != nil {
			log.Printf("level: failed to place order at level %d: %v", l.Index, err)
			continue
		}
		placed++
	}
	log.Printf("level: placed %d grid orders", placed)
	return nil
}

func (c *Controller) usdPerGrid() float64 {
	if c.cfg.UsesInvestmentSizing() {
		return geometry.UsdPerGrid(c.cfg.TotalInvestment, c.cfg.NumGrids)
	}
	return 0
}

func (c *Controller) sizeForLevel(price float64) float64 {
	if c.cfg.UsesInvestmentSizing() {
		return geometry.SizeAtPrice(c.usdPerGrid(), price, c.precision)
	}
	return c.precision.RoundSize(c.cfg.FixedBaseSize)
}

// Start: when the config asks for an initial position and some base is
// needed for the levels above the gap, Start only places that initial buy,
// records it, and moves the bot to Initializing; the grid orders are placed
// when that buy fills. Otherwise Start places the resting grid orders
// directly and moves the bot to Running.
func (c *Controller) Start(ctx context.Context, currentPrice float64) error {
	snapshot := c.store.Read()
	gap := nearestLevelIndex(snapshot.Levels, currentPrice)

	baseNeeded := 0.0
	for _, l := range snapshot.Levels {
		if l.Index != gap && l.Price > currentPrice {
			baseNeeded += c.sizeForLevel(l.Price)
		}
	}

	if c.cfg.InitialPosition != gridcore.InitialSkip && baseNeeded > 0 {
		slippage := 1.001
		if c.cfg.InitialPosition == gridcore.InitialMarketBuy {
			slippage = 1.01
		}
		initPrice := c.precision.RoundPrice(currentPrice*slippage, true)
		result, err := c.exchange.PlaceOrder(ctx, c.cfg.Asset, gridcore.OrderRequest{
			LevelIndex: gridcore.InitialMarker, Price: initPrice, Size: baseNeeded, Side: gridcore.Buy,
		})
		if err != nil {
			return gridcore.ErrExchange(err)
		}
		if err := c.store.Update(func(s *store.GridState) {
			s.InitBuyOID = result.OID
			s.Status = gridcore.StatusInitializing
		}); err != nil {
			return err
		}
		return nil
	}

	if err := c.PlaceGridOrders(ctx, gap); err != nil {
		return err
	}
	return c.SetStatus(gridcore.StatusRunning)
}

// CancelAllOrders cancels every resting order and resets every level to
// Empty, clearing the oid→level map.
func (c *Controller) CancelAllOrders(ctx context.Context) (int, error) {
	count, err := c.exchange.CancelAllOrders(ctx, c.cfg.Asset)
	if err != nil {
		return 0, gridcore.ErrExchange(err)
	}
	err = c.store.Update(func(s *store.GridState) {
		for i := range s.Levels {
			s.Levels[i].Reset()
		}
		s.OIDToLevel = map[string]int{}
	})
	c.reportActiveOrderGauges()
	return count, err
}

// CancelOrder cancels a single level's resting order.
func (c *Controller) CancelOrder(ctx context.Context, levelIndex int) error {
	snapshot := c.store.Read()
	if levelIndex < 0 || levelIndex >= len(snapshot.Levels) {
		return gridcore.ErrLevelNotFound(levelIndex)
	}
	oid := snapshot.Levels[levelIndex].OID
	if oid == "" {
		return nil
	}
	if _, err := c.exchange.CancelOrder(ctx, c.cfg.Asset, oid); err != nil {
		return gridcore.ErrExchange(err)
	}
	err := c.store.Update(func(s *store.GridState) {
		s.Levels[levelIndex].Reset()
		s.UnregisterOrder(oid)
	})
	c.reportActiveOrderGauges()
	return err
}

// HandleFill is the central level-variant fill algorithm. In order: resolve
// the fill to a level,
// flip its side and clear it, update position and fees, and — if the
// adjacent level is currently Empty — place a counter-order there. State is
// force-saved unconditionally afterward so a crash right after a fill is
// never ambiguous.
func (c *Controller) HandleFill(ctx context.Context, fill gridcore.Fill) error {
	if handled, err := c.handleInitialFill(ctx, fill); handled || err != nil {
		return err
	}

	type replacement struct {
		index int
		side  gridcore.OrderSide
		price float64
	}
	var repl *replacement

	found := true
	err := c.store.Update(func(s *store.GridState) {
		idx, ok := s.FindLevelByOID(fill.OID)
		if !ok {
			found = false
			return
		}
		lvl := &s.Levels[idx]
		lvl.MarkFilled(fill.Price)
		lvl.IntendedSide = fill.Side.Opposite()
		s.UnregisterOrder(fill.OID)
		s.Profit.TotalFees += fill.Fee
		s.Profit.TotalVolume += fill.Size * fill.Price
		if fill.Side == gridcore.Buy {
			s.CurrentPosition += fill.Size
		} else {
			s.CurrentPosition -= fill.Size
		}
		s.LastMidPrice = fill.Price

		adjIdx := idx + 1
		if fill.Side == gridcore.Sell {
			adjIdx = idx - 1
		}
		if adjIdx < 0 || adjIdx >= len(s.Levels) {
			return
		}
		adj := &s.Levels[adjIdx]
		if adj.HasActiveOrder() {
			return
		}
		repl = &replacement{index: adjIdx, side: fill.Side.Opposite(), price: adj.Price}
	})
	if err != nil {
		return err
	}
	if !found {
		log.Printf("level: fill for unknown oid %s ignored", fill.OID)
		return nil
	}

	metrics.IncFills(string(fill.Side))
	c.reportActiveOrderGauges()
	c.reportProfitGauges()

	if repl != nil {
		size := c.sizeForLevel(repl.price)
		if err := c.PlaceOrder(ctx, repl.index, repl.side, repl.price, size); err != nil {
			log.Printf("level: failed to place replacement order at level %d: %v", repl.index, err)
		}
	}

	return c.ForceSave()
}

// handleInitialFill intercepts the fill that completes initial-position
// acquisition: it clears init_buy_oid, marks acquisition done, and — if the
// bot was still Initializing — places the rest of the ladder and moves to
// Running.
func (c *Controller) handleInitialFill(ctx context.Context, fill gridcore.Fill) (bool, error) {
	snapshot := c.store.Read()
	if snapshot.InitBuyOID == "" || snapshot.InitBuyOID != fill.OID {
		return false, nil
	}

	if err := c.store.Update(func(s *store.GridState) {
		s.InitBuyOID = ""
		s.InitPositionAcquired = true
		s.CurrentPosition += fill.Size
		s.Profit.TotalFees += fill.Fee
		s.LastMidPrice = fill.Price
	}); err != nil {
		return true, err
	}

	if snapshot.Status == gridcore.StatusInitializing {
		gap := nearestLevelIndex(snapshot.Levels, fill.Price)
		if err := c.PlaceGridOrders(ctx, gap); err != nil {
			return true, err
		}
		if err := c.SetStatus(gridcore.StatusRunning); err != nil {
			return true, err
		}
	}
	return true, c.ForceSave()
}

// StateSummary is the dashboard-facing read view of the ladder.
type StateSummary struct {
	Status          gridcore.BotStatus `json:"status"`
	NumLevels       int                `json:"num_levels"`
	ActiveBuys      int                `json:"active_buys"`
	ActiveSells     int                `json:"active_sells"`
	CurrentPosition float64            `json:"current_position"`
	LastMidPrice    float64            `json:"last_mid_price"`
	RealizedPnL     float64            `json:"realized_pnl"`
	TotalFees       float64            `json:"total_fees"`
	RoundTrips      int                `json:"round_trips"`
}

// StateSummary builds the dashboard read view from a cloned snapshot.
func (c *Controller) StateSummary() StateSummary {
	s := c.store.Read()
	return StateSummary{
		Status:          s.Status,
		NumLevels:       len(s.Levels),
		ActiveBuys:      s.CountActiveBuys(),
		ActiveSells:     s.CountActiveSells(),
		CurrentPosition: s.CurrentPosition,
		LastMidPrice:    s.LastMidPrice,
		RealizedPnL:     s.Profit.RealizedPnL,
		TotalFees:       s.Profit.TotalFees,
		RoundTrips:      s.Profit.NumRoundTrips,
	}
}

// CalculateProfit reports the notional PnL of a hypothetical closed round
// trip. The level variant never credits this automatically (see
// SPEC_FULL.md's "PnL gap" note); it exists for reporting only.
func CalculateProfit(buyPrice, sellPrice, size, fee float64) float64 {
	return (sellPrice-buyPrice)*size - fee
}
