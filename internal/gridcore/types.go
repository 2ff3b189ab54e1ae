// Package gridcore holds the types shared by both grid variants: order
// sides, level/zone records, fills, and the running profit tally.
package gridcore

// OrderSide is the direction of a resting order or a fill.
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// BotStatus is the lifecycle state of a grid instance.
type BotStatus string

const (
	StatusWaitingForEntry BotStatus = "waiting_for_entry"
	StatusAcquiringFunds  BotStatus = "acquiring_funds"
	StatusInitializing    BotStatus = "initializing"
	StatusRunning         BotStatus = "running"
	StatusPaused          BotStatus = "paused"
	StatusStopping        BotStatus = "stopping"
	StatusStopped         BotStatus = "stopped"
)

// IsActive reports whether fills and price ticks should be processed.
func (s BotStatus) IsActive() bool {
	return s == StatusRunning || s == StatusInitializing || s == StatusAcquiringFunds
}

// LevelStatus is the lifecycle of a single level in the level variant.
type LevelStatus string

const (
	LevelEmpty     LevelStatus = "empty"
	LevelPending   LevelStatus = "pending"
	LevelActive    LevelStatus = "active"
	LevelFilled    LevelStatus = "filled"
	LevelCancelled LevelStatus = "cancelled"
)

// ZoneState is which edge of a zone currently holds a resting order.
type ZoneState string

const (
	WaitingBuy  ZoneState = "waiting_buy"
	WaitingSell ZoneState = "waiting_sell"
)

// RiskStatus classifies the current margin ratio for a perp grid.
type RiskStatus string

const (
	RiskSafe     RiskStatus = "safe"
	RiskWarning  RiskStatus = "warning"
	RiskHigh     RiskStatus = "high_risk"
	RiskCritical RiskStatus = "critical"
)

// Level is one rung of the level-variant ladder.
type Level struct {
	Index         int         `json:"index"`
	Price         float64     `json:"price"`
	IntendedSide  OrderSide   `json:"intended_side"`
	OID           string      `json:"oid,omitempty"`
	Status        LevelStatus `json:"status"`
	LastFillPrice *float64    `json:"last_fill_price,omitempty"`
}

// HasActiveOrder reports whether the level currently owns a resting order.
func (l *Level) HasActiveOrder() bool {
	return l.OID != ""
}

// Reset returns the level to Empty, clearing its order binding.
func (l *Level) Reset() {
	l.OID = ""
	l.Status = LevelEmpty
}

// MarkPending records a newly submitted, not-yet-acknowledged order.
func (l *Level) MarkPending(oid string) {
	l.OID = oid
	l.Status = LevelPending
}

// MarkActive records venue acknowledgment of a resting order.
func (l *Level) MarkActive(oid string) {
	l.OID = oid
	l.Status = LevelActive
}

// MarkFilled records a fill price and clears the order binding.
func (l *Level) MarkFilled(price float64) {
	p := price
	l.LastFillPrice = &p
	l.OID = ""
	l.Status = LevelEmpty
}

// Zone is one span of the zone-variant ladder, between two adjacent lines.
type Zone struct {
	Index          int       `json:"index"`
	LowerPrice     float64   `json:"lower_price"`
	UpperPrice     float64   `json:"upper_price"`
	Size           float64   `json:"size"`
	State          ZoneState `json:"state"`
	EntryPrice     float64   `json:"entry_price"`
	TotalPnL       float64   `json:"total_pnl"`
	RoundTripCount int       `json:"round_trip_count"`
	OID            string    `json:"oid,omitempty"`
}

// UnmatchedPnL is the mark-to-market PnL of an open (WaitingSell) position.
func (z *Zone) UnmatchedPnL(lastPrice float64) float64 {
	if z.State != WaitingSell || z.EntryPrice <= 0 {
		return 0
	}
	return (lastPrice - z.EntryPrice) * z.Size
}

// TradeRecord is one fill kept in the bounded recent-trades history.
type TradeRecord struct {
	Price float64   `json:"price"`
	Size  float64   `json:"size"`
	Side  OrderSide `json:"side"`
	Time  int64     `json:"time_ms"`
}

// RoundTrip is one completed buy/sell cycle kept in the bounded history.
type RoundTrip struct {
	ZoneIndex int     `json:"zone_index"`
	BuyPrice  float64 `json:"buy_price"`
	SellPrice float64 `json:"sell_price"`
	Size      float64 `json:"size"`
	PnL       float64 `json:"pnl"`
	Time      int64   `json:"time_ms"`
}

// Fill is a single execution reported by the exchange driver.
type Fill struct {
	OID       string    `json:"oid"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Side      OrderSide `json:"side"`
	Fee       float64   `json:"fee"`
	FeeToken  string    `json:"fee_token"`
	Coin      string    `json:"coin"`
	Timestamp int64     `json:"timestamp"`
	ClosedPnL *float64  `json:"closed_pnl,omitempty"`
}

// OrderRequest is what the controller asks the exchange driver to place.
type OrderRequest struct {
	LevelIndex int       `json:"level_index"`
	Price      float64   `json:"price"`
	Size       float64   `json:"size"`
	Side       OrderSide `json:"side"`
	ReduceOnly bool      `json:"reduce_only"`
}

// InitialMarker is the special level index used for the initial-position
// acquisition order, which is not bound to a ladder level.
const InitialMarker = -1

// OrderResultStatus is the venue's immediate disposition of a placed order.
type OrderResultStatus struct {
	Resting           bool
	FilledAvgPrice    float64
	FilledSize        float64
	Filled            bool
	WaitingForTrigger bool
	Rejected          string
}

// OrderResult pairs a venue order id with its immediate status.
type OrderResult struct {
	OID    string
	Status OrderResultStatus
}

// Position is the current holding for an asset (mainly meaningful for perps).
type Position struct {
	Size             float64  `json:"size"`
	EntryPrice       *float64 `json:"entry_price,omitempty"`
	UnrealizedPnL    float64  `json:"unrealized_pnl"`
	LiquidationPrice *float64 `json:"liquidation_price,omitempty"`
	MarginUsed       float64  `json:"margin_used"`
}

// MarginInfo is the account-wide margin snapshot used by the risk watcher.
type MarginInfo struct {
	AccountValue    float64 `json:"account_value"`
	MarginUsed      float64 `json:"margin_used"`
	AvailableMargin float64 `json:"available_margin"`
	Withdrawable    float64 `json:"withdrawable"`
}

// MarginRatio is margin_used / account_value, or 0 when account_value <= 0.
func (m MarginInfo) MarginRatio() float64 {
	if m.AccountValue <= 0 {
		return 0
	}
	return m.MarginUsed / m.AccountValue
}

// Profit is the running realized-PnL tally for a grid instance.
type Profit struct {
	RealizedPnL   float64 `json:"realized_pnl"`
	TotalFees     float64 `json:"total_fees"`
	NumRoundTrips int     `json:"num_round_trips"`
	TotalVolume   float64 `json:"total_volume"`
}

// AddTrade folds one fill's economics into the running tally.
func (p *Profit) AddTrade(pnl, fee, volume float64) {
	p.RealizedPnL += pnl
	p.TotalFees += fee
	p.TotalVolume += volume
}

// CompleteRoundTrip increments the round-trip counter.
func (p *Profit) CompleteRoundTrip() {
	p.NumRoundTrips++
}

// NetProfit is realized PnL minus fees paid.
func (p *Profit) NetProfit() float64 {
	return p.RealizedPnL - p.TotalFees
}
