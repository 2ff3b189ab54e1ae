package gridcore

import (
	"fmt"
	"strings"
	"time"

	"github.com/kallisto-labs/gridbot/internal/geometry"
	"github.com/kallisto-labs/gridbot/internal/precision"
)

// MarketType is which kind of venue instrument the grid trades.
type MarketType string

const (
	MarketSpot MarketType = "spot"
	MarketPerp MarketType = "perp"
)

// InitialPositionMethod controls how the level variant acquires its initial
// base inventory before placing the resting sell-side orders.
type InitialPositionMethod string

const (
	InitialLimitBuy  InitialPositionMethod = "limit_buy"
	InitialMarketBuy InitialPositionMethod = "market_buy"
	InitialSkip      InitialPositionMethod = "skip"
)

// GridConfig is the immutable, validated description of one grid instance.
type GridConfig struct {
	Asset             string
	LowerPrice        float64
	UpperPrice        float64
	NumGrids          int
	TotalInvestment   float64 // mutually exclusive with FixedBaseSize; zero means unused
	FixedBaseSize     float64 // mutually exclusive with TotalInvestment; zero means unused
	TriggerPrice      *float64
	MarketType        MarketType
	Leverage          *int
	MaxMarginRatio    *float64
	InitialPosition   InitialPositionMethod
	Spacing           geometry.Spacing
	StateFile         string
	StateSaveInterval time.Duration
	MaxOrderRetries   int
	RetryBaseDelay    time.Duration
	SizeDecimals      int
}

// NewGridConfig fills in the documented defaults and always sets StateFile
// to an auto-generated name, which callers may overwrite afterwards.
func NewGridConfig(asset string, lower, upper float64, numGrids int) GridConfig {
	cfg := GridConfig{
		Asset:             asset,
		LowerPrice:        lower,
		UpperPrice:        upper,
		NumGrids:          numGrids,
		MarketType:        MarketSpot,
		InitialPosition:   InitialLimitBuy,
		Spacing:           geometry.Arithmetic,
		StateSaveInterval: 30 * time.Second,
		MaxOrderRetries:   5,
		RetryBaseDelay:    100 * time.Millisecond,
	}
	cfg.StateFile = GenerateStateFilename(asset, cfg.MarketType, time.Now())
	return cfg
}

// GenerateStateFilename builds the default persistence path:
// grid_{asset}_{spot|perp}_{YYYYMMDD_HHMMSS}.json, with any '/' in the asset
// symbol replaced by '-' so it is filesystem-safe.
func GenerateStateFilename(asset string, marketType MarketType, now time.Time) string {
	safeAsset := strings.ReplaceAll(asset, "/", "-")
	return fmt.Sprintf("grid_%s_%s_%s.json", safeAsset, marketType, now.UTC().Format("20060102_150405"))
}

// Validate checks every invariant a grid config must satisfy before a
// controller can be constructed from it.
func (c GridConfig) Validate() error {
	if c.Asset == "" {
		return ErrInvalidConfig("asset must not be empty")
	}
	if !(c.LowerPrice < c.UpperPrice) {
		return ErrInvalidConfig("lower_price must be less than upper_price")
	}
	if c.NumGrids < 2 {
		return ErrInvalidConfig("num_grids must be at least 2")
	}
	if c.TotalInvestment <= 0 && c.FixedBaseSize <= 0 {
		return ErrInvalidConfig("exactly one of total_investment or fixed_base_size must be positive")
	}
	if c.TotalInvestment > 0 && c.FixedBaseSize > 0 {
		return ErrInvalidConfig("total_investment and fixed_base_size are mutually exclusive")
	}
	if c.TriggerPrice != nil {
		if *c.TriggerPrice < c.LowerPrice || *c.TriggerPrice > c.UpperPrice {
			return ErrInvalidConfig("trigger_price must lie within [lower_price, upper_price]")
		}
	}
	if c.MarketType == MarketPerp {
		if c.Leverage != nil && (*c.Leverage < 1 || *c.Leverage > 100) {
			return ErrInvalidConfig("leverage must be between 1 and 100")
		}
		if c.MaxMarginRatio != nil && (*c.MaxMarginRatio < 0.0 || *c.MaxMarginRatio > 1.0) {
			return ErrInvalidConfig("max_margin_ratio must be between 0.0 and 1.0")
		}
	}
	return nil
}

// UsesInvestmentSizing reports whether per-level size is derived from a
// constant quote notional rather than a fixed base quantity.
func (c GridConfig) UsesInvestmentSizing() bool {
	return c.TotalInvestment > 0
}

// Precision resolves the venue's rounding rules for this config's market type.
func (c GridConfig) Precision() precision.Precision {
	if c.MarketType == MarketPerp {
		return precision.ForPerp(c.SizeDecimals)
	}
	return precision.ForSpot(c.SizeDecimals)
}

// ConfigSnapshot is the subset of GridConfig persisted alongside grid state,
// used to reject a stale state file loaded against a different config.
type ConfigSnapshot struct {
	Asset      string  `json:"asset"`
	LowerPrice float64 `json:"lower_price"`
	UpperPrice float64 `json:"upper_price"`
	NumGrids   int     `json:"num_grids"`
}

// SnapshotOf captures the fields a reloaded state must still agree on.
func SnapshotOf(c GridConfig) ConfigSnapshot {
	return ConfigSnapshot{
		Asset:      c.Asset,
		LowerPrice: c.LowerPrice,
		UpperPrice: c.UpperPrice,
		NumGrids:   c.NumGrids,
	}
}

const boundsTolerance = 0.0001

// Matches reports whether a persisted snapshot still describes this config,
// within a small float tolerance on the price bounds.
func (s ConfigSnapshot) Matches(c GridConfig) bool {
	if s.Asset != c.Asset {
		return false
	}
	if s.NumGrids != c.NumGrids {
		return false
	}
	if diff := s.LowerPrice - c.LowerPrice; diff > boundsTolerance || diff < -boundsTolerance {
		return false
	}
	if diff := s.UpperPrice - c.UpperPrice; diff > boundsTolerance || diff < -boundsTolerance {
		return false
	}
	return true
}
