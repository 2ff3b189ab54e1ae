// Package exchange defines the narrow interface the grid core consumes to
// talk to a venue, plus a paper-trading implementation that stands in for a
// live exchange in tests and dry runs.
package exchange

import (
	"context"

	"github.com/kallisto-labs/gridbot/internal/gridcore"
	"github.com/kallisto-labs/gridbot/internal/precision"
)

// Exchange is every operation the grid core needs from a venue.
// PaperExchange is the implementation in this repository; the core never
// depends on anything more specific than this interface.
type Exchange interface {
	PlaceOrder(ctx context.Context, asset string, order gridcore.OrderRequest) (gridcore.OrderResult, error)
	CancelOrder(ctx context.Context, asset, oid string) (bool, error)
	CancelAllOrders(ctx context.Context, asset string) (int, error)
	MidPrice(ctx context.Context, asset string) (float64, error)
	Position(ctx context.Context, asset string) (*gridcore.Position, error)
	MarginInfo(ctx context.Context) (gridcore.MarginInfo, error)
	UpdateLeverage(ctx context.Context, asset string, leverage int, isCross bool) error
	AssetPrecision(ctx context.Context, asset string, marketType gridcore.MarketType) (precision.Precision, error)
}

// PriceFeed is the unbounded price-tick stream the supervisor subscribes to.
type PriceFeed interface {
	Subscribe(ctx context.Context, asset string) (<-chan float64, error)
	Unsubscribe() error
}

// FillFeed is the unbounded fill-event stream the supervisor subscribes to.
type FillFeed interface {
	Subscribe(ctx context.Context) (<-chan gridcore.Fill, error)
	Unsubscribe() error
}
