package gridcore

import "fmt"

// Kind identifies which error condition a *GridError reports, mirroring the
// variant set the core's error table enumerates.
type Kind string

const (
	KindInvalidConfig        Kind = "invalid_config"
	KindLevelNotFound        Kind = "level_not_found"
	KindOrderNotFound        Kind = "order_not_found"
	KindPriceOutOfRange      Kind = "price_out_of_range"
	KindExchange             Kind = "exchange"
	KindStatePersistence     Kind = "state_persistence"
	KindRiskLimitExceeded    Kind = "risk_limit_exceeded"
	KindInsufficientBalance  Kind = "insufficient_balance"
	KindOrderPlacementFailed Kind = "order_placement_failed"
	KindInvalidState         Kind = "invalid_state"
	KindAssetNotFound        Kind = "asset_not_found"
)

// GridError is the single error type the core surfaces; callers switch on
// Kind the way they would match a Rust enum variant.
type GridError struct {
	Kind Kind
	msg  string
	err  error
}

func (e *GridError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *GridError) Unwrap() error {
	return e.err
}

func newErr(kind Kind, msg string) *GridError {
	return &GridError{Kind: kind, msg: msg}
}

// ErrInvalidConfig reports a configuration that failed validation.
func ErrInvalidConfig(msg string) *GridError {
	return newErr(KindInvalidConfig, msg)
}

// ErrLevelNotFound reports a lookup against a ladder index with no entry.
func ErrLevelNotFound(index int) *GridError {
	return newErr(KindLevelNotFound, fmt.Sprintf("index %d", index))
}

// ErrOrderNotFound reports a lookup against an order id with no owner.
func ErrOrderNotFound(oid string) *GridError {
	return newErr(KindOrderNotFound, fmt.Sprintf("oid %s", oid))
}

// ErrPriceOutOfRange reports a start/initialize price outside [lower, upper].
func ErrPriceOutOfRange(price, lower, upper float64) *GridError {
	return newErr(KindPriceOutOfRange, fmt.Sprintf("%g not in [%g, %g]", price, lower, upper))
}

// ErrExchange wraps a rejection or transport error from the exchange driver.
func ErrExchange(cause error) *GridError {
	return &GridError{Kind: KindExchange, msg: "exchange error", err: cause}
}

// ErrStatePersistence wraps a disk write/read failure.
func ErrStatePersistence(cause error) *GridError {
	return &GridError{Kind: KindStatePersistence, msg: "state persistence error", err: cause}
}

// ErrRiskLimitExceeded reports a critical margin-ratio breach.
func ErrRiskLimitExceeded(msg string) *GridError {
	return newErr(KindRiskLimitExceeded, msg)
}

// ErrInsufficientBalance reports the venue refusing an order for balance reasons.
func ErrInsufficientBalance(required, available float64) *GridError {
	return newErr(KindInsufficientBalance, fmt.Sprintf("required %g, available %g", required, available))
}

// ErrOrderPlacementFailed reports retries exhausted while placing an order.
func ErrOrderPlacementFailed(attempts int, reason string) *GridError {
	return newErr(KindOrderPlacementFailed, fmt.Sprintf("after %d attempts: %s", attempts, reason))
}

// ErrInvalidState reports an operation attempted in an incompatible status.
func ErrInvalidState(current BotStatus) *GridError {
	return newErr(KindInvalidState, fmt.Sprintf("current state %s", current))
}

// ErrAssetNotFound reports a missing asset-precision lookup.
func ErrAssetNotFound(asset string) *GridError {
	return newErr(KindAssetNotFound, asset)
}
