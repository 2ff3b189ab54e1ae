// Package risk implements the perp-only margin watchdog: three thresholds
// derived from the configured max margin ratio, and the emergency shutdown
// sequence triggered once the account crosses the critical one.
package risk

import (
	"context"
	"log"

	"github.com/kallisto-labs/gridbot/internal/gridcore"
)

// DefaultHighRiskMarginRatio is used when a perp config leaves
// max_margin_ratio unset.
const DefaultHighRiskMarginRatio = 0.85

// Thresholds are the three margin-ratio breakpoints derived from the
// account's configured maximum: warning at 80% of it, high risk at exactly
// it, critical at 110% of it.
type Thresholds struct {
	Warning  float64
	High     float64
	Critical float64
}

// NewThresholds derives Warning/High/Critical from maxMarginRatio. Pass nil
// to fall back to DefaultHighRiskMarginRatio.
func NewThresholds(maxMarginRatio *float64) Thresholds {
	m := DefaultHighRiskMarginRatio
	if maxMarginRatio != nil {
		m = *maxMarginRatio
	}
	return Thresholds{
		Warning:  0.8 * m,
		High:     m,
		Critical: 1.1 * m,
	}
}

// Check classifies the current margin ratio against the thresholds.
func (t Thresholds) Check(info gridcore.MarginInfo) gridcore.RiskStatus {
	ratio := info.MarginRatio()
	switch {
	case ratio >= t.Critical:
		return gridcore.RiskCritical
	case ratio >= t.High:
		return gridcore.RiskHigh
	case ratio >= t.Warning:
		return gridcore.RiskWarning
	default:
		return gridcore.RiskSafe
	}
}

// Shutdowner is the subset of the level/zone controller the risk watcher
// needs to execute an emergency shutdown: stop accepting events, cancel
// every resting order, and persist the final state.
type Shutdowner interface {
	SetStatus(status gridcore.BotStatus) error
	CancelAllOrders(ctx context.Context) (int, error)
	ForceSave() error
}

// Watcher periodically evaluates margin ratio and escalates.
type Watcher struct {
	Thresholds Thresholds
}

// NewWatcher builds a Watcher for the given max margin ratio.
func NewWatcher(maxMarginRatio *float64) *Watcher {
	return &Watcher{Thresholds: NewThresholds(maxMarginRatio)}
}

// HandleStatus logs at Warning/HighRisk and triggers EmergencyShutdown at
// Critical, returning the fatal error the supervisor should propagate.
func (w *Watcher) HandleStatus(ctx context.Context, status gridcore.RiskStatus, asset string, ctrl Shutdowner) error {
	switch status {
	case gridcore.RiskSafe:
		return nil
	case gridcore.RiskWarning:
		log.Printf("risk: %s margin ratio in warning range", asset)
		return nil
	case gridcore.RiskHigh:
		log.Printf("risk: %s margin ratio at high risk", asset)
		return nil
	case gridcore.RiskCritical:
		return EmergencyShutdown(ctx, asset, ctrl)
	default:
		return nil
	}
}

// EmergencyShutdown stops the bot, cancels every resting order, persists
// the final state, and returns a fatal RiskLimitExceeded error.
func EmergencyShutdown(ctx context.Context, asset string, ctrl Shutdowner) error {
	log.Printf("risk: emergency shutdown initiated for %s", asset)
	if err := ctrl.SetStatus(gridcore.StatusStopping); err != nil {
		return err
	}
	cancelled, err := ctrl.CancelAllOrders(ctx)
	if err != nil {
		return err
	}
	log.Printf("risk: emergency shutdown cancelled %d orders for %s", cancelled, asset)
	if err := ctrl.SetStatus(gridcore.StatusStopped); err != nil {
		return err
	}
	if err := ctrl.ForceSave(); err != nil {
		log.Printf("risk: failed to persist state during emergency shutdown: %v", err)
	}
	return gridcore.ErrRiskLimitExceeded("emergency shutdown due to margin limit")
}
