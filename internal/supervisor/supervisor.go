// Package supervisor multiplexes price ticks, fill events, the save timer,
// and (perp only) the risk timer into a single event loop, routing each to
// the grid controller and tracking a consecutive-error count.
package supervisor

import (
	"context"
	"log"
	"time"

	"github.com/kallisto-labs/gridbot/internal/gridcore"
	"github.com/kallisto-labs/gridbot/internal/metrics"
	"github.com/kallisto-labs/gridbot/internal/risk"
)

// RunnerConfig tunes the supervisor's timers and error tolerance.
type RunnerConfig struct {
	RiskCheckInterval    time.Duration
	StateSaveInterval    time.Duration
	MaxConsecutiveErrors int
}

// DefaultRunnerConfig mirrors the documented defaults: 30s risk checks, 30s
// saves, 5 consecutive errors before a terminal shutdown.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		RiskCheckInterval:    30 * time.Second,
		StateSaveInterval:    30 * time.Second,
		MaxConsecutiveErrors: 5,
	}
}

// Controller is what the supervisor needs from either grid variant's
// controller: price/fill handlers, persistence, and lifecycle control.
type Controller interface {
	LifecycleStatus() gridcore.BotStatus
	SetStatus(status gridcore.BotStatus) error
	ForceSave() error
	CancelAllOrders(ctx context.Context) (int, error)
	HandlePrice(ctx context.Context, price float64) error
	HandleFill(ctx context.Context, fill gridcore.Fill) error
}

// MarginSource is how the risk watcher obtains the account's current margin
// snapshot; only wired in for perp instances.
type MarginSource interface {
	MarginInfo(ctx context.Context) (gridcore.MarginInfo, error)
}

// Runner drives one grid instance's event loop.
type Runner struct {
	Asset     string
	Config    RunnerConfig
	Ctrl      Controller
	PriceCh   <-chan float64
	FillCh    <-chan gridcore.Fill
	Watcher   *risk.Watcher // nil for spot instances
	Margin    MarginSource  // nil for spot instances
}

// Run blocks until the bot stops (cooperatively or via a terminal error) or
// ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	log.Printf("supervisor: starting grid bot for %s", r.Asset)

	saveTimer := time.NewTicker(r.Config.StateSaveInterval)
	defer saveTimer.Stop()

	var riskTimerCh <-chan time.Time
	if r.Watcher != nil && r.Margin != nil {
		riskTimer := time.NewTicker(r.Config.RiskCheckInterval)
		defer riskTimer.Stop()
		riskTimerCh = riskTimer.C
	}

	consecutiveErrors := 0

	for {
		var stepErr error

		select {
		case <-ctx.Done():
			return ctx.Err()

		case price, ok := <-r.PriceCh:
			if !ok {
				return nil
			}
			stepErr = r.Ctrl.HandlePrice(ctx, price)

		case fill, ok := <-r.FillCh:
			if !ok {
				return nil
			}
			stepErr = r.Ctrl.HandleFill(ctx, fill)

		case <-saveTimer.C:
			if err := r.Ctrl.ForceSave(); err != nil {
				log.Printf("supervisor: save failed: %v", err)
			}

		case <-riskTimerCh:
			stepErr = r.checkRisk(ctx)
		}

		if stepErr != nil {
			if isFatal(stepErr) {
				return stepErr
			}
			log.Printf("supervisor: handler error: %v", stepErr)
			consecutiveErrors++
		} else {
			consecutiveErrors = 0
		}
		metrics.SetConsecutiveErrors(consecutiveErrors)

		if r.Ctrl.LifecycleStatus() == gridcore.StatusStopped {
			return nil
		}

		if consecutiveErrors >= r.Config.MaxConsecutiveErrors {
			log.Printf("supervisor: too many consecutive errors, shutting down %s", r.Asset)
			if _, err := r.Ctrl.CancelAllOrders(ctx); err != nil {
				log.Printf("supervisor: cancel-all during shutdown failed: %v", err)
			}
			_ = r.Ctrl.SetStatus(gridcore.StatusStopped)
			return gridcore.ErrExchange(stepErr)
		}
	}
}

func (r *Runner) checkRisk(ctx context.Context) error {
	info, err := r.Margin.MarginInfo(ctx)
	if err != nil {
		return gridcore.ErrExchange(err)
	}
	status := r.Watcher.Thresholds.Check(info)
	metrics.SetMarginRatio(info.MarginRatio())
	metrics.SetRiskStatus(string(status))
	return r.Watcher.HandleStatus(ctx, status, r.Asset, shutdownerAdapter{r.Ctrl})
}

type shutdownerAdapter struct{ c Controller }

func (a shutdownerAdapter) SetStatus(s gridcore.BotStatus) error { return a.c.SetStatus(s) }
func (a shutdownerAdapter) CancelAllOrders(ctx context.Context) (int, error) {
	return a.c.CancelAllOrders(ctx)
}
func (a shutdownerAdapter) ForceSave() error { return a.c.ForceSave() }

// isFatal reports whether an error kind must terminate the supervisor
// immediately rather than merely counting against consecutive-errors.
func isFatal(err error) bool {
	ge, ok := err.(*gridcore.GridError)
	if !ok {
		return false
	}
	switch ge.Kind {
	case gridcore.KindRiskLimitExceeded, gridcore.KindInvalidConfig, gridcore.KindPriceOutOfRange:
		return true
	default:
		return false
	}
}
