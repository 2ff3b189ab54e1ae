// Package metrics exposes the grid engine's Prometheus instrumentation,
// registered once at process start and updated by the controller/supervisor
// as events occur.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxOrdersPlaced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gridbot_orders_placed_total",
		Help: "Orders placed, by side.",
	}, []string{"side"})

	mtxFills = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gridbot_fills_total",
		Help: "Fills processed, by side.",
	}, []string{"side"})

	mtxActiveOrders = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gridbot_active_orders",
		Help: "Currently resting orders, by side.",
	}, []string{"side"})

	mtxRealizedPnL = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gridbot_realized_pnl",
		Help: "Cumulative realized PnL across all round trips.",
	})

	mtxTotalFees = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gridbot_total_fees",
		Help: "Cumulative fees paid.",
	})

	mtxCurrentPosition = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gridbot_current_position",
		Help: "Current base-asset position.",
	})

	mtxMarginRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gridbot_margin_ratio",
		Help: "Current margin_used / account_value for perp instances.",
	})

	mtxRiskStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gridbot_risk_status",
		Help: "1 if the named risk status is the current one, 0 otherwise.",
	}, []string{"status"})

	mtxConsecutiveErrors = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gridbot_consecutive_errors",
		Help: "Current consecutive-error count in the supervisor loop.",
	})

	mtxSaveDuration = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gridbot_state_saves_total",
		Help: "State persistence attempts, by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		mtxOrdersPlaced,
		mtxFills,
		mtxActiveOrders,
		mtxRealizedPnL,
		mtxTotalFees,
		mtxCurrentPosition,
		mtxMarginRatio,
		mtxRiskStatus,
		mtxConsecutiveErrors,
		mtxSaveDuration,
	)
}

// IncOrdersPlaced records one order placement for side.
func IncOrdersPlaced(side string) { mtxOrdersPlaced.WithLabelValues(side).Inc() }

// IncFills records one processed fill for side.
func IncFills(side string) { mtxFills.WithLabelValues(side).Inc() }

// SetActiveOrders sets the current resting-order count for side.
func SetActiveOrders(side string, count int) { mtxActiveOrders.WithLabelValues(side).Set(float64(count)) }

// SetRealizedPnL sets the cumulative realized PnL gauge.
func SetRealizedPnL(v float64) { mtxRealizedPnL.Set(v) }

// SetTotalFees sets the cumulative fees gauge.
func SetTotalFees(v float64) { mtxTotalFees.Set(v) }

// SetCurrentPosition sets the current base-asset position gauge.
func SetCurrentPosition(v float64) { mtxCurrentPosition.Set(v) }

// SetMarginRatio sets the current margin-ratio gauge (perp only).
func SetMarginRatio(v float64) { mtxMarginRatio.Set(v) }

// SetRiskStatus marks status as the active one, zeroing the known others.
func SetRiskStatus(status string) {
	for _, s := range []string{"safe", "warning", "high_risk", "critical"} {
		if s == status {
			mtxRiskStatus.WithLabelValues(s).Set(1)
		} else {
			mtxRiskStatus.WithLabelValues(s).Set(0)
		}
	}
}

// SetConsecutiveErrors sets the supervisor's current error-streak gauge.
func SetConsecutiveErrors(n int) { mtxConsecutiveErrors.Set(float64(n)) }

// IncStateSave records one state-persistence attempt, successful or not.
func IncStateSave(result string) { mtxSaveDuration.WithLabelValues(result).Inc() }
