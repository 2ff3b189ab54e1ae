package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSetRiskStatus_OnlyActiveSeriesIsOne(t *testing.T) {
	SetRiskStatus("high_risk")
	assert.Equal(t, float64(1), testutil.ToFloat64(mtxRiskStatus.WithLabelValues("high_risk")))
	assert.Equal(t, float64(0), testutil.ToFloat64(mtxRiskStatus.WithLabelValues("safe")))
	assert.Equal(t, float64(0), testutil.ToFloat64(mtxRiskStatus.WithLabelValues("critical")))
}

func TestIncOrdersPlaced_IncrementsLabeledCounter(t *testing.T) {
	before := testutil.ToFloat64(mtxOrdersPlaced.WithLabelValues("buy"))
	IncOrdersPlaced("buy")
	assert.Equal(t, before+1, testutil.ToFloat64(mtxOrdersPlaced.WithLabelValues("buy")))
}

func TestSetRealizedPnL_SetsGauge(t *testing.T) {
	SetRealizedPnL(42.5)
	assert.Equal(t, 42.5, testutil.ToFloat64(mtxRealizedPnL))
}
