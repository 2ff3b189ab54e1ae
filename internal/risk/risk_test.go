package risk

import (
	"context"
	"testing"

	"github.com/kallisto-labs/gridbot/internal/gridcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewThresholds_Default(t *testing.T) {
	th := NewThresholds(nil)
	assert.InDelta(t, 0.68, th.Warning, 1e-9)
	assert.InDelta(t, 0.85, th.High, 1e-9)
	assert.InDelta(t, 0.935, th.Critical, 1e-9)
}

func TestCheck_Critical(t *testing.T) {
	m := 0.8
	th := NewThresholds(&m)
	info := gridcore.MarginInfo{AccountValue: 10000, MarginUsed: 9800}
	assert.InDelta(t, 0.98, info.MarginRatio(), 1e-9)
	assert.Equal(t, gridcore.RiskCritical, th.Check(info))
}

func TestCheck_AllBands(t *testing.T) {
	m := 1.0
	th := NewThresholds(&m)
	assert.Equal(t, gridcore.RiskSafe, th.Check(gridcore.MarginInfo{AccountValue: 100, MarginUsed: 50}))
	assert.Equal(t, gridcore.RiskWarning, th.Check(gridcore.MarginInfo{AccountValue: 100, MarginUsed: 80}))
	assert.Equal(t, gridcore.RiskHigh, th.Check(gridcore.MarginInfo{AccountValue: 100, MarginUsed: 100}))
	assert.Equal(t, gridcore.RiskCritical, th.Check(gridcore.MarginInfo{AccountValue: 100, MarginUsed: 110}))
}

func TestMarginRatio_ZeroAccountValue(t *testing.T) {
	info := gridcore.MarginInfo{AccountValue: 0, MarginUsed: 50}
	assert.Equal(t, 0.0, info.MarginRatio())
}

type fakeCtrl struct {
	status     gridcore.BotStatus
	cancelled  int
	saveCalled bool
}

func (f *fakeCtrl) SetStatus(s gridcore.BotStatus) error { f.status = s; return nil }
func (f *fakeCtrl) CancelAllOrders(ctx context.Context) (int, error) {
	f.cancelled = 3
	return 3, nil
}
func (f *fakeCtrl) ForceSave() error { f.saveCalled = true; return nil }

func TestEmergencyShutdown(t *testing.T) {
	ctrl := &fakeCtrl{}
	err := EmergencyShutdown(context.Background(), "BTC", ctrl)
	require.Error(t, err)
	ge, ok := err.(*gridcore.GridError)
	require.True(t, ok)
	assert.Equal(t, gridcore.KindRiskLimitExceeded, ge.Kind)
	assert.Equal(t, gridcore.StatusStopped, ctrl.status)
	assert.Equal(t, 3, ctrl.cancelled)
	assert.True(t, ctrl.saveCalled)
}

func TestHandleStatus_SafeIsNoop(t *testing.T) {
	w := NewWatcher(nil)
	ctrl := &fakeCtrl{}
	err := w.HandleStatus(context.Background(), gridcore.RiskSafe, "BTC", ctrl)
	require.NoError(t, err)
	assert.Equal(t, gridcore.BotStatus(""), ctrl.status)
}
