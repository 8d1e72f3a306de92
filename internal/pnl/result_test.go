package pnl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var (
	openAt  = time.Date(2018, 1, 2, 9, 30, 0, 0, time.UTC)
	closeAt = time.Date(2018, 1, 2, 14, 0, 0, 0, time.UTC)
)

func TestNewResult_LongRoundTrip(t *testing.T) {
	costs := CostParams{CommissionRate: 0.0001, Slippage: 1, Size: 10}
	r := NewResult(4000, openAt, 4100, closeAt, 2, 7, costs)

	// (4000+4100) * 10 * 2
	assert.InDelta(t, 162000.0, r.Turnover, 1e-9)
	assert.InDelta(t, 16.2, r.Commission, 1e-9)
	// 1 point * both legs * size * volume
	assert.InDelta(t, 40.0, r.Slippage, 1e-9)
	// (4100-4000)*2*10 - 16.2 - 40
	assert.InDelta(t, 1943.8, r.Pnl, 1e-9)
	assert.Equal(t, int64(7), r.GroupID)
}

func TestNewResult_ShortRoundTripUsesSignedVolume(t *testing.T) {
	costs := CostParams{CommissionRate: 0.0001, Slippage: 0, Size: 10}
	// Short opened at 4100, price falls to 4000: profitable.
	r := NewResult(4100, openAt, 4000, closeAt, -2, 1, costs)

	assert.InDelta(t, 162000.0, r.Turnover, 1e-9)
	// (4000-4100)*(-2)*10 - commission
	assert.InDelta(t, 2000.0-16.2, r.Pnl, 1e-9)
}

func TestNewResult_FixedCommissionOverridesRate(t *testing.T) {
	costs := CostParams{CommissionRate: 0.0001, FixedCommission: 5, Size: 10}
	r := NewResult(4000, openAt, 4100, closeAt, 3, 1, costs)

	assert.InDelta(t, 15.0, r.Commission, 1e-9)
}

func TestNewResult_LosingTrade(t *testing.T) {
	costs := CostParams{Size: 10}
	r := NewResult(4000, openAt, 3900, closeAt, 1, 1, costs)
	assert.InDelta(t, -1000.0, r.Pnl, 1e-9)
}
