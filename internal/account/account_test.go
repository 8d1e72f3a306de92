package account

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/cta-backtest/internal/market"
	"github.com/your-org/cta-backtest/internal/pnl"
	"github.com/your-org/cta-backtest/internal/position"
)

var (
	openAt  = time.Date(2018, 1, 2, 9, 30, 0, 0, time.UTC)
	closeAt = time.Date(2018, 1, 2, 14, 0, 0, 0, time.UTC)
)

func newTestAccountant(prices map[string]float64, useMargin bool) *Accountant {
	return New(Params{
		InitCapital:  1_000_000,
		UseMargin:    useMargin,
		PercentLimit: 50,
		Size:         func(string) float64 { return 10 },
		MarginRate:   func(string) float64 { return 0.1 },
		Price: func(symbol string) (float64, bool) {
			p, ok := prices[symbol]
			return p, ok
		},
	})
}

func result(symbol, strategy string, pnlValue, volume float64) pnl.Result {
	return pnl.Result{
		Symbol:     symbol,
		Strategy:   strategy,
		OpenPrice:  4000,
		OpenTime:   openAt,
		ClosePrice: 4000 + pnlValue/(volume*10),
		CloseTime:  closeAt,
		Volume:     volume,
		GroupID:    1,
		Turnover:   80000,
		Commission: 8,
		Pnl:        pnlValue,
	}
}

func openTrade(id int64, symbol, strategy string, direction market.Direction, price, volume float64) *market.Trade {
	return &market.Trade{
		ID: id, Symbol: symbol, Strategy: strategy,
		Direction: direction, Offset: market.OffsetOpen,
		Price: price, Volume: volume, Time: openAt,
	}
}

func TestApplyResult_CapitalAndTallies(t *testing.T) {
	a := newTestAccountant(nil, false)

	a.ApplyResult(result("rb1810", "ma", 1000, 1))
	a.ApplyResult(result("rb1810", "ma", -400, 1))

	assert.InDelta(t, 1_000_600, a.CurCapital, 1e-9)
	assert.Equal(t, 1, a.WinningCount)
	assert.Equal(t, 1, a.LosingCount)
	assert.InDelta(t, 1000, a.TotalWinning, 1e-9)
	assert.InDelta(t, -400, a.TotalLosing, 1e-9)
	assert.Equal(t, 2, a.TotalTradeCount)
	assert.InDelta(t, 600, a.StrategyPnl("ma"), 1e-9)

	require.Len(t, a.TradeRecords(), 2)
	assert.Equal(t, market.DirectionLong, a.TradeRecords()[0].Direction)
}

func TestApplyResult_ShortCloseRecordsShortDirection(t *testing.T) {
	a := newTestAccountant(nil, false)
	a.ApplyResult(result("rb1810", "ma", 500, -1))
	require.Len(t, a.TradeRecords(), 1)
	assert.Equal(t, market.DirectionShort, a.TradeRecords()[0].Direction)
	assert.Equal(t, 1.0, a.TradeRecords()[0].Volume)
}

func TestApplyResult_SpreadSymbolSkipsStrategyAttribution(t *testing.T) {
	a := newTestAccountant(nil, false)
	a.ApplyResult(result("RB2110-1-HC2110-1-CJ.SPD", "ma", 500, 1))
	assert.Zero(t, a.StrategyPnl("ma"))
	assert.InDelta(t, 1_000_500, a.CurCapital, 1e-9)
}

// Opposing positions in the same underlying occupy the larger side, not the
// sum of both sides.
func TestUpdateOccupancy_PerUnderlyingMax(t *testing.T) {
	prices := map[string]float64{"rb1810": 4000, "rb1901": 4000, "cu1810": 50000}
	a := newTestAccountant(prices, false)

	ledger := position.NewLedger(func(string) pnl.CostParams { return pnl.CostParams{Size: 10} })
	_, err := ledger.Apply(openTrade(1, "rb1810", "ma", market.DirectionLong, 4000, 2))
	require.NoError(t, err)
	_, err = ledger.Apply(openTrade(2, "rb1901", "ma", market.DirectionShort, 4000, 1))
	require.NoError(t, err)
	_, err = ledger.Apply(openTrade(3, "cu1810", "ma", market.DirectionLong, 50000, 1))
	require.NoError(t, err)

	a.UpdateOccupancy(ledger)

	// RB long side: 4000*2*10*0.1 = 8000, short side 4000. Max is 8000.
	// CU long side: 50000*1*10*0.1 = 50000.
	wantOccupied := 8000.0 + 50000.0
	assert.InDelta(t, a.NetCapital-wantOccupied, a.Available, 1e-9)
	assert.InDelta(t, 5.8, a.Percent, 1e-9)
	assert.InDelta(t, 5.8, a.MaxOccupyRate, 1e-9)
}

func TestUpdateOccupancy_MarginModeShortUsesWorsePrice(t *testing.T) {
	// Price rose above the short entry: occupancy values the short at the
	// current price.
	prices := map[string]float64{"rb1810": 4200}
	a := newTestAccountant(prices, true)

	ledger := position.NewLedger(func(string) pnl.CostParams { return pnl.CostParams{Size: 10} })
	_, err := ledger.Apply(openTrade(1, "rb1810", "ma", market.DirectionShort, 4000, 1))
	require.NoError(t, err)

	a.UpdateOccupancy(ledger)
	assert.InDelta(t, a.NetCapital-4200, a.Available, 1e-9)
}

func TestFloatingPnl(t *testing.T) {
	prices := map[string]float64{"rb1810": 4100}
	a := newTestAccountant(prices, false)

	ledger := position.NewLedger(func(string) pnl.CostParams { return pnl.CostParams{Size: 10} })
	_, err := ledger.Apply(openTrade(1, "rb1810", "ma", market.DirectionLong, 4000, 2))
	require.NoError(t, err)
	_, err = ledger.Apply(openTrade(2, "rb1810", "hedge", market.DirectionShort, 4000, 1))
	require.NoError(t, err)

	// Long: (4100-4000)*2*10 = +2000. Short: (4000-4100)*1*10 = -1000.
	assert.InDelta(t, 1000, a.FloatingPnl(ledger), 1e-9)
}

func TestSnapshotDaily_FloatingValuationAndBenchmark(t *testing.T) {
	prices := map[string]float64{"rb1810": 4100}
	a := newTestAccountant(prices, false)

	ledger := position.NewLedger(func(string) pnl.CostParams { return pnl.CostParams{Size: 10} })
	_, err := ledger.Apply(openTrade(1, "rb1810", "ma", market.DirectionLong, 4000, 1))
	require.NoError(t, err)

	a.SnapshotDaily("2018-01-02", ledger, []string{"ma"}, 4000)
	prices["rb1810"] = 4200
	a.SnapshotDaily("2018-01-03", ledger, []string{"ma"}, 4200)

	records := a.DailyRecords()
	require.Len(t, records, 2)

	first := records[0]
	assert.InDelta(t, 1_000_000, first.Capital, 1e-9)
	assert.InDelta(t, 1_001_000, first.Net, 1e-9) // +1000 floating
	assert.InDelta(t, 1.001, first.Rate, 1e-9)
	assert.InDelta(t, 1.0, first.Benchmark, 1e-9)
	assert.InDelta(t, 1000, first.StrategyPnl["ma"], 1e-9)

	second := records[1]
	assert.InDelta(t, 1_002_000, second.Net, 1e-9)
	assert.InDelta(t, 4200.0/4000.0, second.Benchmark, 1e-9)

	// Net capital follows the floating-inclusive daily close.
	assert.InDelta(t, 1_002_000, a.NetCapital, 1e-9)
}

func TestSnapshotDaily_TracksDailyDrawdown(t *testing.T) {
	prices := map[string]float64{"rb1810": 4100}
	a := newTestAccountant(prices, false)

	ledger := position.NewLedger(func(string) pnl.CostParams { return pnl.CostParams{Size: 10} })
	_, err := ledger.Apply(openTrade(1, "rb1810", "ma", market.DirectionLong, 4000, 1))
	require.NoError(t, err)

	a.SnapshotDaily("2018-01-02", ledger, nil, 0)
	prices["rb1810"] = 3900 // net falls to 999000
	a.SnapshotDaily("2018-01-03", ledger, nil, 0)

	assert.Equal(t, "2018-01-02", a.MaxNetCapitalTime)
	assert.Equal(t, "2018-01-03", a.MaxDrawdownRateTime)
	assert.InDelta(t, (1_001_000.0-999_000.0)*100/1_001_000.0, a.DailyMaxDrawdownRate, 1e-9)
}

func TestCheckSolvency(t *testing.T) {
	a := newTestAccountant(nil, false)
	require.NoError(t, a.CheckSolvency())

	// Net capital is marked down at the daily close, where the loss shows.
	a.ApplyResult(result("rb1810", "ma", -2_000_000, 1))
	require.NoError(t, a.CheckSolvency())

	ledger := position.NewLedger(func(string) pnl.CostParams { return pnl.CostParams{Size: 10} })
	a.SnapshotDaily("2018-01-02", ledger, nil, 0)
	assert.ErrorIs(t, a.CheckSolvency(), ErrNegativeCapital)
}
