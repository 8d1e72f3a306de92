// Package account aggregates realized and floating results into account-level
// capital, margin occupancy, drawdown and daily equity records.
package account

import (
	"errors"
	"math"
	"time"

	"github.com/your-org/cta-backtest/internal/market"
	"github.com/your-org/cta-backtest/internal/pnl"
	"github.com/your-org/cta-backtest/internal/position"
	"github.com/your-org/cta-backtest/pkg/logger"
)

// ErrNegativeCapital signals that net capital dropped below zero. Further
// simulation would be meaningless, so the run must stop.
var ErrNegativeCapital = errors.New("net capital below zero")

// Params configures an Accountant. The lookup funcs resolve per-symbol
// contract attributes and the latest replayed price.
type Params struct {
	InitCapital  float64
	UseMargin    bool
	PercentLimit float64
	Size         func(symbol string) float64
	MarginRate   func(symbol string) float64
	Price        func(symbol string) (float64, bool)
}

// TradeRecord is one row of the trade-list artifact: a matched open/close
// pair attributed to its strategy.
type TradeRecord struct {
	GroupID    int64
	Strategy   string
	Symbol     string
	OpenTime   time.Time
	OpenPrice  float64
	Direction  market.Direction
	CloseTime  time.Time
	ClosePrice float64
	Volume     float64
	Profit     float64
	Commission float64
}

// DailyRecord is one row of the daily-equity artifact.
type DailyRecord struct {
	Date        string
	Capital     float64 // closed-trade capital
	Net         float64 // capital + floating pnl
	MaxCapital  float64
	Rate        float64 // net / initial capital
	Commission  float64 // cumulative
	OccupyMoney float64
	OccupyRate  float64
	Benchmark   float64
	StrategyPnl map[string]float64
}

// Accountant owns all capital bookkeeping for one run.
type Accountant struct {
	params Params

	CurCapital    float64
	NetCapital    float64
	MaxCapital    float64
	MaxNetCapital float64
	Available     float64
	Percent       float64
	MaxOccupyRate float64

	WinningCount int
	LosingCount  int
	TotalWinning float64
	TotalLosing  float64

	TotalTradeCount int
	TotalTurnover   float64
	TotalCommission float64
	TotalSlippage   float64

	PnlList          []float64
	TimeList         []time.Time
	CapitalList      []float64
	DrawdownList     []float64
	DrawdownRateList []float64

	MaxNetCapitalTime    string
	MaxDrawdownRateTime  string
	DailyMaxDrawdownRate float64

	pnlByStrategy  map[string]float64
	tradeRecords   []TradeRecord
	dailyRecords   []DailyRecord
	firstBenchmark float64
}

// New builds a fresh accountant with all capital figures at the initial value.
func New(params Params) *Accountant {
	return &Accountant{
		params:        params,
		CurCapital:    params.InitCapital,
		NetCapital:    params.InitCapital,
		MaxCapital:    params.InitCapital,
		MaxNetCapital: params.InitCapital,
		Available:     params.InitCapital,
		pnlByStrategy: make(map[string]float64),
	}
}

// ApplyResult folds one realized trading result into the capital and
// drawdown series.
func (a *Accountant) ApplyResult(r pnl.Result) {
	if r.Pnl > 0 {
		a.WinningCount++
		a.TotalWinning += r.Pnl
	} else {
		a.LosingCount++
		a.TotalLosing += r.Pnl
	}

	a.CurCapital += r.Pnl
	a.MaxCapital = math.Max(a.CurCapital, a.MaxCapital)
	a.NetCapital = math.Max(a.NetCapital, a.CurCapital)
	a.MaxNetCapital = math.Max(a.NetCapital, a.MaxNetCapital)

	drawdown := a.NetCapital - a.MaxNetCapital
	drawdownRate := 0.0
	if a.MaxNetCapital != 0 {
		drawdownRate = drawdown * 100 / a.MaxNetCapital
	}

	a.PnlList = append(a.PnlList, r.Pnl)
	a.TimeList = append(a.TimeList, r.CloseTime)
	a.CapitalList = append(a.CapitalList, a.CurCapital)
	a.DrawdownList = append(a.DrawdownList, drawdown)
	a.DrawdownRateList = append(a.DrawdownRateList, drawdownRate)

	a.TotalTradeCount++
	a.TotalTurnover += r.Turnover
	a.TotalCommission += r.Commission
	a.TotalSlippage += r.Slippage

	// Spread legs settle against their real underlyings; the synthetic
	// symbol itself carries no strategy attribution.
	if !market.IsSpread(r.Symbol) {
		a.pnlByStrategy[r.Strategy] += r.Pnl
	}

	direction := market.DirectionLong
	if r.Volume < 0 {
		direction = market.DirectionShort
	}
	a.tradeRecords = append(a.tradeRecords, TradeRecord{
		GroupID:    r.GroupID,
		Strategy:   r.Strategy,
		Symbol:     r.Symbol,
		OpenTime:   r.OpenTime,
		OpenPrice:  r.OpenPrice,
		Direction:  direction,
		CloseTime:  r.CloseTime,
		ClosePrice: r.ClosePrice,
		Volume:     math.Abs(r.Volume),
		Profit:     r.Pnl,
		Commission: r.Commission,
	})
}

// UpdateOccupancy recomputes margin occupancy from the open lots. Long and
// short margin aggregate per underlying product and the occupied figure per
// product is the larger side, since opposing positions in the same underlying
// net against each other. A percent-limit breach is logged, not enforced.
func (a *Accountant) UpdateOccupancy(ledger *position.Ledger) {
	longOccupy := make(map[string]float64)
	shortOccupy := make(map[string]float64)
	underlyings := make(map[string]struct{})

	for _, lot := range ledger.LongLots() {
		if market.IsSpread(lot.Symbol) {
			continue
		}
		price := lot.Price
		if !a.params.UseMargin {
			if p, ok := a.params.Price(lot.Symbol); ok {
				price = p
			}
		}
		u := market.UnderlyingSymbol(lot.Symbol)
		underlyings[u] = struct{}{}
		longOccupy[u] += price * math.Abs(lot.Volume) * a.params.Size(lot.Symbol) * a.params.MarginRate(lot.Symbol)
	}

	for _, lot := range ledger.ShortLots() {
		if market.IsSpread(lot.Symbol) {
			continue
		}
		price := lot.Price
		if p, ok := a.params.Price(lot.Symbol); ok {
			if a.params.UseMargin {
				price = math.Max(p, lot.Price)
			} else {
				price = p
			}
		}
		u := market.UnderlyingSymbol(lot.Symbol)
		underlyings[u] = struct{}{}
		shortOccupy[u] += price * math.Abs(lot.Volume) * a.params.Size(lot.Symbol) * a.params.MarginRate(lot.Symbol)
	}

	var occupied float64
	for u := range underlyings {
		occupied += math.Max(longOccupy[u], shortOccupy[u])
	}

	a.Available = a.NetCapital - occupied
	if a.NetCapital != 0 {
		a.Percent = math.Round(occupied*100/a.NetCapital*100) / 100
	}
	a.MaxOccupyRate = math.Max(a.MaxOccupyRate, a.Percent)

	if a.params.PercentLimit > 0 && a.Percent > a.params.PercentLimit {
		logger.Warnf("margin occupancy %.2f%% exceeds limit %.2f%%", a.Percent, a.params.PercentLimit)
	}
}

// FloatingPnl values all open lots at the latest prices. Spread symbols are
// excluded; their decomposed legs carry the exposure.
func (a *Accountant) FloatingPnl(ledger *position.Ledger) float64 {
	var floating float64
	for _, lot := range ledger.LongLots() {
		if market.IsSpread(lot.Symbol) {
			continue
		}
		if p, ok := a.params.Price(lot.Symbol); ok {
			floating += (p - lot.Price) * lot.Volume * a.params.Size(lot.Symbol)
		}
	}
	for _, lot := range ledger.ShortLots() {
		if market.IsSpread(lot.Symbol) {
			continue
		}
		if p, ok := a.params.Price(lot.Symbol); ok {
			floating += (lot.Price - p) * lot.Volume * a.params.Size(lot.Symbol)
		}
	}
	return floating
}

// SnapshotDaily closes the books for one trading day: values floating pnl,
// attributes it per strategy, records the daily row and resets net capital to
// the day's floating-inclusive figure used by the drawdown statistics.
func (a *Accountant) SnapshotDaily(date string, ledger *position.Ledger, strategies []string, benchmark float64) {
	strategyPnl := make(map[string]float64, len(strategies))
	for _, s := range strategies {
		strategyPnl[s] = a.pnlByStrategy[s]
	}

	if a.firstBenchmark == 0 && benchmark > 0 {
		a.firstBenchmark = benchmark
	}
	normBenchmark := 1.0
	if benchmark > 0 && a.firstBenchmark > 0 {
		normBenchmark = benchmark / a.firstBenchmark
	}

	var floating, longOccupy, shortOccupy float64
	for _, lot := range ledger.LongLots() {
		if market.IsSpread(lot.Symbol) {
			continue
		}
		p, ok := a.params.Price(lot.Symbol)
		if !ok {
			continue
		}
		holding := (p - lot.Price) * lot.Volume * a.params.Size(lot.Symbol)
		floating += holding
		strategyPnl[lot.Strategy] += holding
		longOccupy += p * math.Abs(lot.Volume) * a.params.Size(lot.Symbol) * a.params.MarginRate(lot.Symbol)
	}
	for _, lot := range ledger.ShortLots() {
		if market.IsSpread(lot.Symbol) {
			continue
		}
		p, ok := a.params.Price(lot.Symbol)
		if !ok {
			continue
		}
		holding := (lot.Price - p) * lot.Volume * a.params.Size(lot.Symbol)
		floating += holding
		strategyPnl[lot.Strategy] += holding
		shortOccupy += p * math.Abs(lot.Volume) * a.params.Size(lot.Symbol) * a.params.MarginRate(lot.Symbol)
	}

	rec := DailyRecord{
		Date:        date,
		Capital:     a.CurCapital,
		Net:         a.CurCapital + floating,
		MaxCapital:  a.MaxNetCapital,
		Commission:  a.TotalCommission,
		OccupyMoney: math.Max(longOccupy, shortOccupy),
		Benchmark:   normBenchmark,
		StrategyPnl: strategyPnl,
	}
	if a.params.InitCapital != 0 {
		rec.Rate = rec.Net / a.params.InitCapital
	}
	if rec.Capital != 0 {
		rec.OccupyRate = rec.OccupyMoney / rec.Capital
	}
	a.dailyRecords = append(a.dailyRecords, rec)

	a.NetCapital = rec.Net
	if rec.Net > a.MaxNetCapital {
		a.MaxNetCapital = rec.Net
		a.MaxNetCapitalTime = date
	}
	if a.MaxNetCapital != 0 {
		drawdownRate := (a.MaxNetCapital - rec.Net) * 100 / a.MaxNetCapital
		if drawdownRate > a.DailyMaxDrawdownRate {
			a.DailyMaxDrawdownRate = drawdownRate
			a.MaxDrawdownRateTime = date
		}
	}

	logger.Infof("%s: net=%.2f capital=%.2f floating=%.2f occupy=%.2f commission=%.2f",
		date, rec.Net, rec.Capital, floating, rec.OccupyMoney, a.TotalCommission)
}

// CheckSolvency returns ErrNegativeCapital when net capital is below zero.
func (a *Accountant) CheckSolvency() error {
	if a.NetCapital < 0 {
		return ErrNegativeCapital
	}
	return nil
}

// TradeRecords returns all matched close rows in emission order.
func (a *Accountant) TradeRecords() []TradeRecord { return a.tradeRecords }

// DailyRecords returns the daily equity rows in chronological order.
func (a *Accountant) DailyRecords() []DailyRecord { return a.dailyRecords }

// StrategyPnl returns the realized pnl attributed to one strategy.
func (a *Accountant) StrategyPnl(strategy string) float64 { return a.pnlByStrategy[strategy] }

// InitCapital returns the configured starting capital.
func (a *Accountant) InitCapital() float64 { return a.params.InitCapital }
