package strategy

import (
	"github.com/your-org/cta-backtest/internal/indicator"
	"github.com/your-org/cta-backtest/internal/market"
	"github.com/your-org/cta-backtest/pkg/logger"
)

func init() {
	Register("double_ma", func(name, symbol string, trader Trader, params map[string]float64) Strategy {
		return NewDoubleMA(name, symbol, trader, params)
	})
}

// DoubleMA trades fast/slow moving average crossovers: it goes long on a
// golden cross and short on a dead cross, reversing any open position.
type DoubleMA struct {
	Base

	name   string
	symbol string
	trader Trader

	fast   *indicator.SMA
	slow   *indicator.SMA
	volume float64
	pos    float64
}

func NewDoubleMA(name, symbol string, trader Trader, params map[string]float64) *DoubleMA {
	fast, slow, volume := 10, 60, 1.0
	if v, ok := params["fast"]; ok && v > 0 {
		fast = int(v)
	}
	if v, ok := params["slow"]; ok && v > 0 {
		slow = int(v)
	}
	if v, ok := params["volume"]; ok && v > 0 {
		volume = v
	}
	return &DoubleMA{
		name:   name,
		symbol: symbol,
		trader: trader,
		fast:   indicator.NewSMA(fast),
		slow:   indicator.NewSMA(slow),
		volume: volume,
	}
}

func (s *DoubleMA) OnInit() {
	logger.Infof("%s: double_ma volume=%v", s.name, s.volume)
}

func (s *DoubleMA) OnBar(bar *market.Bar) {
	if bar.Symbol != s.symbol {
		return
	}
	s.fast.Update(bar.Close)
	s.slow.Update(bar.Close)
	if !s.fast.Ready() || !s.slow.Ready() {
		return
	}

	crossUp := s.fast.Value() > s.slow.Value() && s.fast.Prev() <= s.slow.Prev()
	crossDown := s.fast.Value() < s.slow.Value() && s.fast.Prev() >= s.slow.Prev()

	switch {
	case crossUp:
		if s.pos < 0 {
			s.submit(s.trader.Cover, bar.Close, -s.pos)
		}
		if s.pos <= 0 {
			s.submit(s.trader.Buy, bar.Close, s.volume)
		}
	case crossDown:
		if s.pos > 0 {
			s.submit(s.trader.Sell, bar.Close, s.pos)
		}
		if s.pos >= 0 {
			s.submit(s.trader.Short, bar.Close, s.volume)
		}
	}
}

func (s *DoubleMA) OnTrade(trade *market.Trade) {
	if trade.Direction == market.DirectionLong {
		s.pos += trade.Volume
	} else {
		s.pos -= trade.Volume
	}
}

func (s *DoubleMA) submit(send func(name, symbol string, price, volume float64) (int64, error), price, volume float64) {
	if _, err := send(s.name, s.symbol, price, volume); err != nil {
		logger.Warnf("%s: order rejected: %v", s.name, err)
	}
}
