package strategy

import (
	"errors"

	"github.com/your-org/cta-backtest/internal/indicator"
	"github.com/your-org/cta-backtest/internal/market"
	"github.com/your-org/cta-backtest/pkg/logger"
)

func init() {
	Register("channel_break", func(name, symbol string, trader Trader, params map[string]float64) Strategy {
		return NewChannelBreak(name, symbol, trader, params)
	})
}

// ChannelBreak is a Donchian channel breakout system driven entirely by
// stop orders: entries trigger when price breaks the channel, exits when it
// breaks back through the opposite band.
type ChannelBreak struct {
	Base

	name   string
	symbol string
	trader Trader

	channel *indicator.Donchian
	volume  float64
	pos     float64

	working []string
}

func NewChannelBreak(name, symbol string, trader Trader, params map[string]float64) *ChannelBreak {
	window, volume := 20, 1.0
	if v, ok := params["window"]; ok && v > 0 {
		window = int(v)
	}
	if v, ok := params["volume"]; ok && v > 0 {
		volume = v
	}
	return &ChannelBreak{
		name:    name,
		symbol:  symbol,
		trader:  trader,
		channel: indicator.NewDonchian(window),
		volume:  volume,
	}
}

func (s *ChannelBreak) OnBar(bar *market.Bar) {
	if bar.Symbol != s.symbol {
		return
	}
	s.channel.Update(bar.High, bar.Low)
	if !s.channel.Ready() {
		return
	}

	up, down := s.channel.Channel()
	s.cancelWorking()

	switch {
	case s.pos == 0:
		s.place(market.DirectionLong, market.OffsetOpen, up, s.volume)
		s.place(market.DirectionShort, market.OffsetOpen, down, s.volume)
	case s.pos > 0:
		s.place(market.DirectionShort, market.OffsetClose, down, s.pos)
	default:
		s.place(market.DirectionLong, market.OffsetClose, up, -s.pos)
	}
}

func (s *ChannelBreak) OnTrade(trade *market.Trade) {
	if trade.Direction == market.DirectionLong {
		s.pos += trade.Volume
	} else {
		s.pos -= trade.Volume
	}
}

func (s *ChannelBreak) cancelWorking() {
	for _, id := range s.working {
		err := s.trader.CancelStopOrder(id)
		// Triggered stops are already gone from the working set.
		if err != nil && !errors.Is(err, ErrOrderNotFound) {
			logger.Warnf("%s: cancel %s: %v", s.name, id, err)
		}
	}
	s.working = s.working[:0]
}

func (s *ChannelBreak) place(direction market.Direction, offset market.Offset, trigger, volume float64) {
	id, err := s.trader.SendStopOrder(s.name, s.symbol, direction, offset, trigger, volume)
	if err != nil {
		logger.Warnf("%s: stop order rejected: %v", s.name, err)
		return
	}
	s.working = append(s.working, id)
}
