// Package position maintains the FIFO queues of open lots per instrument and
// strategy, and turns closing trades into realized trading results.
package position

import (
	"errors"
	"fmt"
	"time"

	"github.com/your-org/cta-backtest/internal/market"
	"github.com/your-org/cta-backtest/internal/pnl"
	"github.com/your-org/cta-backtest/pkg/logger"
)

// ErrNoOppositeLots signals a closing trade that cannot be matched against
// any open lot of the opposite direction. This breaks the ledger invariant
// and is fatal for the run.
var ErrNoOppositeLots = errors.New("closing trade has no opposite-direction open lots")

// Lot is one open slice of a position with a fixed entry price. Today marks
// lots opened in the current trading day; the flag is cleared on day roll.
type Lot struct {
	TradeID  int64
	Symbol   string
	Strategy string
	Price    float64
	Volume   float64
	Time     time.Time
	Today    bool
}

type key struct {
	symbol   string
	strategy string
}

// book holds the two FIFO queues for one (symbol, strategy) pair.
type book struct {
	long  []*Lot
	short []*Lot
}

// Ledger tracks open lots for every (symbol, strategy) pair in one run.
type Ledger struct {
	books map[key]*book
	costs func(symbol string) pnl.CostParams
}

// NewLedger builds an empty ledger. costs resolves the per-symbol pricing
// parameters applied when lots are closed.
func NewLedger(costs func(symbol string) pnl.CostParams) *Ledger {
	return &Ledger{
		books: make(map[key]*book),
		costs: costs,
	}
}

func (l *Ledger) bookFor(symbol, strategy string) *book {
	k := key{symbol: symbol, strategy: strategy}
	b, ok := l.books[k]
	if !ok {
		b = &book{}
		l.books[k] = b
	}
	return b
}

// Apply consumes one trade. Opening trades push a lot and return no results;
// closing trades consume opposite-direction lots FIFO and return one result
// per consumed (partial) lot, all sharing the trade's ID as group id.
func (l *Ledger) Apply(trade *market.Trade) ([]pnl.Result, error) {
	if trade.Volume == 0 {
		return nil, nil
	}

	if trade.Offset == market.OffsetOpen {
		l.open(trade)
		return nil, nil
	}
	return l.close(trade)
}

func (l *Ledger) open(trade *market.Trade) {
	b := l.bookFor(trade.Symbol, trade.Strategy)
	lot := &Lot{
		TradeID:  trade.ID,
		Symbol:   trade.Symbol,
		Strategy: trade.Strategy,
		Price:    trade.Price,
		Volume:   trade.Volume,
		Time:     trade.Time,
		Today:    true,
	}
	if trade.Direction == market.DirectionLong {
		b.long = append(b.long, lot)
	} else {
		b.short = append(b.short, lot)
	}
	logger.Debugf("%s/%s: opened %s lot %v@%v", trade.Strategy, trade.Symbol, trade.Direction, lot.Volume, lot.Price)
}

// close pops lots from the opposite-direction queue until the closing volume
// is exhausted. A long close (cover) consumes short lots and reports negative
// result volume; a short close (sell) consumes long lots with positive volume.
func (l *Ledger) close(trade *market.Trade) ([]pnl.Result, error) {
	b := l.bookFor(trade.Symbol, trade.Strategy)
	queue := &b.long
	sign := 1.0
	if trade.Direction == market.DirectionLong {
		queue = &b.short
		sign = -1.0
	}

	costs := l.costs(trade.Symbol)
	var results []pnl.Result
	remaining := trade.Volume

	for remaining > 0 {
		if len(*queue) == 0 {
			return results, fmt.Errorf("%s/%s: closing %v remaining of trade %d: %w",
				trade.Strategy, trade.Symbol, remaining, trade.ID, ErrNoOppositeLots)
		}
		lot := (*queue)[0]
		*queue = (*queue)[1:]

		if remaining >= lot.Volume {
			// Whole lot consumed.
			r := pnl.NewResult(
				lot.Price, lot.Time, trade.Price, trade.Time,
				sign*lot.Volume, trade.ID, costs)
			r.Symbol, r.Strategy = trade.Symbol, trade.Strategy
			results = append(results, r)
			remaining -= lot.Volume
			continue
		}

		// Split: the consumed slice becomes a result, the remainder keeps its
		// entry price and time and goes back to the front of the queue.
		r := pnl.NewResult(
			lot.Price, lot.Time, trade.Price, trade.Time,
			sign*remaining, trade.ID, costs)
		r.Symbol, r.Strategy = trade.Symbol, trade.Strategy
		results = append(results, r)
		rest := *lot
		rest.Volume = lot.Volume - remaining
		*queue = append([]*Lot{&rest}, *queue...)
		remaining = 0
	}

	return results, nil
}

// LongLots returns every open long lot across all books.
func (l *Ledger) LongLots() []*Lot {
	var lots []*Lot
	for _, b := range l.books {
		lots = append(lots, b.long...)
	}
	return lots
}

// ShortLots returns every open short lot across all books.
func (l *Ledger) ShortLots() []*Lot {
	var lots []*Lot
	for _, b := range l.books {
		lots = append(lots, b.short...)
	}
	return lots
}

// Net returns the signed open volume for one (symbol, strategy) pair.
func (l *Ledger) Net(symbol, strategy string) float64 {
	b, ok := l.books[key{symbol: symbol, strategy: strategy}]
	if !ok {
		return 0
	}
	var net float64
	for _, lot := range b.long {
		net += lot.Volume
	}
	for _, lot := range b.short {
		net -= lot.Volume
	}
	return net
}

// Empty reports whether no lots are open anywhere.
func (l *Ledger) Empty() bool {
	for _, b := range l.books {
		if len(b.long) > 0 || len(b.short) > 0 {
			return false
		}
	}
	return true
}

// RollDay converts today's lots into carried (yesterday) lots at the trading
// day boundary.
func (l *Ledger) RollDay() {
	for _, b := range l.books {
		for _, lot := range b.long {
			lot.Today = false
		}
		for _, lot := range b.short {
			lot.Today = false
		}
	}
}
