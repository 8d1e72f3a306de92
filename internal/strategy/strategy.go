// Package strategy defines the contract between the backtesting engine and
// user trading strategies.
package strategy

import (
	"errors"

	"github.com/your-org/cta-backtest/internal/market"
)

// Errors returned through the Trader interface.
var (
	// ErrNotTrading rejects order submission from a strategy that has not
	// reached the trading state.
	ErrNotTrading = errors.New("strategy is not trading")
	// ErrOrderNotFound is returned when cancelling an order that is not
	// working, including orders that already filled or were cancelled.
	ErrOrderNotFound = errors.New("order not working")
	// ErrUnknownStrategy rejects operations naming an unregistered strategy.
	ErrUnknownStrategy = errors.New("unknown strategy")
)

// Strategy receives lifecycle and market events from the engine. Callbacks
// are invoked sequentially on the replay goroutine; implementations need no
// locking of their own state.
type Strategy interface {
	// OnInit is called once when the strategy is loaded, before any data.
	OnInit()
	// OnStart is called when replay reaches the strategy start date and
	// order submission becomes allowed.
	OnStart()
	// OnStop is called once when the run ends or the strategy is stopped.
	OnStop()

	OnBar(bar *market.Bar)
	OnTick(tick *market.Tick)

	// OnOrder is delivered on every order status transition, after the
	// matching pass for the current record has completed.
	OnOrder(order *market.Order)
	// OnTrade is delivered once per fill, before the matching OnOrder.
	OnTrade(trade *market.Trade)
}

// Trader is the order entry surface the engine exposes to strategies.
// Orders placed before the strategy is trading are rejected.
type Trader interface {
	// Buy opens a long position with a limit order.
	Buy(strategyName, symbol string, price, volume float64) (int64, error)
	// Sell closes a long position with a limit order.
	Sell(strategyName, symbol string, price, volume float64) (int64, error)
	// Short opens a short position with a limit order.
	Short(strategyName, symbol string, price, volume float64) (int64, error)
	// Cover closes a short position with a limit order.
	Cover(strategyName, symbol string, price, volume float64) (int64, error)

	CancelOrder(id int64) error

	// SendStopOrder registers a stop order that converts to an immediate
	// fill when the trigger price is touched.
	SendStopOrder(strategyName, symbol string, direction market.Direction, offset market.Offset, triggerPrice, volume float64) (string, error)
	CancelStopOrder(id string) error

	// LastPrice reports the most recent price seen for symbol.
	LastPrice(symbol string) (float64, bool)
}

// Base is a no-op Strategy suitable for embedding, so concrete strategies
// implement only the callbacks they care about.
type Base struct{}

func (Base) OnInit()               {}
func (Base) OnStart()              {}
func (Base) OnStop()               {}
func (Base) OnBar(*market.Bar)     {}
func (Base) OnTick(*market.Tick)   {}
func (Base) OnOrder(*market.Order) {}
func (Base) OnTrade(*market.Trade) {}
