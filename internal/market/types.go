// Package market defines the data model replayed and produced by the
// backtesting engine: bars, ticks, orders, stop orders and trades.
package market

import (
	"fmt"
	"time"
)

// Direction is the side of an order or trade.
type Direction string

// Offset distinguishes position-opening from position-closing orders.
type Offset string

// OrderStatus is the lifecycle state of a limit order. AllTraded and
// Cancelled are terminal.
type OrderStatus string

// StopOrderStatus is the lifecycle state of a local stop order. Triggered
// and Cancelled are terminal.
type StopOrderStatus string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"

	OffsetOpen  Offset = "open"
	OffsetClose Offset = "close"

	StatusNotTraded  OrderStatus = "not_traded"
	StatusPartTraded OrderStatus = "part_traded"
	StatusAllTraded  OrderStatus = "all_traded"
	StatusCancelled  OrderStatus = "cancelled"

	StopStatusWaiting   StopOrderStatus = "waiting"
	StopStatusTriggered StopOrderStatus = "triggered"
	StopStatusCancelled StopOrderStatus = "cancelled"
)

// StopOrderPrefix distinguishes stop-order IDs from limit-order IDs.
const StopOrderPrefix = "stop."

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	if d == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}

// Finished reports whether the order reached a terminal state.
func (s OrderStatus) Finished() bool {
	return s == StatusAllTraded || s == StatusCancelled
}

// Bar is one aggregated OHLCV interval for one instrument. Immutable once
// produced by the data layer.
type Bar struct {
	Symbol     string
	Time       time.Time
	TradingDay string // YYYY-MM-DD
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
}

// Tick is one top-of-book quote record, the alternative replay granularity.
type Tick struct {
	Symbol       string
	Time         time.Time
	TradingDay   string
	LastPrice    float64
	BidPrice1    float64
	BidVolume1   int64
	AskPrice1    float64
	AskVolume1   int64
	OpenInterest float64
}

// Order is a limit order resting in the simulated exchange. Mutated only by
// the matching engine (fills) or an explicit cancel.
type Order struct {
	ID           int64
	Symbol       string
	Strategy     string
	Direction    Direction
	Offset       Offset
	Price        float64
	TotalVolume  float64
	TradedVolume float64
	Status       OrderStatus
	SubmitTime   time.Time
	CancelTime   time.Time
}

// StopOrder is a locally simulated stop order. On trigger it converts into a
// trade plus a synthetic fully filled Order record.
type StopOrder struct {
	ID           string // StopOrderPrefix + counter
	Symbol       string
	Strategy     string
	Direction    Direction
	Offset       Offset
	TriggerPrice float64
	Volume       float64
	Status       StopOrderStatus
	SubmitTime   time.Time
}

// Trade is an immutable fill record.
type Trade struct {
	ID        int64
	Symbol    string
	Strategy  string
	Direction Direction
	Offset    Offset
	Price     float64
	Volume    float64
	Time      time.Time
	OrderID   int64
}

func (o *Order) String() string {
	return fmt.Sprintf("order %d %s %s/%s %v@%v (%s)",
		o.ID, o.Symbol, o.Direction, o.Offset, o.TotalVolume, o.Price, o.Status)
}

func (t *Trade) String() string {
	return fmt.Sprintf("trade %d %s %s/%s %v@%v",
		t.ID, t.Symbol, t.Direction, t.Offset, t.Volume, t.Price)
}
