package engine

import (
	"github.com/google/btree"

	"github.com/your-org/cta-backtest/internal/market"
)

// OrderBook owns every limit order of one run. Working orders live in a
// btree ordered by ID, which gives submission-order iteration and lets the
// matching pass collect a stable snapshot of IDs before mutating the set.
type OrderBook struct {
	working *btree.BTreeG[*market.Order]
	orders  map[int64]*market.Order
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		working: btree.NewG(8, func(a, b *market.Order) bool { return a.ID < b.ID }),
		orders:  make(map[int64]*market.Order),
	}
}

// Add registers a new order and places it in the working set.
func (b *OrderBook) Add(order *market.Order) {
	b.orders[order.ID] = order
	b.working.ReplaceOrInsert(order)
}

// Get returns any order ever submitted, working or terminal.
func (b *OrderBook) Get(id int64) (*market.Order, bool) {
	o, ok := b.orders[id]
	return o, ok
}

// Working returns the working order with the given ID.
func (b *OrderBook) Working(id int64) (*market.Order, bool) {
	probe := &market.Order{ID: id}
	return b.working.Get(probe)
}

// Unwork removes an order from the working set once it reaches a terminal
// state. The order record itself is retained.
func (b *OrderBook) Unwork(id int64) {
	b.working.Delete(&market.Order{ID: id})
}

// WorkingIDs collects the IDs of working orders in submission order,
// restricted to symbol when non-empty.
func (b *OrderBook) WorkingIDs(symbol string) []int64 {
	ids := make([]int64, 0, b.working.Len())
	b.working.Ascend(func(o *market.Order) bool {
		if symbol == "" || o.Symbol == symbol {
			ids = append(ids, o.ID)
		}
		return true
	})
	return ids
}

// WorkingCount returns the number of working orders.
func (b *OrderBook) WorkingCount() int {
	return b.working.Len()
}

// Record registers a terminal order that never rested in the working set,
// such as the synthetic order produced by a triggered stop.
func (b *OrderBook) Record(order *market.Order) {
	b.orders[order.ID] = order
}
