package engine

import (
	"math"
	"time"

	"github.com/your-org/cta-backtest/internal/market"
	"github.com/your-org/cta-backtest/pkg/logger"
)

// crossPrices are the thresholds and best achievable prices for one matching
// pass. The fill policy is optimistic: an order that crosses fills at the
// better of its own price and the best price the record offers.
type crossPrices struct {
	buyCross  float64 // buy limit crosses when its price >= buyCross
	sellCross float64 // sell limit crosses when its price <= sellCross
	buyBest   float64
	sellBest  float64
}

func limitCrossBar(b *market.Bar) crossPrices {
	return crossPrices{buyCross: b.Low, sellCross: b.High, buyBest: b.Open, sellBest: b.Open}
}

func limitCrossTick(t *market.Tick) crossPrices {
	return crossPrices{buyCross: t.AskPrice1, sellCross: t.BidPrice1, buyBest: t.AskPrice1, sellBest: t.BidPrice1}
}

// Stop triggers look at the opposite bar extreme: a buy stop needs the price
// to rise to its trigger, a sell stop needs it to fall.
func stopCrossBar(b *market.Bar) crossPrices {
	return crossPrices{buyCross: b.High, sellCross: b.Low, buyBest: b.Open, sellBest: b.Open}
}

func stopCrossTick(t *market.Tick) crossPrices {
	return crossPrices{buyCross: t.LastPrice, sellCross: t.LastPrice, buyBest: t.LastPrice, sellBest: t.LastPrice}
}

// crossLimitOrders matches the working limit orders of one symbol against a
// new record. Fills are whole-order: a crossed order trades its full volume
// at once and leaves the working set. The returned trades are delivered to
// strategies only after the pass is complete, so orders submitted from
// callbacks wait for the next record.
func (e *Engine) crossLimitOrders(symbol string, cp crossPrices, now time.Time) []*market.Trade {
	var fills []*market.Trade
	for _, id := range e.book.WorkingIDs(symbol) {
		order, ok := e.book.Working(id)
		if !ok {
			continue
		}
		buyCross := order.Direction == market.DirectionLong && order.Price >= cp.buyCross
		sellCross := order.Direction == market.DirectionShort && order.Price <= cp.sellCross
		if !buyCross && !sellCross {
			continue
		}

		var price float64
		if buyCross {
			price = math.Min(order.Price, cp.buyBest)
		} else {
			price = math.Max(order.Price, cp.sellBest)
		}

		order.TradedVolume = order.TotalVolume
		order.Status = market.StatusAllTraded
		e.book.Unwork(id)

		trade := &market.Trade{
			ID:        e.nextTradeID(),
			Symbol:    order.Symbol,
			Strategy:  order.Strategy,
			Direction: order.Direction,
			Offset:    order.Offset,
			Price:     price,
			Volume:    order.TotalVolume,
			Time:      now,
			OrderID:   order.ID,
		}
		fills = append(fills, trade)
		logger.Debugf("limit order %d filled: %s", order.ID, trade)
	}
	return fills
}

// crossStopOrders triggers the working stop orders of one symbol. A
// triggered stop converts into a synthetic limit order that fills
// immediately at the worse of the trigger price and the best record price.
func (e *Engine) crossStopOrders(symbol string, cp crossPrices, now time.Time) []*market.Trade {
	var fills []*market.Trade
	for _, id := range e.workingStopIDs(symbol) {
		so := e.stopOrders[id]

		buyCross := so.Direction == market.DirectionLong && cp.buyCross >= so.TriggerPrice
		sellCross := so.Direction == market.DirectionShort && cp.sellCross <= so.TriggerPrice
		if !buyCross && !sellCross {
			continue
		}

		var price float64
		if buyCross {
			price = math.Max(cp.buyBest, so.TriggerPrice)
		} else {
			price = math.Min(cp.sellBest, so.TriggerPrice)
		}

		so.Status = market.StopStatusTriggered
		delete(e.stopOrders, id)

		order := &market.Order{
			ID:           e.nextOrderID(),
			Symbol:       so.Symbol,
			Strategy:     so.Strategy,
			Direction:    so.Direction,
			Offset:       so.Offset,
			Price:        so.TriggerPrice,
			TotalVolume:  so.Volume,
			TradedVolume: so.Volume,
			Status:       market.StatusAllTraded,
			SubmitTime:   now,
		}
		e.book.Record(order)
		if inst, ok := e.stopOwner[so.ID]; ok {
			e.orderOwner[order.ID] = inst
		}

		trade := &market.Trade{
			ID:        e.nextTradeID(),
			Symbol:    so.Symbol,
			Strategy:  so.Strategy,
			Direction: so.Direction,
			Offset:    so.Offset,
			Price:     price,
			Volume:    so.Volume,
			Time:      now,
			OrderID:   order.ID,
		}
		fills = append(fills, trade)
		logger.Debugf("stop order %s triggered: %s", id, trade)
	}
	return fills
}
