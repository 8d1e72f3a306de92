package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/your-org/cta-backtest/internal/market"
	"github.com/your-org/cta-backtest/pkg/logger"
)

// spreadDef is a parsed synthetic spread symbol of the form
// "ACT-ar-PAS-pr-TYPE.SPD": an active leg, a passive leg, their integer
// ratios and the pricing type ("BJ" is multiplicative, anything else
// additive).
type spreadDef struct {
	Active       string
	ActiveRatio  float64
	Passive      string
	PassiveRatio float64
	Multiplied   bool
}

func parseSpread(symbol string) (spreadDef, error) {
	name, ok := strings.CutSuffix(symbol, market.SpreadSuffix)
	if !ok {
		return spreadDef{}, fmt.Errorf("not a spread symbol: %s", symbol)
	}
	parts := strings.Split(name, "-")
	if len(parts) != 5 {
		return spreadDef{}, fmt.Errorf("malformed spread symbol %s: want 5 parts, got %d", symbol, len(parts))
	}
	ar, err := strconv.Atoi(parts[1])
	if err != nil || ar <= 0 {
		return spreadDef{}, fmt.Errorf("malformed spread symbol %s: bad active ratio %q", symbol, parts[1])
	}
	pr, err := strconv.Atoi(parts[3])
	if err != nil || pr <= 0 {
		return spreadDef{}, fmt.Errorf("malformed spread symbol %s: bad passive ratio %q", symbol, parts[3])
	}
	return spreadDef{
		Active:       parts[0],
		ActiveRatio:  float64(ar),
		Passive:      parts[2],
		PassiveRatio: float64(pr),
		Multiplied:   parts[4] == "BJ",
	}, nil
}

// passivePrice solves the spread pricing relation for the passive leg price,
// given the active leg price and the traded spread price.
func (d spreadDef) passivePrice(activePrice, spreadPrice float64) (float64, error) {
	if d.Multiplied {
		if spreadPrice == 0 {
			return 0, fmt.Errorf("spread price is zero for multiplied spread")
		}
		return activePrice * d.ActiveRatio * 100 / spreadPrice / d.PassiveRatio, nil
	}
	return (activePrice*d.ActiveRatio - spreadPrice) / d.PassiveRatio, nil
}

// decomposeTrade expands a fill on a spread symbol into the trades used for
// position keeping and accounting: the spread trade itself followed by its
// active and passive leg trades. Failures are recoverable: the spread trade
// alone is kept and an error is logged.
func (e *Engine) decomposeTrade(trade *market.Trade) []*market.Trade {
	if !market.IsSpread(trade.Symbol) {
		return []*market.Trade{trade}
	}
	def, err := parseSpread(trade.Symbol)
	if err != nil {
		logger.Errorf("spread decomposition failed, keeping spread trade: %v", err)
		return []*market.Trade{trade}
	}
	activePrice, ok := e.prices[def.Active]
	if !ok || activePrice == 0 {
		logger.Errorf("spread decomposition failed, no price for active leg %s of %s", def.Active, trade.Symbol)
		return []*market.Trade{trade}
	}
	pasPrice, err := def.passivePrice(activePrice, trade.Price)
	if err != nil {
		logger.Errorf("spread decomposition failed for %s: %v", trade.Symbol, err)
		return []*market.Trade{trade}
	}
	pasTick := e.cfg.Symbol(def.Passive).PriceTick
	if pasTick > 0 {
		pasPrice = math.Round(pasPrice/pasTick) * pasTick
	}

	act := &market.Trade{
		ID:        e.nextTradeID(),
		Symbol:    def.Active,
		Strategy:  trade.Strategy,
		Direction: trade.Direction,
		Offset:    trade.Offset,
		Price:     activePrice,
		Volume:    trade.Volume * def.ActiveRatio,
		Time:      trade.Time,
		OrderID:   trade.OrderID,
	}
	pas := &market.Trade{
		ID:        e.nextTradeID(),
		Symbol:    def.Passive,
		Strategy:  trade.Strategy,
		Direction: trade.Direction.Opposite(),
		Offset:    trade.Offset,
		Price:     pasPrice,
		Volume:    trade.Volume * def.PassiveRatio,
		Time:      trade.Time,
		OrderID:   trade.OrderID,
	}
	return []*market.Trade{trade, act, pas}
}
