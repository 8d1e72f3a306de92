// Package engine implements the deterministic replay and matching core of
// the backtester.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/cta-backtest/internal/account"
	"github.com/your-org/cta-backtest/internal/config"
	"github.com/your-org/cta-backtest/internal/market"
	"github.com/your-org/cta-backtest/internal/pnl"
	"github.com/your-org/cta-backtest/internal/position"
	"github.com/your-org/cta-backtest/internal/strategy"
	"github.com/your-org/cta-backtest/pkg/logger"
)

var (
	// ErrDuplicateStrategy rejects registering the same name twice.
	ErrDuplicateStrategy = errors.New("engine: strategy name already registered")
	// ErrNoData aborts a run whose configured data files yield no records.
	ErrNoData = errors.New("engine: no data loaded")
)

type strategyState int

const (
	stateCreated strategyState = iota
	stateInitialized
	stateTrading
	stateStopped
)

type instance struct {
	name   string
	symbol string
	strat  strategy.Strategy
	state  strategyState
}

// record is one replay event, either a bar or a tick.
type record struct {
	time time.Time
	bar  *market.Bar
	tick *market.Tick
}

// Engine is one backtest session. It owns all mutable run state, so
// concurrent runs only need separate Engine values. All methods are invoked
// from the single replay goroutine.
type Engine struct {
	cfg   *config.Config
	RunID string

	rng *rand.Rand

	orderCount int64
	stopCount  int64
	tradeCount int64

	book       *OrderBook
	stopOrders map[string]*market.StopOrder // working
	allStops   map[string]*market.StopOrder
	stopSeq    []string // submission order, for deterministic iteration

	orderOwner map[int64]*instance
	stopOwner  map[string]*instance

	ledger *position.Ledger
	acct   *account.Accountant

	strategies map[string]*instance
	bySymbol   map[string][]*instance
	nameOrder  []string

	prices   map[string]float64
	lastBars map[string]*market.Bar
	now      time.Time
	curSym   string
	curDay   string
	started  bool

	tradingDay market.TradingDayFunc

	pending []*market.Trade
	trades  []*market.Trade
}

// New builds an engine for one run of the given configuration.
func New(cfg *config.Config) *Engine {
	e := &Engine{
		cfg:        cfg,
		RunID:      uuid.NewString(),
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		book:       NewOrderBook(),
		stopOrders: make(map[string]*market.StopOrder),
		allStops:   make(map[string]*market.StopOrder),
		orderOwner: make(map[int64]*instance),
		stopOwner:  make(map[string]*instance),
		strategies: make(map[string]*instance),
		bySymbol:   make(map[string][]*instance),
		prices:     make(map[string]float64),
		lastBars:   make(map[string]*market.Bar),
		tradingDay: market.DefaultTradingDay,
	}
	if cfg.Calendar == "day" {
		e.tradingDay = market.DayTradingDay
	}
	e.ledger = position.NewLedger(func(symbol string) pnl.CostParams {
		sc := cfg.Symbol(symbol)
		return pnl.CostParams{
			CommissionRate:  sc.CommissionRate,
			FixedCommission: sc.FixedCommission,
			Slippage:        sc.Slippage,
			Size:            sc.Size,
		}
	})
	e.acct = account.New(account.Params{
		InitCapital:  cfg.InitCapital,
		UseMargin:    cfg.UseMargin.Bool(),
		PercentLimit: cfg.PercentLimit,
		Size:         func(symbol string) float64 { return cfg.Symbol(symbol).Size },
		MarginRate:   func(symbol string) float64 { return cfg.Symbol(symbol).MarginRate },
		Price:        e.LastPrice,
	})
	return e
}

// AddStrategy registers a strategy under a unique name, subscribed to one
// symbol. Strategies must be registered before Run.
func (e *Engine) AddStrategy(name, symbol string, s strategy.Strategy) error {
	if _, ok := e.strategies[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateStrategy, name)
	}
	inst := &instance{name: name, symbol: symbol, strat: s}
	e.strategies[name] = inst
	e.bySymbol[symbol] = append(e.bySymbol[symbol], inst)
	e.nameOrder = append(e.nameOrder, name)
	return nil
}

// LoadStrategies builds and registers the strategies declared in the run
// configuration, in name order. Overrides take precedence over declared
// params, which lets an optimizer sweep them.
func (e *Engine) LoadStrategies(overrides map[string]float64) error {
	names := make([]string, 0, len(e.cfg.Strategies))
	for name := range e.cfg.Strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sc := e.cfg.Strategies[name]
		params := make(map[string]float64, len(sc.Params)+len(overrides))
		for k, v := range sc.Params {
			params[k] = v
		}
		for k, v := range overrides {
			params[k] = v
		}
		s, err := strategy.Build(sc.Type, name, sc.Symbol, e, params)
		if err != nil {
			return err
		}
		if err := e.AddStrategy(name, sc.Symbol, s); err != nil {
			return err
		}
	}
	return nil
}

// StopStrategy stops one strategy mid-run. Its working orders remain and
// are cancelled at the next day rollover.
func (e *Engine) StopStrategy(name string) error {
	inst, ok := e.strategies[name]
	if !ok {
		return fmt.Errorf("%w: %s", strategy.ErrUnknownStrategy, name)
	}
	if inst.state == stateStopped {
		return nil
	}
	inst.strat.OnStop()
	inst.state = stateStopped
	logger.Infof("strategy %s stopped", name)
	return nil
}

// Accountant exposes the run's capital bookkeeping, for reporting.
func (e *Engine) Accountant() *account.Accountant { return e.acct }

// Ledger exposes the run's open position books.
func (e *Engine) Ledger() *position.Ledger { return e.ledger }

// Trades returns every fill of the run in execution order, spread fills
// included before decomposition.
func (e *Engine) Trades() []*market.Trade { return e.trades }

// Config returns the run configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

func (e *Engine) nextOrderID() int64 {
	e.orderCount++
	return e.orderCount
}

func (e *Engine) nextTradeID() int64 {
	e.tradeCount++
	return e.tradeCount
}

func (e *Engine) nextStopID() string {
	e.stopCount++
	return fmt.Sprintf("%s%d", market.StopOrderPrefix, e.stopCount)
}

func roundTo(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Round(price/tick) * tick
}

// LastPrice reports the most recent traded price seen for symbol.
func (e *Engine) LastPrice(symbol string) (float64, bool) {
	p, ok := e.prices[symbol]
	return p, ok
}

// Buy opens a long position with a limit order.
func (e *Engine) Buy(strategyName, symbol string, price, volume float64) (int64, error) {
	return e.sendLimit(strategyName, symbol, market.DirectionLong, market.OffsetOpen, price, volume)
}

// Sell closes a long position with a limit order.
func (e *Engine) Sell(strategyName, symbol string, price, volume float64) (int64, error) {
	return e.sendLimit(strategyName, symbol, market.DirectionShort, market.OffsetClose, price, volume)
}

// Short opens a short position with a limit order.
func (e *Engine) Short(strategyName, symbol string, price, volume float64) (int64, error) {
	return e.sendLimit(strategyName, symbol, market.DirectionShort, market.OffsetOpen, price, volume)
}

// Cover closes a short position with a limit order.
func (e *Engine) Cover(strategyName, symbol string, price, volume float64) (int64, error) {
	return e.sendLimit(strategyName, symbol, market.DirectionLong, market.OffsetClose, price, volume)
}

func (e *Engine) sendLimit(strategyName, symbol string, direction market.Direction, offset market.Offset, price, volume float64) (int64, error) {
	inst, ok := e.strategies[strategyName]
	if !ok {
		return 0, fmt.Errorf("%w: %s", strategy.ErrUnknownStrategy, strategyName)
	}
	if inst.state != stateTrading {
		return 0, fmt.Errorf("%w: %s", strategy.ErrNotTrading, strategyName)
	}
	order := &market.Order{
		ID:          e.nextOrderID(),
		Symbol:      symbol,
		Strategy:    strategyName,
		Direction:   direction,
		Offset:      offset,
		Price:       roundTo(price, e.cfg.Symbol(symbol).PriceTick),
		TotalVolume: volume,
		Status:      market.StatusNotTraded,
		SubmitTime:  e.now,
	}
	e.book.Add(order)
	e.orderOwner[order.ID] = inst
	logger.Debugf("order submitted: %s", order)
	return order.ID, nil
}

// CancelOrder cancels a working limit order. Cancellation is terminal and
// delivered to the owning strategy through OnOrder.
func (e *Engine) CancelOrder(id int64) error {
	order, ok := e.book.Working(id)
	if !ok {
		return fmt.Errorf("%w: %d", strategy.ErrOrderNotFound, id)
	}
	order.Status = market.StatusCancelled
	order.CancelTime = e.now
	e.book.Unwork(id)
	if inst := e.orderOwner[id]; inst != nil {
		inst.strat.OnOrder(order)
	}
	return nil
}

// SendStopOrder registers a local stop order.
func (e *Engine) SendStopOrder(strategyName, symbol string, direction market.Direction, offset market.Offset, triggerPrice, volume float64) (string, error) {
	inst, ok := e.strategies[strategyName]
	if !ok {
		return "", fmt.Errorf("%w: %s", strategy.ErrUnknownStrategy, strategyName)
	}
	if inst.state != stateTrading {
		return "", fmt.Errorf("%w: %s", strategy.ErrNotTrading, strategyName)
	}
	so := &market.StopOrder{
		ID:           e.nextStopID(),
		Symbol:       symbol,
		Strategy:     strategyName,
		Direction:    direction,
		Offset:       offset,
		TriggerPrice: roundTo(triggerPrice, e.cfg.Symbol(symbol).PriceTick),
		Volume:       volume,
		Status:       market.StopStatusWaiting,
	}
	e.stopOrders[so.ID] = so
	e.allStops[so.ID] = so
	e.stopSeq = append(e.stopSeq, so.ID)
	e.stopOwner[so.ID] = inst
	logger.Debugf("stop order submitted: %s", so)
	return so.ID, nil
}

// CancelStopOrder cancels a waiting stop order.
func (e *Engine) CancelStopOrder(id string) error {
	so, ok := e.stopOrders[id]
	if !ok {
		return fmt.Errorf("%w: %s", strategy.ErrOrderNotFound, id)
	}
	so.Status = market.StopStatusCancelled
	delete(e.stopOrders, id)
	return nil
}

// workingStopIDs lists waiting stop order IDs in submission order,
// restricted to symbol when non-empty.
func (e *Engine) workingStopIDs(symbol string) []string {
	ids := make([]string, 0, len(e.stopOrders))
	for _, id := range e.stopSeq {
		so, ok := e.stopOrders[id]
		if !ok {
			continue
		}
		if symbol == "" || so.Symbol == symbol {
			ids = append(ids, id)
		}
	}
	return ids
}

// Run replays the configured data through the matching core. It returns a
// fatal error when a closing trade has no opposite lots or net capital goes
// negative; recoverable faults are logged and replay continues. Partial
// results stay available through the accessors after a fatal abort.
func (e *Engine) Run(ctx context.Context) error {
	start := time.Now()
	logger.Infof("run %s (%s) starting in %s mode", e.cfg.Name, e.RunID, e.cfg.Mode)

	for _, name := range e.nameOrder {
		inst := e.strategies[name]
		inst.strat.OnInit()
		inst.state = stateInitialized
		logger.Infof("strategy %s initialized on %s", inst.name, inst.symbol)
	}

	records, err := e.loadRecords()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return ErrNoData
	}
	logger.Infof("loaded %d records across %d symbols", len(records), len(e.cfg.Symbols))

	strategyStart := e.cfg.Start()

	for i := 0; i < len(records); {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		j := i + 1
		for j < len(records) && records[j].time.Equal(records[i].time) {
			j++
		}
		group := records[i:j]
		// Records sharing a timestamp replay in seeded random order.
		if len(group) > 1 {
			e.rng.Shuffle(len(group), func(a, b int) {
				group[a], group[b] = group[b], group[a]
			})
		}
		for _, rec := range group {
			if err := e.safeProcess(rec, strategyStart); err != nil {
				return err
			}
		}
		i = j
	}

	if e.started && e.curDay != "" {
		e.snapshotDay(e.curDay)
	}
	for _, name := range e.nameOrder {
		inst := e.strategies[name]
		if inst.state == stateTrading || inst.state == stateInitialized {
			inst.strat.OnStop()
			inst.state = stateStopped
		}
	}

	logger.Infof("run %s finished in %s: %d trades, net capital %.2f",
		e.cfg.Name, time.Since(start).Round(time.Millisecond), len(e.trades), e.acct.NetCapital)
	return nil
}

// safeProcess replays one record, converting panics into errors that end the
// run gracefully with partial results instead of crashing the process.
func (e *Engine) safeProcess(rec record, strategyStart time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("recovered from panic at %s on %s: %v",
				rec.time.Format(time.DateTime), e.curSym, r)
			err = fmt.Errorf("panic while replaying %s on %s: %v",
				rec.time.Format(time.DateTime), e.curSym, r)
		}
	}()
	if rec.bar != nil {
		return e.processBar(rec.bar, strategyStart)
	}
	return e.processTick(rec.tick, strategyStart)
}

func (e *Engine) processBar(bar *market.Bar, strategyStart time.Time) error {
	e.now = bar.Time
	e.curSym = bar.Symbol
	if e.curDay != "" && bar.TradingDay != e.curDay {
		e.rollDay(bar.TradingDay)
	} else if e.curDay == "" {
		e.curDay = bar.TradingDay
	}
	e.lastBars[bar.Symbol] = bar
	e.prices[bar.Symbol] = bar.Close

	if !e.started && !bar.Time.Before(strategyStart) {
		e.startStrategies()
	}

	fills := e.crossLimitOrders(bar.Symbol, limitCrossBar(bar), bar.Time)
	fills = append(fills, e.crossStopOrders(bar.Symbol, stopCrossBar(bar), bar.Time)...)
	e.deliverFills(fills)
	if err := e.settle(); err != nil {
		return err
	}

	for _, inst := range e.bySymbol[bar.Symbol] {
		if inst.state == stateInitialized || inst.state == stateTrading {
			inst.strat.OnBar(bar)
		}
	}
	return nil
}

func (e *Engine) processTick(tick *market.Tick, strategyStart time.Time) error {
	e.now = tick.Time
	e.curSym = tick.Symbol
	if e.curDay != "" && tick.TradingDay != e.curDay {
		e.rollDay(tick.TradingDay)
	} else if e.curDay == "" {
		e.curDay = tick.TradingDay
	}
	e.prices[tick.Symbol] = tick.LastPrice

	if !e.started && !tick.Time.Before(strategyStart) {
		e.startStrategies()
	}

	fills := e.crossLimitOrders(tick.Symbol, limitCrossTick(tick), tick.Time)
	fills = append(fills, e.crossStopOrders(tick.Symbol, stopCrossTick(tick), tick.Time)...)
	e.deliverFills(fills)
	if err := e.settle(); err != nil {
		return err
	}

	for _, inst := range e.bySymbol[tick.Symbol] {
		if inst.state == stateInitialized || inst.state == stateTrading {
			inst.strat.OnTick(tick)
		}
	}
	return nil
}

func (e *Engine) startStrategies() {
	for _, name := range e.nameOrder {
		inst := e.strategies[name]
		if inst.state == stateInitialized {
			inst.strat.OnStart()
			inst.state = stateTrading
			logger.Infof("strategy %s trading from %s", inst.name, e.now.Format(time.DateTime))
		}
	}
	e.started = true
}

// deliverFills records fills, queues their decomposed legs for settlement
// and notifies the owning strategies, trade before order.
func (e *Engine) deliverFills(fills []*market.Trade) {
	for _, trade := range fills {
		e.trades = append(e.trades, trade)
		e.pending = append(e.pending, e.decomposeTrade(trade)...)
		inst := e.orderOwner[trade.OrderID]
		if inst == nil {
			continue
		}
		inst.strat.OnTrade(trade)
		if order, ok := e.book.Get(trade.OrderID); ok {
			inst.strat.OnOrder(order)
		}
	}
}

// settle folds queued trades into the position ledger and the account, then
// refreshes margin occupancy and solvency.
func (e *Engine) settle() error {
	for len(e.pending) > 0 {
		trade := e.pending[0]
		e.pending = e.pending[1:]
		results, err := e.ledger.Apply(trade)
		if err != nil {
			return fmt.Errorf("settling trade %d at %s: %w", trade.ID, trade.Time.Format(time.DateTime), err)
		}
		for _, r := range results {
			e.acct.ApplyResult(r)
		}
	}
	e.acct.UpdateOccupancy(e.ledger)
	return e.acct.CheckSolvency()
}

// rollDay closes out the previous trading day: snapshot the account, cancel
// everything still working and age today's lots.
func (e *Engine) rollDay(newDay string) {
	if e.started {
		e.snapshotDay(e.curDay)
	}
	e.cancelAll()
	e.ledger.RollDay()
	e.curDay = newDay
}

func (e *Engine) snapshotDay(day string) {
	benchmark := 0.0
	if e.cfg.Benchmark != "" {
		benchmark = e.prices[e.cfg.Benchmark]
	}
	e.acct.SnapshotDaily(day, e.ledger, append([]string(nil), e.nameOrder...), benchmark)
}

// cancelAll cancels every working limit and stop order.
func (e *Engine) cancelAll() {
	for _, id := range e.book.WorkingIDs("") {
		order, ok := e.book.Working(id)
		if !ok {
			continue
		}
		order.Status = market.StatusCancelled
		order.CancelTime = e.now
		e.book.Unwork(id)
		if inst := e.orderOwner[id]; inst != nil {
			inst.strat.OnOrder(order)
		}
	}
	for _, id := range e.workingStopIDs("") {
		so := e.stopOrders[id]
		so.Status = market.StopStatusCancelled
		delete(e.stopOrders, id)
	}
	e.stopSeq = e.stopSeq[:0]
}

// loadRecords reads the configured data files and merges them into one
// time-ordered replay stream.
func (e *Engine) loadRecords() ([]record, error) {
	symbols := make([]string, 0, len(e.cfg.Symbols))
	for name := range e.cfg.Symbols {
		symbols = append(symbols, name)
	}
	sort.Strings(symbols)

	dataStart := e.cfg.DataStart()
	dataEnd := e.cfg.End()
	inWindow := func(t time.Time) bool {
		if t.Before(dataStart) {
			return false
		}
		return dataEnd.IsZero() || !t.After(dataEnd)
	}

	var records []record
	for _, symbol := range symbols {
		sc := e.cfg.Symbol(symbol)
		switch e.cfg.Mode {
		case config.ModeTick:
			ticks, err := market.LoadTicksCSV(sc.TickFile, symbol, e.tradingDay)
			if err != nil {
				// Bad data for one symbol drops that symbol, not the run.
				logger.Errorf("skipping %s, ticks unavailable: %v", symbol, err)
				continue
			}
			for _, t := range ticks {
				if inWindow(t.Time) {
					records = append(records, record{time: t.Time, tick: t})
				}
			}
		default:
			bars, err := market.LoadBarsCSV(sc.BarFile, symbol, sc.Interval(), e.tradingDay)
			if err != nil {
				logger.Errorf("skipping %s, bars unavailable: %v", symbol, err)
				continue
			}
			for _, b := range bars {
				if inWindow(b.Time) {
					records = append(records, record{time: b.Time, bar: b})
				}
			}
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].time.Before(records[j].time)
	})
	return records, nil
}
