package strategy

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/cta-backtest/internal/market"
)

// fakeTrader records order flow without matching anything.
type fakeTrader struct {
	limits    []limitCall
	stops     []stopCall
	cancelled []string
	rejectAll bool

	nextID     int64
	nextStopID int
}

type limitCall struct {
	kind   string
	symbol string
	price  float64
	volume float64
}

type stopCall struct {
	id        string
	symbol    string
	direction market.Direction
	offset    market.Offset
	trigger   float64
	volume    float64
}

func (f *fakeTrader) limit(kind, symbol string, price, volume float64) (int64, error) {
	if f.rejectAll {
		return 0, ErrNotTrading
	}
	f.limits = append(f.limits, limitCall{kind, symbol, price, volume})
	f.nextID++
	return f.nextID, nil
}

func (f *fakeTrader) Buy(name, symbol string, price, volume float64) (int64, error) {
	return f.limit("buy", symbol, price, volume)
}

func (f *fakeTrader) Sell(name, symbol string, price, volume float64) (int64, error) {
	return f.limit("sell", symbol, price, volume)
}

func (f *fakeTrader) Short(name, symbol string, price, volume float64) (int64, error) {
	return f.limit("short", symbol, price, volume)
}

func (f *fakeTrader) Cover(name, symbol string, price, volume float64) (int64, error) {
	return f.limit("cover", symbol, price, volume)
}

func (f *fakeTrader) CancelOrder(id int64) error { return nil }

func (f *fakeTrader) SendStopOrder(name, symbol string, direction market.Direction, offset market.Offset, trigger, volume float64) (string, error) {
	if f.rejectAll {
		return "", ErrNotTrading
	}
	f.nextStopID++
	id := fmt.Sprintf("%s%d", market.StopOrderPrefix, f.nextStopID)
	f.stops = append(f.stops, stopCall{id, symbol, direction, offset, trigger, volume})
	return id, nil
}

func (f *fakeTrader) CancelStopOrder(id string) error {
	f.cancelled = append(f.cancelled, id)
	return ErrOrderNotFound // exercise the triggered-stop path by default
}

func (f *fakeTrader) LastPrice(symbol string) (float64, bool) { return 0, false }

func barAt(symbol string, close float64) *market.Bar {
	return &market.Bar{
		Symbol: symbol,
		Time:   time.Date(2018, 1, 2, 9, 0, 0, 0, time.UTC),
		Open:   close, High: close + 1, Low: close - 1, Close: close,
	}
}

func TestRegistry_BuildAndTypes(t *testing.T) {
	s, err := Build("double_ma", "dma", "rb1810", &fakeTrader{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &DoubleMA{}, s)

	_, err = Build("nope", "x", "rb1810", &fakeTrader{}, nil)
	assert.ErrorIs(t, err, ErrUnknownType)

	assert.Contains(t, Types(), "double_ma")
	assert.Contains(t, Types(), "channel_break")
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register("double_ma", func(name, symbol string, trader Trader, params map[string]float64) Strategy {
			return &Base{}
		})
	})
}

func TestDoubleMA_GoldenCrossBuys(t *testing.T) {
	tr := &fakeTrader{}
	s := NewDoubleMA("dma", "rb1810", tr, map[string]float64{"fast": 2, "slow": 3, "volume": 2})

	// Falling prices keep fast below slow once both are ready.
	for _, p := range []float64{100, 99, 98, 97} {
		s.OnBar(barAt("rb1810", p))
	}
	require.Empty(t, tr.limits)

	// A sharp rally crosses fast above slow.
	s.OnBar(barAt("rb1810", 110))
	s.OnBar(barAt("rb1810", 120))
	require.NotEmpty(t, tr.limits)
	buy := tr.limits[0]
	assert.Equal(t, "buy", buy.kind)
	assert.Equal(t, "rb1810", buy.symbol)
	assert.Equal(t, 2.0, buy.volume)
}

func TestDoubleMA_DeadCrossReversesLong(t *testing.T) {
	tr := &fakeTrader{}
	s := NewDoubleMA("dma", "rb1810", tr, map[string]float64{"fast": 2, "slow": 3})

	for _, p := range []float64{100, 99, 98, 97, 110, 120} {
		s.OnBar(barAt("rb1810", p))
	}
	require.NotEmpty(t, tr.limits)
	tr.limits = nil

	// Position updates arrive through OnTrade, not submission.
	s.OnTrade(&market.Trade{Symbol: "rb1810", Direction: market.DirectionLong, Volume: 1})

	for _, p := range []float64{90, 80} {
		s.OnBar(barAt("rb1810", p))
	}
	require.Len(t, tr.limits, 2)
	assert.Equal(t, "sell", tr.limits[0].kind)
	assert.Equal(t, 1.0, tr.limits[0].volume)
	assert.Equal(t, "short", tr.limits[1].kind)
}

func TestDoubleMA_IgnoresOtherSymbols(t *testing.T) {
	tr := &fakeTrader{}
	s := NewDoubleMA("dma", "rb1810", tr, map[string]float64{"fast": 2, "slow": 2})
	for i := 0; i < 10; i++ {
		s.OnBar(barAt("hc1810", float64(100+i*10)))
	}
	assert.Empty(t, tr.limits)
}

func TestDoubleMA_RejectionIsNonFatal(t *testing.T) {
	tr := &fakeTrader{rejectAll: true}
	s := NewDoubleMA("dma", "rb1810", tr, map[string]float64{"fast": 2, "slow": 3})
	for _, p := range []float64{100, 99, 98, 97, 110, 120} {
		s.OnBar(barAt("rb1810", p))
	}
	assert.Empty(t, tr.limits)
	assert.Equal(t, 0.0, s.pos)
}

func TestChannelBreak_FlatPlacesBothEntries(t *testing.T) {
	tr := &fakeTrader{}
	s := NewChannelBreak("cb", "rb1810", tr, map[string]float64{"window": 2, "volume": 3})

	s.OnBar(barAt("rb1810", 100))
	require.Empty(t, tr.stops)

	s.OnBar(barAt("rb1810", 110))
	require.Len(t, tr.stops, 2)

	long, short := tr.stops[0], tr.stops[1]
	assert.Equal(t, market.DirectionLong, long.direction)
	assert.Equal(t, market.OffsetOpen, long.offset)
	assert.Equal(t, 111.0, long.trigger) // highest high
	assert.Equal(t, 3.0, long.volume)

	assert.Equal(t, market.DirectionShort, short.direction)
	assert.Equal(t, 99.0, short.trigger) // lowest low
}

func TestChannelBreak_LongPlacesExitStop(t *testing.T) {
	tr := &fakeTrader{}
	s := NewChannelBreak("cb", "rb1810", tr, map[string]float64{"window": 2})

	s.OnBar(barAt("rb1810", 100))
	s.OnBar(barAt("rb1810", 110))
	tr.stops = nil

	s.OnTrade(&market.Trade{Symbol: "rb1810", Direction: market.DirectionLong, Volume: 1})
	s.OnBar(barAt("rb1810", 112))

	require.Len(t, tr.stops, 1)
	exit := tr.stops[0]
	assert.Equal(t, market.DirectionShort, exit.direction)
	assert.Equal(t, market.OffsetClose, exit.offset)
	assert.Equal(t, 109.0, exit.trigger) // lowest low of the window
	assert.Equal(t, 1.0, exit.volume)
}

func TestChannelBreak_RefreshCancelsStaleStops(t *testing.T) {
	tr := &fakeTrader{}
	s := NewChannelBreak("cb", "rb1810", tr, map[string]float64{"window": 2})

	s.OnBar(barAt("rb1810", 100))
	s.OnBar(barAt("rb1810", 110))
	require.Len(t, tr.stops, 2)

	s.OnBar(barAt("rb1810", 105))
	// Both prior stops cancelled before fresh ones go out; the
	// ErrOrderNotFound returned by the fake is tolerated.
	assert.Equal(t, []string{tr.stops[0].id, tr.stops[1].id}, tr.cancelled)
	assert.Len(t, tr.stops, 4)
}
