package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/your-org/cta-backtest/pkg/logger"
)

// bar files: datetime,open,high,low,close,volume[,trading_day]
// tick files: datetime,last,bid1,bid_vol1,ask1,ask_vol1[,open_interest]

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999",
	time.RFC3339,
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse time %q with any known format", s)
}

// LoadBarsCSV reads all bars for one symbol into memory. The file's datetime
// column marks the bar's end; the returned Bar.Time is shifted back by
// interval so replay sees the bar at its open. Malformed rows are logged and
// skipped; a missing trading_day column falls back to tradingDay.
func LoadBarsCSV(path, symbol string, interval time.Duration, tradingDay TradingDayFunc) ([]*Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bar file for %s: %w", symbol, err)
	}
	defer file.Close()

	if tradingDay == nil {
		tradingDay = DefaultTradingDay
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read bar header for %s: %w", symbol, err)
	}

	var bars []*Bar
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read bar record for %s: %w", symbol, err)
		}
		if len(record) < 6 {
			logger.Warnf("%s: skipping bar row with %d columns", symbol, len(record))
			continue
		}

		end, err := parseTime(record[0])
		if err != nil {
			logger.Warnf("%s: skipping bar row: %v", symbol, err)
			continue
		}

		vals := make([]float64, 4)
		bad := false
		for i := 0; i < 4; i++ {
			vals[i], err = strconv.ParseFloat(record[1+i], 64)
			if err != nil {
				logger.Warnf("%s: skipping bar row with bad price %q", symbol, record[1+i])
				bad = true
				break
			}
		}
		if bad {
			continue
		}
		volume, err := strconv.ParseFloat(record[5], 64)
		if err != nil {
			logger.Warnf("%s: skipping bar row with bad volume %q", symbol, record[5])
			continue
		}

		bar := &Bar{
			Symbol: symbol,
			Time:   end.Add(-interval),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: int64(volume),
		}
		if len(record) >= 7 && record[6] != "" {
			bar.TradingDay = normalizeTradingDay(record[6])
		} else {
			bar.TradingDay = tradingDay(bar.Time)
		}
		bars = append(bars, bar)
	}

	logger.Infof("loaded %d bars for %s from %s", len(bars), symbol, path)
	return bars, nil
}

// LoadTicksCSV reads all ticks for one symbol into memory, skipping and
// logging malformed rows.
func LoadTicksCSV(path, symbol string, tradingDay TradingDayFunc) ([]*Tick, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tick file for %s: %w", symbol, err)
	}
	defer file.Close()

	if tradingDay == nil {
		tradingDay = DefaultTradingDay
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read tick header for %s: %w", symbol, err)
	}

	var ticks []*Tick
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tick record for %s: %w", symbol, err)
		}
		if len(record) < 6 {
			logger.Warnf("%s: skipping tick row with %d columns", symbol, len(record))
			continue
		}

		ts, err := parseTime(record[0])
		if err != nil {
			logger.Warnf("%s: skipping tick row: %v", symbol, err)
			continue
		}
		last, err1 := strconv.ParseFloat(record[1], 64)
		bid, err2 := strconv.ParseFloat(record[2], 64)
		bidVol, err3 := strconv.ParseFloat(record[3], 64)
		ask, err4 := strconv.ParseFloat(record[4], 64)
		askVol, err5 := strconv.ParseFloat(record[5], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			logger.Warnf("%s: skipping tick row with unparsable fields", symbol)
			continue
		}

		tick := &Tick{
			Symbol:     symbol,
			Time:       ts,
			TradingDay: tradingDay(ts),
			LastPrice:  last,
			BidPrice1:  bid,
			BidVolume1: int64(bidVol),
			AskPrice1:  ask,
			AskVolume1: int64(askVol),
		}
		if len(record) >= 7 && record[6] != "" {
			if oi, err := strconv.ParseFloat(record[6], 64); err == nil {
				tick.OpenInterest = oi
			}
		}
		ticks = append(ticks, tick)
	}

	logger.Infof("loaded %d ticks for %s from %s", len(ticks), symbol, path)
	return ticks, nil
}

// normalizeTradingDay accepts YYYYMMDD or YYYY-MM-DD.
func normalizeTradingDay(s string) string {
	if len(s) == 8 {
		return s[0:4] + "-" + s[4:6] + "-" + s[6:8]
	}
	return s
}
