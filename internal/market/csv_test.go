package market

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadBarsCSV_ShiftsEndTimeToOpen(t *testing.T) {
	path := writeTempCSV(t, "bars.csv",
		"datetime,open,high,low,close,volume\n"+
			"2018-01-02 09:01:00,100,125,90,110,1200\n")

	bars, err := LoadBarsCSV(path, "rb1810", time.Minute, DayTradingDay)
	require.NoError(t, err)
	require.Len(t, bars, 1)

	b := bars[0]
	assert.Equal(t, "rb1810", b.Symbol)
	assert.Equal(t, time.Date(2018, 1, 2, 9, 0, 0, 0, time.UTC), b.Time)
	assert.Equal(t, 100.0, b.Open)
	assert.Equal(t, 125.0, b.High)
	assert.Equal(t, 90.0, b.Low)
	assert.Equal(t, 110.0, b.Close)
	assert.Equal(t, int64(1200), b.Volume)
	assert.Equal(t, "2018-01-02", b.TradingDay)
}

func TestLoadBarsCSV_SkipsMalformedRows(t *testing.T) {
	path := writeTempCSV(t, "bars.csv",
		"datetime,open,high,low,close,volume\n"+
			"not-a-time,100,125,90,110,1200\n"+
			"2018-01-02 09:01:00,oops,125,90,110,1200\n"+
			"2018-01-02 09:02:00,100,125,90,110,1200\n"+
			"2018-01-02 09:03:00,100,125\n")

	bars, err := LoadBarsCSV(path, "rb1810", time.Minute, nil)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, time.Date(2018, 1, 2, 9, 1, 0, 0, time.UTC), bars[0].Time)
}

func TestLoadBarsCSV_ExplicitTradingDayColumn(t *testing.T) {
	path := writeTempCSV(t, "bars.csv",
		"datetime,open,high,low,close,volume,trading_day\n"+
			"2018-01-02 21:01:00,100,101,99,100,10,20180103\n")

	bars, err := LoadBarsCSV(path, "rb1810", time.Minute, nil)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "2018-01-03", bars[0].TradingDay)
}

func TestLoadBarsCSV_MissingFile(t *testing.T) {
	_, err := LoadBarsCSV(filepath.Join(t.TempDir(), "nope.csv"), "rb1810", time.Minute, nil)
	assert.Error(t, err)
}

func TestLoadTicksCSV(t *testing.T) {
	path := writeTempCSV(t, "ticks.csv",
		"datetime,last,bid1,bid_vol1,ask1,ask_vol1,open_interest\n"+
			"2018-01-02 09:00:00.500000,100.5,100,3,101,4,15000\n"+
			"garbage,1,2,3,4,5\n")

	ticks, err := LoadTicksCSV(path, "rb1810", DayTradingDay)
	require.NoError(t, err)
	require.Len(t, ticks, 1)

	tk := ticks[0]
	assert.Equal(t, 100.5, tk.LastPrice)
	assert.Equal(t, 100.0, tk.BidPrice1)
	assert.Equal(t, 101.0, tk.AskPrice1)
	assert.Equal(t, int64(3), tk.BidVolume1)
	assert.Equal(t, int64(4), tk.AskVolume1)
	assert.Equal(t, 15000.0, tk.OpenInterest)
	assert.Equal(t, "2018-01-02", tk.TradingDay)
}

func TestDefaultTradingDay_NightSessionRollsForward(t *testing.T) {
	// 21:00 on Friday belongs to the next trading day, which is Monday.
	friday := time.Date(2018, 1, 5, 21, 0, 0, 0, time.UTC)
	assert.Equal(t, "2018-01-08", DefaultTradingDay(friday))

	// A daytime timestamp keeps its own date.
	assert.Equal(t, "2018-01-05", DefaultTradingDay(time.Date(2018, 1, 5, 10, 0, 0, 0, time.UTC)))

	// Weeknight rolls to the next calendar day.
	assert.Equal(t, "2018-01-03", DefaultTradingDay(time.Date(2018, 1, 2, 21, 0, 0, 0, time.UTC)))
}
