package market

import "time"

// TradingDayFunc maps a record timestamp to its trading day (YYYY-MM-DD).
// Data files that carry an explicit trading_day column bypass this; the
// policy only applies as a fallback, and callers may substitute their own
// venue calendar.
type TradingDayFunc func(t time.Time) string

// DefaultTradingDay derives the trading day from the timestamp. Records from
// a night session (20:00 onwards) belong to the next weekday's session, and
// weekend timestamps roll forward to Monday.
func DefaultTradingDay(t time.Time) string {
	d := t
	if t.Hour() >= 20 {
		d = d.AddDate(0, 0, 1)
	}
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format("2006-01-02")
}

// DayTradingDay ignores session boundaries and uses the calendar date,
// for 7x24 venues.
func DayTradingDay(t time.Time) string {
	return t.Format("2006-01-02")
}
