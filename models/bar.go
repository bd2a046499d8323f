package models

import "time"

const DateLayout = "2006-01-02"

// Bar is a daily candle. Timestamp is in ms.
type Bar struct {
	Timestamp int64   `csv:"timestamp" db:"timestamp"`
	Open      float64 `csv:"open" db:"open"`
	High      float64 `csv:"high" db:"high"`
	Low       float64 `csv:"low" db:"low"`
	Close     float64 `csv:"close" db:"close"`
	Volume    float64 `csv:"volume" db:"volume"`
}

func (b *Bar) Time() time.Time {
	return time.Unix(0, b.Timestamp*int64(time.Millisecond)).UTC()
}

// Day returns the bar time truncated to midnight UTC.
func (b *Bar) Day() time.Time {
	return TruncateDay(b.Time())
}

func NewBar(day time.Time, open, high, low, close, volume float64) *Bar {
	return &Bar{
		Timestamp: TruncateDay(day).UnixNano() / int64(time.Millisecond),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
	}
}

// TruncateDay drops the clock part of t, in UTC.
func TruncateDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func IsWeekend(t time.Time) bool {
	weekday := t.Weekday()
	return weekday == time.Saturday || weekday == time.Sunday
}
