// Package markethours defines the NSE session calendar: the daily close used to
// flatten intraday trades, calendar-day comparisons, and trading-day checks.
// Every day-boundary rule in the backtester goes through this package.
package markethours

import (
	"fmt"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// NSE session close in IST.
const (
	CloseHour   = 15
	CloseMinute = 30
)

// Clock is a time of day with second precision, stored as the offset from midnight.
type Clock time.Duration

// NewClock builds a Clock from hour and minute.
func NewClock(hour, minute int) Clock {
	return Clock(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// ParseClock parses "HH:MM" (24h). Anything else is an error.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return NewClock(t.Hour(), t.Minute()), nil
}

// ClockOf returns t's time of day in t's own location.
func ClockOf(t time.Time) Clock {
	return Clock(time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond()))
}

// On returns the instant at this clock on t's calendar date, in t's location.
func (c Clock) On(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).Add(time.Duration(c))
}

func (c Clock) String() string {
	d := time.Duration(c)
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// MarshalText renders the clock as "HH:MM".
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText accepts "HH:MM".
func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Calendar holds the session close used for end-of-day exits. Swap it to
// model non-NSE hours.
type Calendar struct {
	Close Clock
}

// DefaultCalendar closes at the NSE cash session close, 15:30.
var DefaultCalendar = Calendar{Close: NewClock(CloseHour, CloseMinute)}

// SessionClose returns the session close on t's calendar date, keeping t's
// timezone offset.
func (c Calendar) SessionClose(t time.Time) time.Time {
	return c.Close.On(t)
}

// SameDay reports whether a and b fall on the same calendar date, both read in a's location.
func (c Calendar) SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// IsWeekday returns true if t is Mon–Fri.
func IsWeekday(t time.Time) bool {
	wd := t.In(IST).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not a holiday.
func IsTradingDay(t time.Time) bool {
	ist := t.In(IST)
	return IsWeekday(ist) && !IsHoliday(ist)
}
