package markethours

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	c, err := ParseClock("11:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != NewClock(11, 30) {
		t.Errorf("expected 11:30, got %s", c)
	}
	if c.String() != "11:30" {
		t.Errorf("expected String()=11:30, got %q", c.String())
	}
}

func TestParseClock_Invalid(t *testing.T) {
	for _, s := range []string{"", "25:00", "11h30", "11:30:00", "abc"} {
		if _, err := ParseClock(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestClockOf_SecondPrecision(t *testing.T) {
	end := NewClock(11, 30)
	onTheMinute := time.Date(2025, 10, 6, 11, 30, 0, 0, IST)
	if ClockOf(onTheMinute) > end {
		t.Error("11:30:00 should be at or before 11:30")
	}
	late := time.Date(2025, 10, 6, 11, 30, 1, 0, IST)
	if ClockOf(late) <= end {
		t.Error("11:30:01 should be after 11:30")
	}
}

func TestSessionClose_KeepsOffset(t *testing.T) {
	ts := time.Date(2025, 10, 6, 9, 20, 0, 0, IST)
	cl := DefaultCalendar.SessionClose(ts)
	want := time.Date(2025, 10, 6, 15, 30, 0, 0, IST)
	if !cl.Equal(want) {
		t.Errorf("expected %v, got %v", want, cl)
	}
	if _, off := cl.Zone(); off != 5*3600+30*60 {
		t.Errorf("expected +05:30 offset, got %d", off)
	}
}

func TestSessionClose_UsesSignalDateNotUTCDate(t *testing.T) {
	// 00:30 IST on Oct 7 is still Oct 6 in UTC.
	ts := time.Date(2025, 10, 7, 0, 30, 0, 0, IST)
	cl := DefaultCalendar.SessionClose(ts)
	if cl.Day() != 7 {
		t.Errorf("expected close on the 7th, got %v", cl)
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2025, 10, 6, 15, 25, 0, 0, IST)
	b := time.Date(2025, 10, 6, 15, 30, 0, 0, IST)
	c := time.Date(2025, 10, 7, 9, 15, 0, 0, IST)
	if !DefaultCalendar.SameDay(a, b) {
		t.Error("expected same day")
	}
	if DefaultCalendar.SameDay(b, c) {
		t.Error("expected different days")
	}
	// Same instant expressed in UTC is compared in a's location.
	if !DefaultCalendar.SameDay(a, b.UTC()) {
		t.Error("expected same day after converting b to UTC")
	}
}

func TestIsTradingDay(t *testing.T) {
	if !IsTradingDay(time.Date(2026, 1, 27, 10, 0, 0, 0, IST)) {
		t.Error("Tuesday 27 Jan 2026 should be a trading day")
	}
	if IsTradingDay(time.Date(2026, 1, 26, 10, 0, 0, 0, IST)) {
		t.Error("Republic Day should not be a trading day")
	}
	if IsTradingDay(time.Date(2026, 1, 31, 10, 0, 0, 0, IST)) {
		t.Error("Saturday should not be a trading day")
	}
}

func TestClock_TextRoundTrip(t *testing.T) {
	var c Clock
	if err := c.UnmarshalText([]byte("09:45")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b, _ := c.MarshalText()
	if string(b) != "09:45" {
		t.Errorf("expected 09:45, got %s", b)
	}
}
