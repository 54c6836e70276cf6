package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sma-vol-breakdown/internal/markethours"
	"sma-vol-breakdown/internal/model"
	"sma-vol-breakdown/internal/series"
)

var ist = markethours.IST

// day returns 09:15 IST on the given October 2025 date.
func day(d int) time.Time {
	return time.Date(2025, 10, d, 9, 15, 0, 0, ist)
}

func at(d, hh, mm int) time.Time {
	return time.Date(2025, 10, d, hh, mm, 0, 0, ist)
}

// quiet is a non-setup bar: close 90, low below SMA, volume 100.
func quiet(ts time.Time) model.Candle {
	return model.Candle{TS: ts, Open: 90, High: 91, Low: 89, Close: 90, Volume: 100}
}

// warmup fills full 5-minute sessions (09:15–15:25) for each given date.
func warmup(days ...int) []model.Candle {
	var out []model.Candle
	for _, d := range days {
		for ts := day(d); !ts.After(at(d, 15, 25)); ts = ts.Add(5 * time.Minute) {
			out = append(out, quiet(ts))
		}
	}
	return out
}

// setupBar has low 100 (above an SMA_5 near 92) and volume 1000 (well above 5×VOL_100).
func setupBar(ts time.Time) model.Candle {
	return model.Candle{TS: ts, Open: 101, High: 102, Low: 100, Close: 101, Volume: 1000}
}

func bar(ts time.Time, low float64) model.Candle {
	return model.Candle{TS: ts, Open: low + 1, High: low + 2, Low: low, Close: low + 1, Volume: 150}
}

func mustSeries(t *testing.T, symbol string, candles []model.Candle) *series.Series {
	t.Helper()
	s, err := series.New(symbol, candles)
	require.NoError(t, err)
	return s
}

func defaultParams() Params {
	return Params{
		EndTime:       markethours.NewClock(11, 30),
		StopLossPct:   0.012,
		TakeProfitPct: 0.03,
	}
}

func newBreakdown(p Params) *Breakdown {
	return NewBreakdown(p, markethours.DefaultCalendar, nil)
}
