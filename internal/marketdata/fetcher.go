// Package marketdata builds continuous candle series from the broker's
// historical and intraday endpoints.
package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sma-vol-breakdown/internal/markethours"
	"sma-vol-breakdown/internal/model"
)

// HistoryAPI is the subset of the Upstox client the fetcher needs.
type HistoryAPI interface {
	HistoricalCandles(ctx context.Context, instrumentKey, unit string, interval int, to, from string) ([]model.Candle, error)
	IntradayCandles(ctx context.Context, instrumentKey, unit string, interval int) ([]model.Candle, error)
}

// Fetcher implements model.CandleSource.
type Fetcher struct {
	api      HistoryAPI
	unit     string
	interval int
	loc      *time.Location
	log      *slog.Logger

	now func() time.Time
}

// NewFetcher creates a fetcher for the given bar size, with "today" and
// "yesterday" evaluated in loc.
func NewFetcher(api HistoryAPI, unit string, interval int, loc *time.Location, logger *slog.Logger) *Fetcher {
	if loc == nil {
		loc = markethours.IST
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		api:      api,
		unit:     unit,
		interval: interval,
		loc:      loc,
		log:      logger.With(slog.String("component", "fetcher")),
		now:      time.Now,
	}
}

// Continuous returns candles from `from` (YYYY-MM-DD) up to now: completed
// days from the historical endpoint and today's bars from the intraday one.
func (f *Fetcher) Continuous(ctx context.Context, instrumentKey string, from string) ([]model.Candle, error) {
	start, err := time.ParseInLocation("2006-01-02", from, f.loc)
	if err != nil {
		return nil, fmt.Errorf("from date %q: %w", from, err)
	}

	now := f.now().In(f.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, f.loc)
	yesterday := today.AddDate(0, 0, -1)

	var segments [][]model.Candle

	if !start.After(yesterday) {
		hist, err := f.api.HistoricalCandles(ctx, instrumentKey, f.unit, f.interval,
			yesterday.Format("2006-01-02"), start.Format("2006-01-02"))
		if err != nil {
			return nil, fmt.Errorf("historical %s: %w", instrumentKey, err)
		}
		segments = append(segments, hist)
	}

	// Special sessions (e.g. Muhurat trading) fall on days the holiday
	// table marks closed, so intraday is always asked for.
	intra, err := f.api.IntradayCandles(ctx, instrumentKey, f.unit, f.interval)
	if err != nil {
		return nil, fmt.Errorf("intraday %s: %w", instrumentKey, err)
	}
	intra = onDate(intra, today)
	if len(intra) > 0 && !markethours.IsTradingDay(today) {
		f.log.Info("intraday session on a non-trading day",
			slog.String("instrument", instrumentKey),
			slog.String("date", today.Format("2006-01-02")),
			slog.Int("candles", len(intra)))
	}
	segments = append(segments, intra)

	return Stitch(segments...), nil
}

// onDate keeps candles whose date, in day's location, equals day's date.
func onDate(candles []model.Candle, day time.Time) []model.Candle {
	y, m, d := day.Date()
	out := candles[:0:0]
	for _, c := range candles {
		cy, cm, cd := c.TS.In(day.Location()).Date()
		if cy == y && cm == m && cd == d {
			out = append(out, c)
		}
	}
	return out
}
