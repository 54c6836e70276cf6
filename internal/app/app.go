// Package app assembles the long-lived components shared by the backtest CLI
// and the trigger server.
package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"sma-vol-breakdown/config"
	"sma-vol-breakdown/internal/backtest"
	"sma-vol-breakdown/internal/marketdata"
	"sma-vol-breakdown/internal/markethours"
	"sma-vol-breakdown/internal/metrics"
	"sma-vol-breakdown/internal/model"
	"sma-vol-breakdown/internal/notification"
	"sma-vol-breakdown/internal/pipeline"
	"sma-vol-breakdown/internal/store/sqlite"
	"sma-vol-breakdown/internal/strategy"
	"sma-vol-breakdown/internal/universe"
	"sma-vol-breakdown/pkg/upstox"
)

// Components are opened once per process.
type Components struct {
	Config   *config.Config
	Log      *slog.Logger
	Store    *sqlite.Store
	Upstox   *upstox.Client
	Metrics  *metrics.Metrics
	Health   *metrics.HealthStatus
	Notifier notification.Notifier
}

// New opens the SQLite store and builds the broker client, metrics and
// notifier. reg nil registers metrics on the default registry.
func New(cfg *config.Config, reg prometheus.Registerer, lg *slog.Logger) (*Components, error) {
	if lg == nil {
		lg = slog.Default()
	}
	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
	}

	c := &Components{
		Config:   cfg,
		Log:      lg,
		Store:    store,
		Metrics:  metrics.NewMetrics(reg),
		Health:   metrics.NewHealthStatus(),
		Notifier: notification.New(cfg.WebhookURL, cfg.TelegramBotToken, cfg.TelegramChatID),
		Upstox: upstox.NewClient(upstox.Config{
			AccessToken: cfg.UpstoxAccessToken,
			BaseURL:     cfg.UpstoxBaseURL,
		}),
	}
	c.Health.AddProbe(metrics.SQLiteProbe(store.DB()))
	c.watchBreaker()
	return c, nil
}

func (c *Components) watchBreaker() {
	b := c.Upstox.Breaker()
	prev := b.OnStateChange
	c.Health.SetUpstoxBreaker(b.CurrentState().String())
	b.OnStateChange = func(from, to upstox.State) {
		if prev != nil {
			prev(from, to)
		}
		c.Metrics.UpstoxBreakerState.Set(float64(to))
		if to == upstox.StateOpen {
			c.Metrics.UpstoxBreakerTrips.Inc()
		}
		c.Health.SetUpstoxBreaker(to.String())
	}
}

// Pipeline builds a pipeline over the configured universe, broker and store.
// events may be nil.
func (c *Components) Pipeline(skipFetch bool, events model.EventSink) *pipeline.Pipeline {
	cfg := c.Config
	fetcher := marketdata.NewFetcher(c.Upstox, cfg.IntervalUnit, cfg.IntervalValue, cfg.Location, c.Log)

	return pipeline.New(pipeline.Config{
		StrategyName: cfg.StrategyName,
		RawTable:     config.RawCandleTable,
		SignalsTable: cfg.SignalsTable(),
		ResultsTable: cfg.ResultsTable(),
		FromDate:     func() string { return cfg.DataStartDate(time.Now()) },
		SkipFetch:    skipFetch,
		Workers:      cfg.Workers,
	}, pipeline.Deps{
		Universe:  func() ([]model.Instrument, error) { return universe.Load(cfg.StocksCSVPath) },
		Source:    fetcher,
		Store:     c.Store,
		Strategy:  strategy.NewBreakdown(cfg.Strategy, markethours.DefaultCalendar, c.Log),
		Simulator: backtest.NewSimulator(markethours.DefaultCalendar, c.Log),
		Events:    events,
		Metrics:   c.Metrics,
		Notifier:  c.Notifier,
		Logger:    c.Log,
	})
}

// Close releases the store.
func (c *Components) Close() error {
	return c.Store.Close()
}
