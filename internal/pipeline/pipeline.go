// Package pipeline runs the three backtest stages end to end:
// fetch and store candles, generate signals, simulate trades.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sma-vol-breakdown/internal/backtest"
	"sma-vol-breakdown/internal/logger"
	"sma-vol-breakdown/internal/metrics"
	"sma-vol-breakdown/internal/model"
	"sma-vol-breakdown/internal/notification"
	"sma-vol-breakdown/internal/series"
	"sma-vol-breakdown/internal/strategy"
)

// Stage names used in events, logs and metrics.
const (
	StageFetch    = "fetch"
	StageSignals  = "signals"
	StageBacktest = "backtest"
)

// ErrNoData is returned when the fetch stage produced no candles at all.
var ErrNoData = errors.New("no candle data fetched for any instrument")

// Config names the tables and inputs of one pipeline.
type Config struct {
	StrategyName string
	RawTable     string
	SignalsTable string
	ResultsTable string

	// FromDate returns the first date (YYYY-MM-DD) to fetch; evaluated per run.
	FromDate func() string

	// SkipFetch runs the signal and backtest stages on already-stored candles.
	SkipFetch bool

	// Workers for signal generation; 0 = GOMAXPROCS.
	Workers int
}

// Deps are the collaborators a pipeline needs. Events, Metrics and Notifier are optional.
type Deps struct {
	Universe  func() ([]model.Instrument, error)
	Source    model.CandleSource
	Store     model.Store
	Strategy  strategy.Strategy
	Simulator *backtest.Simulator

	Events   model.EventSink
	Metrics  *metrics.Metrics
	Notifier notification.Notifier
	Logger   *slog.Logger
}

// Report is everything a run produced.
type Report struct {
	RunID       string               `json:"run_id"`
	StartedAt   time.Time            `json:"started_at"`
	FinishedAt  time.Time            `json:"finished_at"`
	Instruments int                  `json:"instruments"`
	Fetched     int                  `json:"fetched"`
	Candles     int                  `json:"candles"`
	Signals     []model.Signal       `json:"signals"`
	Outcomes    []model.TradeOutcome `json:"outcomes"`
	Summary     backtest.Summary     `json:"summary"`
}

// Pipeline runs one backtest end to end.
type Pipeline struct {
	cfg  Config
	deps Deps
	log  *slog.Logger
	now  func() time.Time
}

// New creates a pipeline.
func New(cfg Config, deps Deps) *Pipeline {
	lg := deps.Logger
	if lg == nil {
		lg = slog.Default()
	}
	if deps.Notifier == nil {
		deps.Notifier = notification.NewLogNotifier()
	}
	return &Pipeline{
		cfg:  cfg,
		deps: deps,
		log:  lg.With(slog.String("component", "pipeline")),
		now:  time.Now,
	}
}

// Run executes the stages in order. The run ID is taken from ctx
// (logger.WithRunID) or generated.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	runID := logger.RunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logger.WithRunID(ctx, runID)
	}
	log := p.log.With(logger.LogWithRun(ctx)...)

	rep := &Report{
		RunID:     runID,
		StartedAt: p.now(),
		Signals:   []model.Signal{},
		Outcomes:  []model.TradeOutcome{},
		Summary:   backtest.Summarize(nil),
	}
	log.Info("backtest run started", slog.Bool("skip_fetch", p.cfg.SkipFetch))
	p.emit(runID, model.EventRunStarted, "", "run started", nil)

	err := p.run(ctx, log, rep)
	rep.FinishedAt = p.now()

	if err != nil {
		log.Error("backtest run failed", slog.String("error", err.Error()))
		p.emit(runID, model.EventRunFailed, "", err.Error(), nil)
		p.countRun("failed")
		p.notify(runID, notification.Alert{
			Level:   notification.AlertCritical,
			Title:   p.cfg.StrategyName + " backtest failed",
			Message: err.Error(),
		})
		return rep, err
	}

	s := rep.Summary
	log.Info("backtest run finished",
		slog.Int("trades", s.TotalTrades),
		slog.Int("wins", s.Wins),
		slog.Int("losses", s.Losses),
		slog.Float64("win_rate", s.WinRate),
		slog.Float64("total_pnl", s.TotalPnL),
		slog.Duration("elapsed", rep.FinishedAt.Sub(rep.StartedAt)))
	p.emit(runID, model.EventRunFinished, "", "run finished", s)
	p.countRun("success")
	if p.deps.Metrics != nil {
		p.deps.Metrics.LastRunPnL.Set(s.TotalPnL)
	}
	p.notify(runID, notification.Alert{
		Level: notification.AlertInfo,
		Title: p.cfg.StrategyName + " backtest finished",
		Message: fmt.Sprintf("%d signals, %d trades, %d wins, %d losses, win rate %.2f%%, P/L %.2f",
			len(rep.Signals), s.TotalTrades, s.Wins, s.Losses, s.WinRate, s.TotalPnL),
	})
	return rep, nil
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, rep *Report) error {
	if !p.cfg.SkipFetch {
		if err := p.stage(ctx, log, rep.RunID, StageFetch, func() (any, error) {
			return p.fetch(ctx, log, rep)
		}); err != nil {
			return err
		}
	} else {
		log.Info("skipping fetch stage, using stored candles", slog.String("table", p.cfg.RawTable))
	}

	var bySymbol map[string]*series.Series
	if err := p.stage(ctx, log, rep.RunID, StageSignals, func() (any, error) {
		var err error
		bySymbol, err = p.signals(ctx, log, rep)
		return map[string]int{"series": len(bySymbol), "signals": len(rep.Signals)}, err
	}); err != nil {
		return err
	}

	if len(rep.Signals) == 0 {
		log.Info("no signals generated, skipping backtest stage")
		return nil
	}

	return p.stage(ctx, log, rep.RunID, StageBacktest, func() (any, error) {
		return p.backtest(ctx, rep, bySymbol)
	})
}

// stage wraps fn with events, timing and cancellation checks.
func (p *Pipeline) stage(ctx context.Context, log *slog.Logger, runID, name string, fn func() (any, error)) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s stage: %w", name, err)
	}
	log.Info("stage started", slog.String("stage", name))
	p.emit(runID, model.EventStageStarted, name, "", nil)
	start := time.Now()

	data, err := fn()
	elapsed := time.Since(start)
	if p.deps.Metrics != nil {
		p.deps.Metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	}
	if err != nil {
		return fmt.Errorf("%s stage: %w", name, err)
	}

	log.Info("stage finished", slog.String("stage", name), slog.Duration("elapsed", elapsed))
	p.emit(runID, model.EventStageFinished, name, "", data)
	return nil
}

func (p *Pipeline) fetch(ctx context.Context, log *slog.Logger, rep *Report) (any, error) {
	instruments, err := p.deps.Universe()
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}
	rep.Instruments = len(instruments)

	from := p.cfg.FromDate()
	log.Info("fetching candles", slog.Int("instruments", len(instruments)), slog.String("from", from))

	bySymbol := make(map[string][]model.Candle, len(instruments))
	for _, inst := range instruments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		candles, err := p.deps.Source.Continuous(ctx, inst.Key(), from)
		if err != nil {
			log.Warn("fetch failed",
				slog.String("symbol", inst.Symbol),
				slog.String("key", inst.Key()),
				slog.String("error", err.Error()))
			p.countInstrument("error")
			continue
		}
		if len(candles) == 0 {
			log.Warn("no candles returned", slog.String("symbol", inst.Symbol))
			p.countInstrument("empty")
			continue
		}
		bySymbol[inst.Symbol] = candles
		rep.Candles += len(candles)
		p.countInstrument("ok")
		if p.deps.Metrics != nil {
			p.deps.Metrics.CandlesFetched.Add(float64(len(candles)))
		}
	}
	rep.Fetched = len(bySymbol)

	if len(bySymbol) == 0 {
		return nil, ErrNoData
	}
	if err := p.deps.Store.SaveCandles(ctx, p.cfg.RawTable, bySymbol); err != nil {
		return nil, fmt.Errorf("save candles: %w", err)
	}
	return map[string]int{"instruments": rep.Instruments, "fetched": rep.Fetched, "candles": rep.Candles}, nil
}

func (p *Pipeline) signals(ctx context.Context, log *slog.Logger, rep *Report) (map[string]*series.Series, error) {
	raw, err := p.deps.Store.LoadCandles(ctx, p.cfg.RawTable)
	if err != nil {
		return nil, fmt.Errorf("load candles: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNoData
	}

	bySymbol := make(map[string]*series.Series, len(raw))
	for sym, candles := range raw {
		s, err := series.New(sym, candles)
		if err != nil {
			log.Warn("skipping invalid series", slog.String("symbol", sym), slog.String("error", err.Error()))
			continue
		}
		bySymbol[sym] = s
	}

	engine := strategy.NewEngine(p.deps.Strategy, p.cfg.Workers, log)
	signals, err := engine.Run(ctx, bySymbol)
	if err != nil {
		return nil, err
	}
	rep.Signals = signals
	if p.deps.Metrics != nil {
		p.deps.Metrics.SignalsTotal.Add(float64(len(signals)))
	}
	log.Info("signals generated", slog.Int("count", len(signals)))

	if err := p.deps.Store.SaveSignals(ctx, p.cfg.SignalsTable, signals); err != nil {
		return nil, fmt.Errorf("save signals: %w", err)
	}
	return bySymbol, nil
}

func (p *Pipeline) backtest(ctx context.Context, rep *Report, bySymbol map[string]*series.Series) (any, error) {
	rep.Outcomes = p.deps.Simulator.Run(rep.Signals, bySymbol)
	rep.Summary = backtest.Summarize(rep.Outcomes)

	if p.deps.Metrics != nil {
		for o, n := range rep.Summary.ByOutcome {
			p.deps.Metrics.TradesTotal.WithLabelValues(string(o)).Add(float64(n))
		}
	}
	if err := p.deps.Store.SaveOutcomes(ctx, p.cfg.ResultsTable, rep.Outcomes); err != nil {
		return nil, fmt.Errorf("save outcomes: %w", err)
	}
	return map[string]int{"trades": len(rep.Outcomes)}, nil
}

func (p *Pipeline) emit(runID string, typ model.EventType, stage, msg string, data any) {
	if p.deps.Events == nil {
		return
	}
	ev := model.RunEvent{Type: typ, RunID: runID, Stage: stage, Message: msg, TS: p.now()}
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			ev.Data = b
		}
	}
	p.deps.Events.Publish(ev)
}

func (p *Pipeline) notify(runID string, a notification.Alert) {
	a.RunID = runID
	// The run context may already be cancelled; delivery gets its own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := p.deps.Notifier.Send(ctx, a); err != nil {
		p.log.Warn("notification failed", slog.String("run_id", runID), slog.String("error", err.Error()))
	}
}

func (p *Pipeline) countRun(result string) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.RunsTotal.WithLabelValues(result).Inc()
	}
}

func (p *Pipeline) countInstrument(result string) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.InstrumentsTotal.WithLabelValues(result).Inc()
	}
}
