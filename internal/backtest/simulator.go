// Package backtest simulates short trades opened at each signal and reports
// how and where each one would have been closed.
package backtest

import (
	"log/slog"
	"time"

	"sma-vol-breakdown/internal/markethours"
	"sma-vol-breakdown/internal/model"
	"sma-vol-breakdown/internal/series"
)

// Simulator runs the forward-scan exit search for each signal.
// It holds no per-run state; Run may be called concurrently.
type Simulator struct {
	calendar markethours.Calendar
	log      *slog.Logger
}

// NewSimulator creates a simulator. A nil logger falls back to slog.Default().
func NewSimulator(cal markethours.Calendar, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		calendar: cal,
		log:      logger.With(slog.String("component", "backtest")),
	}
}

// Run simulates every signal in ascending SignalTS order and returns one
// outcome per resolvable signal. Signals whose series is missing or whose
// timestamp is not in the series are logged and dropped.
func (sim *Simulator) Run(signals []model.Signal, bySymbol map[string]*series.Series) []model.TradeOutcome {
	outcomes := make([]model.TradeOutcome, 0, len(signals))
	if len(signals) == 0 {
		sim.log.Warn("no trading signals, nothing to backtest")
		return outcomes
	}

	ordered := make([]model.Signal, len(signals))
	copy(ordered, signals)
	model.SortSignals(ordered)

	for _, sig := range ordered {
		s := bySymbol[sig.Symbol]
		if s == nil || s.Empty() {
			sim.log.Warn("skipping signal: no candle data",
				slog.String("symbol", sig.Symbol),
				slog.Time("ts", sig.SignalTS))
			continue
		}

		out, ok := sim.Simulate(sig, s)
		if !ok {
			sim.log.Warn("skipping signal: timestamp not found in series",
				slog.String("symbol", sig.Symbol),
				slog.Time("ts", sig.SignalTS))
			continue
		}
		outcomes = append(outcomes, out)
	}

	return outcomes
}

// Simulate closes a single signal against s. ok is false when the signal's
// trigger candle is not in s.
//
// For each candle after the trigger, in order: past the session close → flat
// at the day's last in-session close; high at or above stop → Loss at stop;
// low at or below target → Win at target. Stop is checked before target since
// a bar does not reveal which level printed first.
func (sim *Simulator) Simulate(sig model.Signal, s *series.Series) (model.TradeOutcome, bool) {
	trig, ok := s.IndexOf(sig.SignalTS)
	if !ok {
		return model.TradeOutcome{}, false
	}

	endOfDay := sim.calendar.SessionClose(sig.SignalTS)

	for i := trig + 1; i < s.Len(); i++ {
		c := s.At(i)

		if c.TS.After(endOfDay) {
			return sim.closeAtSession(sig, s, trig, i, endOfDay), true
		}
		if c.High >= sig.StopLoss {
			return model.NewTradeOutcome(sig, c.TS, sig.StopLoss, model.OutcomeLoss), true
		}
		if c.Low <= sig.TakeProfit {
			return model.NewTradeOutcome(sig, c.TS, sig.TakeProfit, model.OutcomeWin), true
		}
	}

	last, _ := s.Last()
	return model.NewTradeOutcome(sig, last.TS, last.Close, model.OutcomeClosedLastData), true
}

// closeAtSession exits at the close of the last candle on the signal's date
// stamped at or before endOfDay. It re-scans that date backwards from the
// first out-of-session candle, so a trigger printed after the close still
// exits at the day's final in-session bar. If the date has no such candle the
// trade is closed at the trigger candle itself.
func (sim *Simulator) closeAtSession(sig model.Signal, s *series.Series, trig, firstAfter int, endOfDay time.Time) model.TradeOutcome {
	for j := firstAfter - 1; j >= 0; j-- {
		c := s.At(j)
		if !sim.calendar.SameDay(sig.SignalTS, c.TS) {
			if c.TS.Before(sig.SignalTS) {
				break
			}
			continue
		}
		if !c.TS.After(endOfDay) {
			return model.NewTradeOutcome(sig, c.TS, c.Close, model.OutcomeClosedEOD)
		}
	}

	tc := s.At(trig)
	return model.NewTradeOutcome(sig, sig.SignalTS, tc.Close, model.OutcomeClosedSignal)
}
