package strategy

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"sma-vol-breakdown/internal/indicator"
	"sma-vol-breakdown/internal/markethours"
	"sma-vol-breakdown/internal/model"
	"sma-vol-breakdown/internal/series"
)

// VolumeMultiple is how far above VOL_100 a setup candle's volume must be.
const VolumeMultiple = 5.0

// Params configures the breakdown strategy.
type Params struct {
	EndTime       markethours.Clock // last time of day a setup candle may print
	StopLossPct   float64           // e.g. 0.012 = 1.2% above entry
	TakeProfitPct float64           // e.g. 0.03 = 3% below entry
}

// Validate rejects non-finite or non-positive percentages and out-of-day cutoffs.
func (p Params) Validate() error {
	if !finite(p.StopLossPct) || !finite(p.TakeProfitPct) {
		return fmt.Errorf("percentages must be finite, got stop loss %v, take profit %v", p.StopLossPct, p.TakeProfitPct)
	}
	if p.StopLossPct <= 0 {
		return fmt.Errorf("stop loss pct must be positive, got %v", p.StopLossPct)
	}
	if p.TakeProfitPct <= 0 || p.TakeProfitPct >= 1 {
		return fmt.Errorf("take profit pct must be in (0, 1), got %v", p.TakeProfitPct)
	}
	if p.EndTime < 0 || time.Duration(p.EndTime) >= 24*time.Hour {
		return fmt.Errorf("end time out of range: %v", time.Duration(p.EndTime))
	}
	return nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// Breakdown is the SMA/volume breakdown short setup.
//
// Setup: a candle at or before EndTime whose low sits above SMA_5 while its
// volume exceeds VolumeMultiple × VOL_100. Trigger: the next candle, on the
// same day, trades below the setup low. Entry is the setup low.
type Breakdown struct {
	params   Params
	calendar markethours.Calendar
	log      *slog.Logger
}

// NewBreakdown creates the strategy. A nil logger falls back to slog.Default().
func NewBreakdown(p Params, cal markethours.Calendar, logger *slog.Logger) *Breakdown {
	if logger == nil {
		logger = slog.Default()
	}
	return &Breakdown{
		params:   p,
		calendar: cal,
		log:      logger.With(slog.String("component", "strategy")),
	}
}

func (b *Breakdown) Name() string { return "SMA_VOL_Breakdown" }

// Params returns the configured parameters.
func (b *Breakdown) Params() Params { return b.params }

// Generate scans s for confirmed breakdowns.
func (b *Breakdown) Generate(s *series.Series) []model.Signal {
	if s == nil || s.Empty() {
		return nil
	}

	ov := indicator.Compute(s)
	var signals []model.Signal

	for i := 0; i < s.Len(); i++ {
		setup := s.At(i)
		if markethours.ClockOf(setup.TS) > b.params.EndTime {
			continue
		}
		if !isSetup(setup, ov.SMA5[i], ov.VOL100[i]) {
			continue
		}

		// Resolve the setup's position by timestamp before stepping forward.
		pos, ok := s.IndexOf(setup.TS)
		if !ok {
			b.log.Warn("setup timestamp not found in series",
				slog.String("symbol", s.Symbol()),
				slog.Time("ts", setup.TS))
			continue
		}
		if pos+1 >= s.Len() {
			continue
		}

		next := s.At(pos + 1)
		if !b.calendar.SameDay(setup.TS, next.TS) {
			continue
		}
		if next.Low >= setup.Low {
			continue
		}

		signals = append(signals, b.newSignal(s.Symbol(), setup, next))
	}

	return signals
}

func isSetup(c model.Candle, sma5, vol100 indicator.Point) bool {
	if !sma5.Ready || !vol100.Ready {
		return false
	}
	return c.Low > sma5.Value && c.Volume > VolumeMultiple*vol100.Value
}

func (b *Breakdown) newSignal(symbol string, setup, trigger model.Candle) model.Signal {
	entry := setup.Low
	return model.Signal{
		Symbol:     symbol,
		Side:       model.SideSell,
		SignalTS:   trigger.TS,
		EntryPrice: entry,
		StopLoss:   entry * (1 + b.params.StopLossPct),
		TakeProfit: entry * (1 - b.params.TakeProfitPct),
	}
}
