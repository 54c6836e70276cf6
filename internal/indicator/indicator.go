// Package indicator provides trailing-window statistics over candle series.
//
// Windows report readiness explicitly: a value computed before the window is
// full is never exposed as a number, so callers cannot mistake warm-up for zero.
package indicator

// Indicator is a streaming single-value statistic.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA_5", "VOL_100").
	Name() string

	// Update feeds the next observation.
	Update(v float64)

	// Value returns the current value. Meaningless unless Ready.
	Value() float64

	// Ready returns true once the window is full.
	Ready() bool
}

// Point is one position of an overlay aligned with a candle series.
type Point struct {
	Value float64
	Ready bool
}
