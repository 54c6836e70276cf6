// Package strategy turns candle series into discrete trade signals.
//
// A Strategy is a pure function of one instrument's series. The Engine runs a
// Strategy across a universe of series in parallel and merges the results into
// one globally time-ordered signal list, ready for simulation.
package strategy

import (
	"sma-vol-breakdown/internal/model"
	"sma-vol-breakdown/internal/series"
)

// Strategy is the interface that all signal generators must implement.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// Generate returns the signals for one instrument in setup order.
	// Must not mutate s and must be safe to call concurrently.
	Generate(s *series.Series) []model.Signal
}
