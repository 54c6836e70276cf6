// Package series holds an instrument's ordered candle history with constant-time
// position lookup by timestamp.
package series

import (
	"errors"
	"fmt"
	"time"

	"sma-vol-breakdown/internal/model"
)

// ErrUnorderedCandles is returned when candles are not strictly ascending by time.
var ErrUnorderedCandles = errors.New("candles not strictly ascending by timestamp")

// Series is an immutable, strictly ascending candle sequence for one symbol.
// Safe for concurrent readers.
type Series struct {
	symbol  string
	candles []model.Candle
	pos     map[int64]int // unix nanos → index
}

// New validates ordering and builds the timestamp index. The input slice is copied.
func New(symbol string, candles []model.Candle) (*Series, error) {
	cp := make([]model.Candle, len(candles))
	copy(cp, candles)

	pos := make(map[int64]int, len(cp))
	for i := range cp {
		if i > 0 && !cp[i].TS.After(cp[i-1].TS) {
			return nil, fmt.Errorf("%s at index %d (%s after %s): %w",
				symbol, i, cp[i].TS.Format(time.RFC3339), cp[i-1].TS.Format(time.RFC3339), ErrUnorderedCandles)
		}
		pos[cp[i].TS.UnixNano()] = i
	}

	return &Series{symbol: symbol, candles: cp, pos: pos}, nil
}

// Symbol returns the instrument symbol.
func (s *Series) Symbol() string { return s.symbol }

// Len returns the number of candles.
func (s *Series) Len() int { return len(s.candles) }

// Empty reports whether the series has no candles.
func (s *Series) Empty() bool { return len(s.candles) == 0 }

// At returns the candle at position i. Panics if out of range, like a slice.
func (s *Series) At(i int) model.Candle { return s.candles[i] }

// Last returns the final candle. ok is false for an empty series.
func (s *Series) Last() (model.Candle, bool) {
	if len(s.candles) == 0 {
		return model.Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// IndexOf returns the position of the candle stamped exactly ts.
func (s *Series) IndexOf(ts time.Time) (int, bool) {
	i, ok := s.pos[ts.UnixNano()]
	return i, ok
}

// Closes returns the close prices in series order.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.candles))
	for i := range s.candles {
		out[i] = s.candles[i].Close
	}
	return out
}

// Volumes returns the volumes in series order.
func (s *Series) Volumes() []float64 {
	out := make([]float64, len(s.candles))
	for i := range s.candles {
		out[i] = s.candles[i].Volume
	}
	return out
}
