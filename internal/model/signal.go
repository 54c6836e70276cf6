package model

import (
	"encoding/json"
	"sort"
	"time"
)

// Side is the constant tag written to the Signal column.
type Side string

// SideSell marks a short entry. The breakdown strategy only sells.
const SideSell Side = "Sell"

// Signal is a trade entry produced by the signal generator.
// SignalTS is the timestamp of the confirmation candle, one bar after the setup.
type Signal struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"signal"`
	SignalTS   time.Time `json:"signal_timestamp"`
	EntryPrice float64   `json:"entry_price"` // setup candle low
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
}

// JSON returns the JSON-encoded signal.
func (s *Signal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// SortSignals orders signals by SignalTS, breaking ties by symbol then entry
// price so that repeated runs produce identical output.
func SortSignals(signals []Signal) {
	sort.SliceStable(signals, func(i, j int) bool {
		a, b := signals[i], signals[j]
		if !a.SignalTS.Equal(b.SignalTS) {
			return a.SignalTS.Before(b.SignalTS)
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.EntryPrice < b.EntryPrice
	})
}
