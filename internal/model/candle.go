package model

import (
	"encoding/json"
	"time"
)

// Candle is one OHLCV bar for a single instrument.
// Prices are in rupees as reported by the broker.
type Candle struct {
	TS           time.Time `json:"ts"` // bar start, timezone-aware (e.g. +05:30)
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Volume       float64   `json:"volume"`
	OpenInterest *float64  `json:"open_interest,omitempty"` // nil when the feed has no OI column
}

// HasOpenInterest reports whether the bar carries an open interest value.
func (c *Candle) HasOpenInterest() bool {
	return c.OpenInterest != nil
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}
