package model

import (
	"encoding/json"
	"time"
)

// Outcome labels how a simulated trade was closed.
type Outcome string

const (
	OutcomeWin            Outcome = "Win"
	OutcomeLoss           Outcome = "Loss"
	OutcomeClosedEOD      Outcome = "Open (Closed EOD)"
	OutcomeClosedSignal   Outcome = "Open (Closed Signal Candle)"
	OutcomeClosedLastData Outcome = "Open (Closed Last Data)"
)

// Outcomes lists every label in reporting order.
var Outcomes = []Outcome{
	OutcomeWin,
	OutcomeLoss,
	OutcomeClosedEOD,
	OutcomeClosedSignal,
	OutcomeClosedLastData,
}

// IsOpen is true for trades closed by a session or data boundary rather than a price level.
func (o Outcome) IsOpen() bool {
	return o != OutcomeWin && o != OutcomeLoss
}

// TradeOutcome is the simulated result of one Signal.
type TradeOutcome struct {
	Symbol     string    `json:"symbol"`
	SignalTS   time.Time `json:"signal_timestamp"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	ExitTS     time.Time `json:"exit_timestamp"`
	ExitPrice  float64   `json:"exit_price"`
	Outcome    Outcome   `json:"outcome"`
	ProfitLoss float64   `json:"profit_loss"` // short convention: entry - exit
}

// NewTradeOutcome closes sig at the given exit. ProfitLoss is always entry - exit.
func NewTradeOutcome(sig Signal, exitTS time.Time, exitPrice float64, outcome Outcome) TradeOutcome {
	return TradeOutcome{
		Symbol:     sig.Symbol,
		SignalTS:   sig.SignalTS,
		EntryPrice: sig.EntryPrice,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		ExitTS:     exitTS,
		ExitPrice:  exitPrice,
		Outcome:    outcome,
		ProfitLoss: sig.EntryPrice - exitPrice,
	}
}

// JSON returns the JSON-encoded outcome.
func (o *TradeOutcome) JSON() []byte {
	b, _ := json.Marshal(o)
	return b
}
