package model

import "context"

// ── Storage Port Interfaces ──
// These decouple the pipeline from the concrete store (SQLite today).

// CandleStore persists and reloads raw candles keyed by symbol.
type CandleStore interface {
	// SaveCandles replaces the table contents with the given candles.
	SaveCandles(ctx context.Context, table string, bySymbol map[string][]Candle) error

	// LoadCandles returns every stored candle grouped by symbol, ascending by time.
	LoadCandles(ctx context.Context, table string) (map[string][]Candle, error)
}

// SignalStore persists generated signals.
type SignalStore interface {
	SaveSignals(ctx context.Context, table string, signals []Signal) error
}

// OutcomeStore persists and reloads simulated trade outcomes.
type OutcomeStore interface {
	SaveOutcomes(ctx context.Context, table string, outcomes []TradeOutcome) error
	LoadOutcomes(ctx context.Context, table string) ([]TradeOutcome, error)
}

// Store is the full persistence surface used by the pipeline.
type Store interface {
	CandleStore
	SignalStore
	OutcomeStore

	// Close releases underlying resources.
	Close() error
}

// CandleSource fetches one instrument's continuous candle history.
type CandleSource interface {
	Continuous(ctx context.Context, instrumentKey string, from string) ([]Candle, error)
}

// EventSink receives pipeline events. Implementations must not block.
type EventSink interface {
	Publish(ev RunEvent)
}
