package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"sma-vol-breakdown/internal/markethours"
	"sma-vol-breakdown/internal/model"
)

type memStore struct {
	mu       sync.Mutex
	candles  map[string]map[string][]model.Candle
	signals  map[string][]model.Signal
	outcomes map[string][]model.TradeOutcome
	saveErr  error
}

func newMemStore() *memStore {
	return &memStore{
		candles:  map[string]map[string][]model.Candle{},
		signals:  map[string][]model.Signal{},
		outcomes: map[string][]model.TradeOutcome{},
	}
}

func (m *memStore) SaveCandles(_ context.Context, table string, by map[string][]model.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.candles[table] = by
	return nil
}

func (m *memStore) LoadCandles(_ context.Context, table string) (map[string][]model.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	by, ok := m.candles[table]
	if !ok {
		return nil, errors.New("no such table: " + table)
	}
	return by, nil
}

func (m *memStore) SaveSignals(_ context.Context, table string, s []model.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals[table] = s
	return nil
}

func (m *memStore) SaveOutcomes(_ context.Context, table string, o []model.TradeOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[table] = o
	return nil
}

func (m *memStore) LoadOutcomes(_ context.Context, table string) ([]model.TradeOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[table], nil
}

func (m *memStore) Close() error { return nil }

type fakeSource struct {
	byKey map[string][]model.Candle
	err   map[string]error
	froms []string
}

func (f *fakeSource) Continuous(_ context.Context, key, from string) ([]model.Candle, error) {
	f.froms = append(f.froms, from)
	if err := f.err[key]; err != nil {
		return nil, err
	}
	return f.byKey[key], nil
}

type eventLog struct {
	mu     sync.Mutex
	events []model.RunEvent
}

func (e *eventLog) Publish(ev model.RunEvent) {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
}

func (e *eventLog) types() []model.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.EventType, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.Type
	}
	return out
}

// breakdownCandles builds one day of 5-minute bars that yields exactly one
// confirmed breakdown (entry 105) followed by a take-profit hit.
func breakdownCandles() []model.Candle {
	start := time.Date(2025, 10, 3, 2, 0, 0, 0, markethours.IST)
	out := make([]model.Candle, 0, 103)
	for i := 0; i < 100; i++ {
		out = append(out, model.Candle{
			TS: start.Add(time.Duration(i) * 5 * time.Minute), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000,
		})
	}
	ts := func(i int) time.Time { return start.Add(time.Duration(i) * 5 * time.Minute) }
	out = append(out,
		model.Candle{TS: ts(100), Open: 106, High: 112, Low: 105, Close: 110, Volume: 20000}, // setup
		model.Candle{TS: ts(101), Open: 105, High: 105.5, Low: 104, Close: 104.5, Volume: 1000},
		model.Candle{TS: ts(102), Open: 104, High: 104, Low: 101, Close: 101.5, Volume: 1000},
	)
	return out
}

// flatCandles never produces a setup.
func flatCandles() []model.Candle {
	start := time.Date(2025, 10, 3, 9, 15, 0, 0, markethours.IST)
	out := make([]model.Candle, 0, 10)
	for i := 0; i < 10; i++ {
		out = append(out, model.Candle{
			TS: start.Add(time.Duration(i) * 5 * time.Minute), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1,
		})
	}
	return out
}
