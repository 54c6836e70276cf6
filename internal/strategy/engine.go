package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"sma-vol-breakdown/internal/model"
	"sma-vol-breakdown/internal/series"
)

// Engine runs one Strategy over many instruments.
// Per-instrument work shares no mutable state, so it fans out to a worker pool.
type Engine struct {
	strategy Strategy
	workers  int
	log      *slog.Logger

	// OnSignals is called after each instrument with its signal count (optional).
	OnSignals func(symbol string, n int)
}

// NewEngine creates an engine. workers <= 0 uses GOMAXPROCS.
func NewEngine(s Strategy, workers int, logger *slog.Logger) *Engine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		strategy: s,
		workers:  workers,
		log:      logger.With(slog.String("component", "strategy_engine")),
	}
}

type result struct {
	symbol  string
	signals []model.Signal
}

// Run generates signals for every series and returns them flattened and sorted
// by SignalTS. A failing instrument is logged and skipped. Returns ctx.Err() if
// cancelled before all instruments were processed.
func (e *Engine) Run(ctx context.Context, bySymbol map[string]*series.Series) ([]model.Signal, error) {
	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	jobs := make(chan string)
	results := make(chan result, len(symbols))

	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobs {
				sigs, err := e.generate(bySymbol[sym])
				if err != nil {
					e.log.Error("strategy failed for instrument",
						slog.String("symbol", sym),
						slog.String("error", err.Error()))
					continue
				}
				results <- result{symbol: sym, signals: sigs}
			}
		}()
	}

	var cancelled bool
dispatch:
	for _, sym := range symbols {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		select {
		case <-ctx.Done():
			cancelled = true
			break dispatch
		case jobs <- sym:
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	all := make([]model.Signal, 0)
	for r := range results {
		if len(r.signals) > 0 {
			e.log.Info("signals found",
				slog.String("symbol", r.symbol),
				slog.Int("count", len(r.signals)))
		}
		if e.OnSignals != nil {
			e.OnSignals(r.symbol, len(r.signals))
		}
		all = append(all, r.signals...)
	}
	if cancelled {
		return nil, ctx.Err()
	}

	model.SortSignals(all)
	return all, nil
}

// generate isolates a panicking strategy so one bad series cannot stop the batch.
func (e *Engine) generate(s *series.Series) (sigs []model.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", e.strategy.Name(), r)
		}
	}()
	return e.strategy.Generate(s), nil
}
