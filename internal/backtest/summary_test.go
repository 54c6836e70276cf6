package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sma-vol-breakdown/internal/model"
)

func trade(symbol string, outcome model.Outcome, pnl float64) model.TradeOutcome {
	return model.TradeOutcome{Symbol: symbol, Outcome: outcome, EntryPrice: 100, ExitPrice: 100 - pnl, ProfitLoss: pnl}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.TotalTrades)
	assert.Zero(t, s.WinRate)
	assert.Zero(t, s.TotalPnL)
	require.NotNil(t, s.ByOutcome)
	assert.Empty(t, s.ByOutcome)
}

func TestSummarize_Counts(t *testing.T) {
	s := Summarize([]model.TradeOutcome{
		trade("SBIN", model.OutcomeWin, 3),
		trade("SBIN", model.OutcomeLoss, -1.2),
		trade("TCS", model.OutcomeWin, 3),
		trade("INFY", model.OutcomeClosedEOD, 0.5),
		trade("INFY", model.OutcomeClosedLastData, -0.3),
	})

	assert.Equal(t, 5, s.TotalTrades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.Equal(t, 2, s.ClosedOpen)
	assert.Equal(t, 3, s.SymbolsTraded)
	assert.InDelta(t, 40.0, s.WinRate, 1e-9)
	assert.InDelta(t, 5.0, s.TotalPnL, 1e-9)
	assert.InDelta(t, 1.0, s.MeanPnL, 1e-9)
	assert.Equal(t, 3.0, s.BestTrade)
	assert.Equal(t, -1.2, s.WorstTrade)
	assert.Equal(t, 1, s.ByOutcome[model.OutcomeClosedEOD])
	assert.Equal(t, 0, s.ByOutcome[model.OutcomeClosedSignal])
	assert.Greater(t, s.StdDevPnL, 0.0)
}

func TestSummarize_WinRateOverAllTrades(t *testing.T) {
	// Open exits count toward the denominator.
	s := Summarize([]model.TradeOutcome{
		trade("A", model.OutcomeWin, 3),
		trade("A", model.OutcomeClosedSignal, 0),
	})
	assert.InDelta(t, 50.0, s.WinRate, 1e-9)
	assert.Zero(t, s.Losses)
}
