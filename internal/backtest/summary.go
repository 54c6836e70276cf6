package backtest

import (
	"github.com/montanaflynn/stats"

	"sma-vol-breakdown/internal/model"
)

// Summary aggregates a backtest run.
type Summary struct {
	TotalTrades   int                   `json:"total_trades"`
	Wins          int                   `json:"wins"`
	Losses        int                   `json:"losses"`
	ClosedOpen    int                   `json:"closed_open"` // EOD, signal-candle and last-data exits
	WinRate       float64               `json:"win_rate"`    // percent of all trades
	TotalPnL      float64               `json:"total_pnl"`
	MeanPnL       float64               `json:"mean_pnl"`
	StdDevPnL     float64               `json:"stddev_pnl"`
	BestTrade     float64               `json:"best_trade"`
	WorstTrade    float64               `json:"worst_trade"`
	ByOutcome     map[model.Outcome]int `json:"by_outcome"`
	SymbolsTraded int                   `json:"symbols_traded"`
}

// Summarize computes the run summary. An empty input yields a zero Summary
// with an empty ByOutcome map.
func Summarize(outcomes []model.TradeOutcome) Summary {
	sum := Summary{
		TotalTrades: len(outcomes),
		ByOutcome:   make(map[model.Outcome]int, len(model.Outcomes)),
	}
	if len(outcomes) == 0 {
		return sum
	}

	pnl := make(stats.Float64Data, 0, len(outcomes))
	symbols := make(map[string]struct{})
	for _, o := range outcomes {
		sum.ByOutcome[o.Outcome]++
		switch {
		case o.Outcome.IsOpen():
			sum.ClosedOpen++
		case o.Outcome == model.OutcomeWin:
			sum.Wins++
		default:
			sum.Losses++
		}
		pnl = append(pnl, o.ProfitLoss)
		symbols[o.Symbol] = struct{}{}
	}
	sum.SymbolsTraded = len(symbols)
	sum.WinRate = float64(sum.Wins) / float64(sum.TotalTrades) * 100

	// stats only errors on empty input, which is excluded above.
	sum.TotalPnL, _ = pnl.Sum()
	sum.MeanPnL, _ = pnl.Mean()
	sum.StdDevPnL, _ = pnl.StandardDeviation()
	sum.BestTrade, _ = pnl.Max()
	sum.WorstTrade, _ = pnl.Min()

	return sum
}
