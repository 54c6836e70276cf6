// Package report renders backtest results for people: CSV exports and a
// console summary table.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/olekukonko/tablewriter"

	"sma-vol-breakdown/internal/backtest"
	"sma-vol-breakdown/internal/model"
)

type signalRow struct {
	Symbol          string  `csv:"Symbol"`
	Signal          string  `csv:"Signal"`
	SignalTimestamp string  `csv:"Signal_Timestamp"`
	EntryPrice      float64 `csv:"Entry_Price"`
	StopLoss        float64 `csv:"Stop_Loss"`
	TakeProfit      float64 `csv:"Take_Profit"`
}

type outcomeRow struct {
	Symbol          string  `csv:"Symbol"`
	SignalTimestamp string  `csv:"Signal_Timestamp"`
	EntryPrice      float64 `csv:"Entry_Price"`
	StopLoss        float64 `csv:"Stop_Loss"`
	TakeProfit      float64 `csv:"Take_Profit"`
	ExitTimestamp   string  `csv:"Exit_Timestamp"`
	ExitPrice       float64 `csv:"Exit_Price"`
	Outcome         string  `csv:"Outcome"`
	ProfitLoss      float64 `csv:"Profit_Loss"`
}

const tsLayout = "2006-01-02 15:04:05-07:00"

// WriteSignalsCSV writes signals with the same columns as the signals table.
func WriteSignalsCSV(w io.Writer, signals []model.Signal) error {
	rows := make([]*signalRow, 0, len(signals))
	for _, s := range signals {
		rows = append(rows, &signalRow{
			Symbol:          s.Symbol,
			Signal:          string(s.Side),
			SignalTimestamp: s.SignalTS.Format(tsLayout),
			EntryPrice:      s.EntryPrice,
			StopLoss:        s.StopLoss,
			TakeProfit:      s.TakeProfit,
		})
	}
	return gocsv.Marshal(&rows, w)
}

// WriteOutcomesCSV writes outcomes with the same columns as the results table.
func WriteOutcomesCSV(w io.Writer, outcomes []model.TradeOutcome) error {
	rows := make([]*outcomeRow, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, &outcomeRow{
			Symbol:          o.Symbol,
			SignalTimestamp: o.SignalTS.Format(tsLayout),
			EntryPrice:      o.EntryPrice,
			StopLoss:        o.StopLoss,
			TakeProfit:      o.TakeProfit,
			ExitTimestamp:   o.ExitTS.Format(tsLayout),
			ExitPrice:       o.ExitPrice,
			Outcome:         string(o.Outcome),
			ProfitLoss:      o.ProfitLoss,
		})
	}
	return gocsv.Marshal(&rows, w)
}

// ExportRun writes signals_<stamp>.csv and results_<stamp>.csv under dir and
// returns their paths.
func ExportRun(dir string, at time.Time, signals []model.Signal, outcomes []model.TradeOutcome) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	stamp := at.Format("20060102_150405")

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"signals_" + stamp + ".csv", func(w io.Writer) error { return WriteSignalsCSV(w, signals) }},
		{"results_" + stamp + ".csv", func(w io.Writer) error { return WriteOutcomesCSV(w, outcomes) }},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		p := filepath.Join(dir, f.name)
		if err := writeFile(p, f.write); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// PrintSummary renders the run summary as two tables: headline figures and
// the per-outcome breakdown.
func PrintSummary(w io.Writer, strategy string, s backtest.Summary) {
	fmt.Fprintf(w, "\n--- Backtest Summary for %s ---\n", strategy)

	head := tablewriter.NewWriter(w)
	head.SetHeader([]string{"Metric", "Value"})
	head.Append([]string{"Total Trades", strconv.Itoa(s.TotalTrades)})
	head.Append([]string{"Wins", strconv.Itoa(s.Wins)})
	head.Append([]string{"Losses", strconv.Itoa(s.Losses)})
	head.Append([]string{"Closed Open", strconv.Itoa(s.ClosedOpen)})
	head.Append([]string{"Win Rate", fmt.Sprintf("%.2f%%", s.WinRate)})
	head.Append([]string{"Overall P/L (per share)", fmt.Sprintf("%.2f", s.TotalPnL)})
	head.Append([]string{"Mean P/L", fmt.Sprintf("%.4f", s.MeanPnL)})
	head.Append([]string{"Std Dev P/L", fmt.Sprintf("%.4f", s.StdDevPnL)})
	head.Append([]string{"Best Trade", fmt.Sprintf("%.2f", s.BestTrade)})
	head.Append([]string{"Worst Trade", fmt.Sprintf("%.2f", s.WorstTrade)})
	head.Append([]string{"Symbols Traded", strconv.Itoa(s.SymbolsTraded)})
	head.Render()

	if s.TotalTrades == 0 {
		return
	}

	by := tablewriter.NewWriter(w)
	by.SetHeader([]string{"Outcome", "Trades"})
	for _, o := range outcomesInOrder(s.ByOutcome) {
		by.Append([]string{string(o), strconv.Itoa(s.ByOutcome[o])})
	}
	by.Render()
}

// outcomesInOrder lists known outcomes first, then any others alphabetically.
func outcomesInOrder(counts map[model.Outcome]int) []model.Outcome {
	out := make([]model.Outcome, 0, len(counts))
	known := make(map[model.Outcome]bool, len(model.Outcomes))
	for _, o := range model.Outcomes {
		known[o] = true
		if counts[o] > 0 {
			out = append(out, o)
		}
	}
	var extra []model.Outcome
	for o := range counts {
		if !known[o] {
			extra = append(extra, o)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}
