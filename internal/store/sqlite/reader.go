package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sma-vol-breakdown/internal/model"
)

// LoadCandles returns the table's candles grouped by symbol, ascending by time.
func (s *Store) LoadCandles(ctx context.Context, table string) (map[string][]model.Candle, error) {
	if err := ValidTableName(table); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT symbol, ts, open, high, low, close, volume, open_interest
		FROM "%s"
		ORDER BY symbol ASC, ts_unix ASC
	`, table))
	if err != nil {
		return nil, fmt.Errorf("sqlite query %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[string][]model.Candle)
	for rows.Next() {
		var (
			sym, ts string
			c       model.Candle
			oi      sql.NullFloat64
		)
		if err := rows.Scan(&sym, &ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &oi); err != nil {
			return nil, fmt.Errorf("sqlite scan %s: %w", table, err)
		}
		if c.TS, err = parseTS(ts); err != nil {
			return nil, fmt.Errorf("sqlite %s: %w", table, err)
		}
		if oi.Valid {
			v := oi.Float64
			c.OpenInterest = &v
		}
		out[sym] = append(out[sym], c)
	}
	return out, rows.Err()
}

// LoadOutcomes returns the table's outcomes in insertion order.
func (s *Store) LoadOutcomes(ctx context.Context, table string) ([]model.TradeOutcome, error) {
	if err := ValidTableName(table); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT Symbol, Signal_Timestamp, Entry_Price, Stop_Loss, Take_Profit,
		       Exit_Timestamp, Exit_Price, Outcome, Profit_Loss
		FROM "%s"
		ORDER BY rowid ASC
	`, table))
	if err != nil {
		return nil, fmt.Errorf("sqlite query %s: %w", table, err)
	}
	defer rows.Close()

	out := make([]model.TradeOutcome, 0)
	for rows.Next() {
		var (
			o             model.TradeOutcome
			sigTS, exitTS string
			outcome       string
		)
		if err := rows.Scan(&o.Symbol, &sigTS, &o.EntryPrice, &o.StopLoss, &o.TakeProfit,
			&exitTS, &o.ExitPrice, &outcome, &o.ProfitLoss); err != nil {
			return nil, fmt.Errorf("sqlite scan %s: %w", table, err)
		}
		if o.SignalTS, err = parseTS(sigTS); err != nil {
			return nil, err
		}
		if o.ExitTS, err = parseTS(exitTS); err != nil {
			return nil, err
		}
		o.Outcome = model.Outcome(outcome)
		out = append(out, o)
	}
	return out, rows.Err()
}

func parseTS(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}
