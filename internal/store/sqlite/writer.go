package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"sort"
	"time"

	"sma-vol-breakdown/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store persists candles, signals and outcomes. Every Save* replaces the
// target table's contents in a single transaction.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Open opens (creating if needed) the SQLite database in WAL mode.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", path)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ValidTableName reports whether name can be used as a table name.
func ValidTableName(name string) error {
	if !identRE.MatchString(name) {
		return fmt.Errorf("sqlite: invalid table name %q", name)
	}
	return nil
}

// replaceTable drops and recreates table from the ddl statements, then inserts
// rows with one prepared statement, all inside a single transaction. Each ddl
// statement refers to the table as %[1]s.
func (s *Store) replaceTable(ctx context.Context, table string, ddl []string, insert string, n int, args func(i int) []any) error {
	if err := ValidTableName(table); err != nil {
		return err
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, table)); err != nil {
		return fmt.Errorf("drop %s: %w", table, err)
	}
	for _, stmt := range ddl {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(stmt, table)); err != nil {
			return fmt.Errorf("create %s: %w", table, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(insert, table))
	if err != nil {
		return fmt.Errorf("prepare %s: %w", table, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("insert %s row %d: %w", table, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("[sqlite] replaced %s with %d rows in %v", table, n, time.Since(start))
	return nil
}

// SaveCandles replaces table with every candle in bySymbol.
func (s *Store) SaveCandles(ctx context.Context, table string, bySymbol map[string][]model.Candle) error {
	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	type row struct {
		symbol string
		c      model.Candle
	}
	var rows []row
	for _, sym := range symbols {
		for _, c := range bySymbol[sym] {
			rows = append(rows, row{sym, c})
		}
	}

	ddl := []string{`
		CREATE TABLE "%[1]s" (
			symbol        TEXT    NOT NULL,
			ts            TEXT    NOT NULL,
			ts_unix       INTEGER NOT NULL,
			open          REAL    NOT NULL,
			high          REAL    NOT NULL,
			low           REAL    NOT NULL,
			close         REAL    NOT NULL,
			volume        REAL    NOT NULL,
			open_interest REAL
		)`,
		`CREATE INDEX "idx_%[1]s_symbol_ts" ON "%[1]s" (symbol, ts_unix)`,
	}
	return s.replaceTable(ctx, table, ddl,
		`INSERT INTO "%s" (symbol, ts, ts_unix, open, high, low, close, volume, open_interest)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(rows), func(i int) []any {
			r := rows[i]
			var oi any
			if r.c.HasOpenInterest() {
				oi = *r.c.OpenInterest
			}
			return []any{r.symbol, formatTS(r.c.TS), r.c.TS.UnixNano(),
				r.c.Open, r.c.High, r.c.Low, r.c.Close, r.c.Volume, oi}
		})
}

// SaveSignals replaces table with signals.
func (s *Store) SaveSignals(ctx context.Context, table string, signals []model.Signal) error {
	return s.replaceTable(ctx, table, []string{`
		CREATE TABLE "%[1]s" (
			Symbol           TEXT NOT NULL,
			Signal           TEXT NOT NULL,
			Signal_Timestamp TEXT NOT NULL,
			Entry_Price      REAL NOT NULL,
			Stop_Loss        REAL NOT NULL,
			Take_Profit      REAL NOT NULL
		)`},
		`INSERT INTO "%s" (Symbol, Signal, Signal_Timestamp, Entry_Price, Stop_Loss, Take_Profit)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		len(signals), func(i int) []any {
			sg := signals[i]
			return []any{sg.Symbol, string(sg.Side), formatTS(sg.SignalTS), sg.EntryPrice, sg.StopLoss, sg.TakeProfit}
		})
}

// SaveOutcomes replaces table with outcomes.
func (s *Store) SaveOutcomes(ctx context.Context, table string, outcomes []model.TradeOutcome) error {
	return s.replaceTable(ctx, table, []string{`
		CREATE TABLE "%[1]s" (
			Symbol           TEXT NOT NULL,
			Signal_Timestamp TEXT NOT NULL,
			Entry_Price      REAL NOT NULL,
			Stop_Loss        REAL NOT NULL,
			Take_Profit      REAL NOT NULL,
			Exit_Timestamp   TEXT NOT NULL,
			Exit_Price       REAL NOT NULL,
			Outcome          TEXT NOT NULL,
			Profit_Loss      REAL NOT NULL
		)`},
		`INSERT INTO "%s" (Symbol, Signal_Timestamp, Entry_Price, Stop_Loss, Take_Profit,
			Exit_Timestamp, Exit_Price, Outcome, Profit_Loss)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		len(outcomes), func(i int) []any {
			o := outcomes[i]
			return []any{o.Symbol, formatTS(o.SignalTS), o.EntryPrice, o.StopLoss, o.TakeProfit,
				formatTS(o.ExitTS), o.ExitPrice, string(o.Outcome), o.ProfitLoss}
		})
}

// formatTS keeps the original UTC offset so reloaded candles compare by wall clock too.
func formatTS(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

var _ model.Store = (*Store)(nil)
