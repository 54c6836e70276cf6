// Package universe loads the NSE instrument list the backtest runs over.
package universe

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	"sma-vol-breakdown/internal/model"
)

// row mirrors the NSE index constituent CSV.
type row struct {
	CompanyName string `csv:"Company Name"`
	Industry    string `csv:"Industry"`
	Symbol      string `csv:"Symbol"`
	Series      string `csv:"Series"`
	ISIN        string `csv:"ISIN Code"`
}

// Load reads the instrument list at path.
func Load(path string) ([]model.Instrument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open universe %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses the instrument list. Rows without a symbol or ISIN are skipped
// with a warning; duplicate symbols keep their first row.
func Read(r io.Reader) ([]model.Instrument, error) {
	var rows []*row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parse universe: %w", err)
	}

	seen := make(map[string]bool, len(rows))
	out := make([]model.Instrument, 0, len(rows))
	for i, rw := range rows {
		sym := strings.TrimSpace(rw.Symbol)
		isin := strings.TrimSpace(rw.ISIN)
		if sym == "" || isin == "" {
			log.Printf("[universe] skipping row %d: missing symbol or ISIN", i+2)
			continue
		}
		if seen[sym] {
			log.Printf("[universe] skipping duplicate symbol %s", sym)
			continue
		}
		seen[sym] = true
		out = append(out, model.Instrument{
			Symbol:   sym,
			ISIN:     isin,
			Name:     strings.TrimSpace(rw.CompanyName),
			Industry: strings.TrimSpace(rw.Industry),
			Series:   strings.TrimSpace(rw.Series),
		})
	}
	return out, nil
}
