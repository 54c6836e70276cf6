package marketdata

import (
	"sort"

	"sma-vol-breakdown/internal/model"
)

// Stitch concatenates candle segments into one ascending series.
// When two segments carry the same instant, the later segment wins, so
// intraday rows override historical ones.
func Stitch(segments ...[]model.Candle) []model.Candle {
	n := 0
	for _, seg := range segments {
		n += len(seg)
	}
	if n == 0 {
		return []model.Candle{}
	}

	byInstant := make(map[int64]int, n)
	out := make([]model.Candle, 0, n)
	for _, seg := range segments {
		for _, c := range seg {
			k := c.TS.UnixNano()
			if i, ok := byInstant[k]; ok {
				out[i] = c
				continue
			}
			byInstant[k] = len(out)
			out = append(out, c)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].TS.Before(out[j].TS) })
	return out
}
