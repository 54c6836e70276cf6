package indicator

import "sma-vol-breakdown/internal/series"

// Overlay windows used by the breakdown strategy.
const (
	CloseSMAPeriod  = 5
	VolumeSMAPeriod = 100
)

// Rolling runs ind over values and returns one Point per input position.
// Positions before the window fills carry Ready=false.
func Rolling(ind Indicator, values []float64) []Point {
	out := make([]Point, len(values))
	for i, v := range values {
		ind.Update(v)
		if ind.Ready() {
			out[i] = Point{Value: ind.Value(), Ready: true}
		}
	}
	return out
}

// Overlay is the pair of trailing averages computed over one series.
type Overlay struct {
	SMA5   []Point // close, 5 bars
	VOL100 []Point // volume, 100 bars
}

// Compute builds the SMA_5 / VOL_100 overlay for s in a single linear pass each.
func Compute(s *series.Series) Overlay {
	return Overlay{
		SMA5:   Rolling(NewSMA("SMA_5", CloseSMAPeriod), s.Closes()),
		VOL100: Rolling(NewSMA("VOL_100", VolumeSMAPeriod), s.Volumes()),
	}
}
