package indicator

import "strconv"

// SMA calculates Simple Moving Average over a rolling window.
// Uses a preallocated circular buffer; the running sum is Kahan-compensated
// so long series do not drift from a fresh window sum.
type SMA struct {
	name   string
	period int
	buf    []float64 // preallocated circular buffer
	idx    int       // current write position
	count  int       // total values received
	sum    float64
	comp   float64 // compensation for lost low-order bits
}

// NewSMA creates a new SMA with the given period. Period must be positive.
func NewSMA(name string, period int) *SMA {
	if period <= 0 {
		panic("indicator: SMA period must be positive, got " + strconv.Itoa(period))
	}
	if name == "" {
		name = "SMA_" + strconv.Itoa(period)
	}
	return &SMA{
		name:   name,
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Name() string { return s.name }

func (s *SMA) Update(v float64) {
	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		s.add(-s.buf[s.idx])
	}

	s.buf[s.idx] = v
	s.add(v)
	s.idx = (s.idx + 1) % s.period
	s.count++
}

func (s *SMA) add(v float64) {
	y := v - s.comp
	t := s.sum + y
	s.comp = (t - s.sum) - y
	s.sum = t
}

func (s *SMA) Value() float64 {
	if s.count < s.period {
		return 0
	}
	return s.sum / float64(s.period)
}

func (s *SMA) Ready() bool { return s.count >= s.period }
