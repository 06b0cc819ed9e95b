package indicator

// sma is a fixed-window simple moving average maintained incrementally with
// a ring buffer, O(1) per update.
type sma struct {
	period int
	window []float64
	next   int
	count  int
	sum    float64
}

func newSMA(period int) *sma {
	return &sma{period: period, window: make([]float64, period)}
}

func (s *sma) update(v float64) {
	if s.count == s.period {
		s.sum -= s.window[s.next]
	} else {
		s.count++
	}
	s.window[s.next] = v
	s.sum += v
	s.next = (s.next + 1) % s.period
}

func (s *sma) ready() bool { return s.count == s.period }

func (s *sma) value() float64 { return s.sum / float64(s.count) }
