package indicator

// ema is an exponential moving average seeded with the simple average of
// its first period values, the conventional charting seed.
type ema struct {
	period int
	k      float64
	seed   float64
	seen   int
	cur    float64
}

func newEMA(period int) *ema {
	return &ema{period: period, k: 2.0 / float64(period+1)}
}

func (e *ema) update(v float64) {
	if e.seen < e.period {
		e.seed += v
		e.seen++
		if e.seen == e.period {
			e.cur = e.seed / float64(e.period)
		}
		return
	}
	e.cur = (v-e.cur)*e.k + e.cur
}

func (e *ema) ready() bool { return e.seen >= e.period }

func (e *ema) value() float64 { return e.cur }
