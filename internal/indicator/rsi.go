package indicator

// rsi computes the Relative Strength Index with Wilder's smoothing. The
// first average gain/loss is the simple mean over the first period price
// changes; after that each update blends at 1/period. Requires period+1
// closes before the first reading.
type rsi struct {
	period    int
	prevClose float64
	hasPrev   bool
	changes   int
	avgGain   float64
	avgLoss   float64
}

func newRSI(period int) *rsi {
	return &rsi{period: period}
}

func (r *rsi) update(close float64) {
	if !r.hasPrev {
		r.prevClose = close
		r.hasPrev = true
		return
	}

	change := close - r.prevClose
	r.prevClose = close
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	if r.changes < r.period {
		r.avgGain += gain
		r.avgLoss += loss
		r.changes++
		if r.changes == r.period {
			r.avgGain /= float64(r.period)
			r.avgLoss /= float64(r.period)
		}
		return
	}

	n := float64(r.period)
	r.avgGain = (r.avgGain*(n-1) + gain) / n
	r.avgLoss = (r.avgLoss*(n-1) + loss) / n
}

func (r *rsi) ready() bool { return r.changes >= r.period }

func (r *rsi) value() float64 {
	if r.avgLoss == 0 {
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}
