package indicator

import "math"

// atr computes the Average True Range with Wilder's smoothing. The first
// reading is the simple mean of the first period true ranges; the first
// bar's true range falls back to high-low because there is no prior close.
type atr struct {
	period    int
	prevClose float64
	hasPrev   bool
	seen      int
	cur       float64
}

func newATR(period int) *atr {
	return &atr{period: period}
}

func (a *atr) update(high, low, close float64) {
	tr := high - low
	if a.hasPrev {
		tr = math.Max(tr, math.Max(math.Abs(high-a.prevClose), math.Abs(low-a.prevClose)))
	}
	a.prevClose = close
	a.hasPrev = true

	if a.seen < a.period {
		a.cur += tr
		a.seen++
		if a.seen == a.period {
			a.cur /= float64(a.period)
		}
		return
	}

	n := float64(a.period)
	a.cur = (a.cur*(n-1) + tr) / n
}

func (a *atr) ready() bool { return a.seen >= a.period }

func (a *atr) value() float64 { return a.cur }
