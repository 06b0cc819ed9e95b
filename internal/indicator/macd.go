package indicator

// macd computes Moving Average Convergence Divergence: fast EMA minus slow
// EMA, with a signal line that is an EMA of the MACD value itself. The
// signal EMA only starts accumulating once the slow EMA is ready.
type macd struct {
	fast   *ema
	slow   *ema
	signal *ema
}

func newMACD(fastPeriod, slowPeriod, signalPeriod int) *macd {
	return &macd{
		fast:   newEMA(fastPeriod),
		slow:   newEMA(slowPeriod),
		signal: newEMA(signalPeriod),
	}
}

func (m *macd) update(close float64) {
	m.fast.update(close)
	m.slow.update(close)
	if m.fast.ready() && m.slow.ready() {
		m.signal.update(m.line())
	}
}

func (m *macd) lineReady() bool { return m.fast.ready() && m.slow.ready() }

func (m *macd) line() float64 { return m.fast.value() - m.slow.value() }

func (m *macd) signalReady() bool { return m.signal.ready() }

func (m *macd) signalValue() float64 { return m.signal.value() }

func (m *macd) histogram() float64 { return m.line() - m.signal.value() }
