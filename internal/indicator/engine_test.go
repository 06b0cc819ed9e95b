package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

func testPeriods() Periods {
	return Periods{RSI: 2, MACDFast: 2, MACDSlow: 3, MACDSignal: 2, SMA: 3, ATR: 2}
}

func bar(close float64) domain.Bar {
	ticks := domain.PriceToTicks(close)
	return domain.Bar{
		Symbol:     "BTC-USD",
		OpenTicks:  ticks,
		HighTicks:  ticks,
		LowTicks:   ticks,
		CloseTicks: ticks,
		Start:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		End:        time.Date(2026, 8, 1, 12, 1, 0, 0, time.UTC),
	}
}

func TestUnreadyIndicatorsAreNeverZero(t *testing.T) {
	e := NewEngine("BTC-USD", testPeriods())

	st := e.OnBar(bar(100))
	assert.False(t, st.RSI.Ready)
	assert.False(t, st.MACD.Ready)
	assert.False(t, st.MACDSig.Ready)
	assert.False(t, st.Histogram.Ready)
	assert.False(t, st.SMA.Ready)
	assert.False(t, st.ATR.Ready)
	assert.Equal(t, domain.NotReady, st.RSI)

	assert.Equal(t, 100.0, st.BarClose)
	assert.Equal(t, 1, e.Bars())
}

func TestReadinessProgression(t *testing.T) {
	e := NewEngine("BTC-USD", testPeriods())

	// Bar 2: ATR window (2) filled, everything else still warming.
	e.OnBar(bar(100))
	st := e.OnBar(bar(101))
	assert.False(t, st.RSI.Ready, "RSI needs period+1 closes")
	assert.False(t, st.MACD.Ready, "slow EMA not seeded yet")
	assert.True(t, st.ATR.Ready)

	// Bar 3: RSI (2 changes), MACD line, SMA (3 values).
	st = e.OnBar(bar(102))
	assert.True(t, st.RSI.Ready)
	assert.True(t, st.MACD.Ready)
	assert.True(t, st.SMA.Ready)
	assert.False(t, st.MACDSig.Ready, "signal EMA starts once the slow EMA is ready")

	// Bar 4: signal line and histogram.
	st = e.OnBar(bar(103))
	assert.True(t, st.MACDSig.Ready)
	assert.True(t, st.Histogram.Ready)
}

func TestRSIAllGainsIsHundred(t *testing.T) {
	r := newRSI(3)
	for _, close := range []float64{1, 2, 3, 4} {
		r.update(close)
	}
	require.True(t, r.ready())
	assert.Equal(t, 100.0, r.value())
}

func TestRSIWilderSmoothing(t *testing.T) {
	r := newRSI(2)
	r.update(10)
	r.update(11)   // +1
	r.update(10.5) // -0.5
	require.True(t, r.ready())
	// avgGain 0.5, avgLoss 0.25, RS 2, RSI 100 - 100/3.
	assert.InDelta(t, 66.6667, r.value(), 1e-3)

	// One more loss blends at 1/period, not a plain window.
	r.update(10) // -0.5
	// avgGain (0.5*1+0)/2 = 0.25, avgLoss (0.25*1+0.5)/2 = 0.375.
	// RS = 2/3, RSI = 40.
	assert.InDelta(t, 40.0, r.value(), 1e-9)
}

func TestSMARollsItsWindow(t *testing.T) {
	s := newSMA(3)
	s.update(1)
	s.update(2)
	assert.False(t, s.ready())
	s.update(3)
	require.True(t, s.ready())
	assert.InDelta(t, 2.0, s.value(), 1e-9)

	s.update(4) // window is now 2, 3, 4
	assert.InDelta(t, 3.0, s.value(), 1e-9)
	s.update(10) // window is now 3, 4, 10
	assert.InDelta(t, 17.0/3, s.value(), 1e-9)
}

func TestEMASeedAndBlend(t *testing.T) {
	e := newEMA(3)
	e.update(1)
	e.update(2)
	assert.False(t, e.ready())
	e.update(3)
	require.True(t, e.ready())
	assert.InDelta(t, 2.0, e.value(), 1e-9, "seeded with the simple average")

	// k = 2/(3+1) = 0.5.
	e.update(4)
	assert.InDelta(t, 3.0, e.value(), 1e-9)
}

func TestMACDRespondsToTrend(t *testing.T) {
	m := newMACD(2, 3, 2)

	// Flat tape: line and histogram converge to zero.
	for i := 0; i < 4; i++ {
		m.update(10)
	}
	require.True(t, m.lineReady())
	require.True(t, m.signalReady())
	assert.InDelta(t, 0.0, m.line(), 1e-9)
	assert.InDelta(t, 0.0, m.histogram(), 1e-9)

	// A sharp move up: the fast EMA leads the slow, and the line leads
	// its own signal.
	m.update(12)
	assert.Greater(t, m.line(), 0.0)
	assert.Greater(t, m.histogram(), 0.0)
}

func TestATRUsesTrueRange(t *testing.T) {
	a := newATR(2)

	// First bar has no prior close, so TR falls back to high-low.
	a.update(10, 8, 9)
	assert.False(t, a.ready())
	a.update(11, 9, 10)
	require.True(t, a.ready())
	assert.InDelta(t, 2.0, a.value(), 1e-9)

	// A gap: TR is measured against the previous close, not just the range.
	a.update(15, 14, 14) // TR = max(1, |15-10|, |14-10|) = 5
	assert.InDelta(t, (2.0+5.0)/2, a.value(), 1e-9)
}
