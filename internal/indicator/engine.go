// Package indicator maintains rolling technical indicators per symbol,
// updated incrementally on every bar close in O(1) amortized time. Every
// reading carries an explicit Ready flag; an indicator whose window has not
// filled reports not-ready rather than a numeric zero.
package indicator

import (
	"github.com/alanyoungcy/quantbot/internal/domain"
)

// Periods holds the window lengths for each indicator.
type Periods struct {
	RSI        int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	SMA        int
	ATR        int
}

// DefaultPeriods are the conventional charting defaults.
func DefaultPeriods() Periods {
	return Periods{RSI: 14, MACDFast: 12, MACDSlow: 26, MACDSignal: 9, SMA: 50, ATR: 14}
}

// Engine holds the rolling indicator state for one symbol. It is a pure
// per-symbol pipeline stage with no cross-symbol state; the caller drives
// it from a single goroutine.
type Engine struct {
	symbol string
	rsi    *rsi
	macd   *macd
	sma    *sma
	atr    *atr
	bars   int
}

// NewEngine creates an indicator engine for symbol with the given periods.
func NewEngine(symbol string, p Periods) *Engine {
	return &Engine{
		symbol: symbol,
		rsi:    newRSI(p.RSI),
		macd:   newMACD(p.MACDFast, p.MACDSlow, p.MACDSignal),
		sma:    newSMA(p.SMA),
		atr:    newATR(p.ATR),
	}
}

// OnBar feeds one closed bar into every indicator and returns the combined
// state after the update.
func (e *Engine) OnBar(bar domain.Bar) domain.IndicatorState {
	close := bar.Close()
	e.rsi.update(close)
	e.macd.update(close)
	e.sma.update(close)
	e.atr.update(bar.High(), bar.Low(), close)
	e.bars++

	st := domain.IndicatorState{
		Symbol:   e.symbol,
		BarClose: close,
		BarTime:  bar.End,
	}
	if e.rsi.ready() {
		st.RSI = domain.Value(e.rsi.value())
	}
	if e.macd.lineReady() {
		st.MACD = domain.Value(e.macd.line())
	}
	if e.macd.signalReady() {
		st.MACDSig = domain.Value(e.macd.signalValue())
		st.Histogram = domain.Value(e.macd.histogram())
	}
	if e.sma.ready() {
		st.SMA = domain.Value(e.sma.value())
	}
	if e.atr.ready() {
		st.ATR = domain.Value(e.atr.value())
	}
	return st
}

// Bars returns how many bars the engine has consumed since initialization.
func (e *Engine) Bars() int { return e.bars }
