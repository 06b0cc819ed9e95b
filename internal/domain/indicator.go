package domain

import "time"

// IndicatorValue is a single indicator reading. Ready is false until the
// indicator has accumulated enough history; an unready value must never be
// confused with a computed zero.
type IndicatorValue struct {
	Float float64
	Ready bool
}

// Value constructs a ready IndicatorValue.
func Value(f float64) IndicatorValue {
	return IndicatorValue{Float: f, Ready: true}
}

// NotReady is the explicit marker for an indicator that has not yet
// accumulated its full window.
var NotReady = IndicatorValue{}

// IndicatorState is the full set of indicator readings for a symbol after a
// bar close.
type IndicatorState struct {
	Symbol    string
	BarClose  float64
	BarTime   time.Time
	RSI       IndicatorValue
	MACD      IndicatorValue
	MACDSig   IndicatorValue
	Histogram IndicatorValue
	SMA       IndicatorValue
	ATR       IndicatorValue
}
