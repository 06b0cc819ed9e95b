package signal

import (
	"fmt"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

// PredicateKind names one of the fixed predicate types the evaluator
// understands. Kinds are a closed set interpreted by evalPredicate, which
// keeps a chain fully serializable as configuration.
type PredicateKind string

const (
	KindRSICrossAbove  PredicateKind = "rsi_cross_above"
	KindRSICrossBelow  PredicateKind = "rsi_cross_below"
	KindMACDBullish    PredicateKind = "macd_bullish"
	KindMACDBearish    PredicateKind = "macd_bearish"
	KindHistogramAbove PredicateKind = "histogram_above"
	KindHistogramBelow PredicateKind = "histogram_below"
	KindPriceAboveSMA  PredicateKind = "price_above_sma"
	KindPriceBelowSMA  PredicateKind = "price_below_sma"
)

var knownKinds = map[PredicateKind]bool{
	KindRSICrossAbove:  true,
	KindRSICrossBelow:  true,
	KindMACDBullish:    true,
	KindMACDBearish:    true,
	KindHistogramAbove: true,
	KindHistogramBelow: true,
	KindPriceAboveSMA:  true,
	KindPriceBelowSMA:  true,
}

// thresholdKinds are the kinds whose Threshold parameter is meaningful.
var thresholdKinds = map[PredicateKind]bool{
	KindRSICrossAbove:  true,
	KindRSICrossBelow:  true,
	KindHistogramAbove: true,
	KindHistogramBelow: true,
}

// Predicate is one configured entry in a signal chain.
type Predicate struct {
	Kind      PredicateKind
	Threshold float64
}

// Name renders the predicate with its parameter for signal metadata.
func (p Predicate) Name() string {
	if thresholdKinds[p.Kind] {
		return fmt.Sprintf("%s(%g)", p.Kind, p.Threshold)
	}
	return string(p.Kind)
}

// Validate checks that the predicate kind is known and its parameters are
// in sane ranges.
func (p Predicate) Validate() error {
	if !knownKinds[p.Kind] {
		return fmt.Errorf("unknown predicate kind %q", p.Kind)
	}
	switch p.Kind {
	case KindRSICrossAbove, KindRSICrossBelow:
		if p.Threshold < 0 || p.Threshold > 100 {
			return fmt.Errorf("%s: threshold %g outside 0-100", p.Kind, p.Threshold)
		}
	}
	return nil
}

// evalPredicate interprets one predicate against the previous and current
// indicator state. Crossing predicates need both states; when an input is
// not ready, or there is no previous bar yet, the predicate is simply false
// rather than an error.
func evalPredicate(p Predicate, prev, cur domain.IndicatorState, hasPrev bool) bool {
	switch p.Kind {
	case KindRSICrossAbove:
		return hasPrev && prev.RSI.Ready && cur.RSI.Ready &&
			prev.RSI.Float < p.Threshold && cur.RSI.Float >= p.Threshold
	case KindRSICrossBelow:
		return hasPrev && prev.RSI.Ready && cur.RSI.Ready &&
			prev.RSI.Float > p.Threshold && cur.RSI.Float <= p.Threshold
	case KindMACDBullish:
		return cur.MACD.Ready && cur.MACDSig.Ready && cur.MACD.Float > cur.MACDSig.Float
	case KindMACDBearish:
		return cur.MACD.Ready && cur.MACDSig.Ready && cur.MACD.Float < cur.MACDSig.Float
	case KindHistogramAbove:
		return cur.Histogram.Ready && cur.Histogram.Float > p.Threshold
	case KindHistogramBelow:
		return cur.Histogram.Ready && cur.Histogram.Float < p.Threshold
	case KindPriceAboveSMA:
		return cur.SMA.Ready && cur.BarClose > cur.SMA.Float
	case KindPriceBelowSMA:
		return cur.SMA.Ready && cur.BarClose < cur.SMA.Float
	}
	return false
}
