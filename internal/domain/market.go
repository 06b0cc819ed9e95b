package domain

import "time"

// TickSide indicates which side of the book a trade hit.
type TickSide string

const (
	TickSideBuy  TickSide = "buy"
	TickSideSell TickSide = "sell"
)

// TickEvent is the canonical normalized market-data event. Every exchange
// payload is converted into this shape before entering the pipeline.
type TickEvent struct {
	Symbol     string
	Timestamp  time.Time
	PriceTicks int64 // fixed-point price, 1e6 ticks
	SizeUnits  int64 // fixed-point size, 1e6 units
	Side       TickSide
}

// Price returns the display price from fixed-point ticks.
func (t TickEvent) Price() float64 {
	return float64(t.PriceTicks) / 1e6
}

// Size returns the display size from fixed-point units.
func (t TickEvent) Size() float64 {
	return float64(t.SizeUnits) / 1e6
}

// Bar is one fixed-interval OHLC aggregation of ticks for a symbol.
type Bar struct {
	Symbol     string
	OpenTicks  int64
	HighTicks  int64
	LowTicks   int64
	CloseTicks int64
	Volume     float64
	Start      time.Time
	End        time.Time
}

// Open returns the display open price.
func (b Bar) Open() float64 { return float64(b.OpenTicks) / 1e6 }

// High returns the display high price.
func (b Bar) High() float64 { return float64(b.HighTicks) / 1e6 }

// Low returns the display low price.
func (b Bar) Low() float64 { return float64(b.LowTicks) / 1e6 }

// Close returns the display close price.
func (b Bar) Close() float64 { return float64(b.CloseTicks) / 1e6 }

// PriceTicks converts a display price to fixed-point ticks.
func PriceToTicks(price float64) int64 {
	if price >= 0 {
		return int64(price*1e6 + 0.5)
	}
	return int64(price*1e6 - 0.5)
}
