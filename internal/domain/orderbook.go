package domain

import "time"

// PriceLevel is a single price+size entry in an orderbook.
type PriceLevel struct {
	PriceTicks int64
	SizeUnits  int64
}

// Price returns the display price for this level.
func (l PriceLevel) Price() float64 { return float64(l.PriceTicks) / 1e6 }

// Size returns the display size for this level.
func (l PriceLevel) Size() float64 { return float64(l.SizeUnits) / 1e6 }

// BookUpdate is an incremental orderbook level update. SizeUnits of 0 means
// the level is removed.
type BookUpdate struct {
	Symbol     string
	Side       TickSide
	PriceTicks int64
	SizeUnits  int64
	Timestamp  time.Time
}

// OrderbookSnapshot is a point-in-time copy of bids and asks for a symbol.
// Bids are sorted descending by price, asks ascending. Snapshots are owned
// by the caller and safe to mutate; the engine never hands out live state.
type OrderbookSnapshot struct {
	Symbol    string
	Bids      []PriceLevel
	Asks      []PriceLevel
	BestBid   int64
	BestAsk   int64
	Timestamp time.Time
}

// MidPrice returns the display midpoint of the best bid and ask, or 0 when
// either side is empty.
func (s OrderbookSnapshot) MidPrice() float64 {
	if s.BestBid == 0 || s.BestAsk == 0 {
		return 0
	}
	return float64(s.BestBid+s.BestAsk) / 2 / 1e6
}

// Spread returns the display bid-ask spread, or 0 when either side is empty.
func (s OrderbookSnapshot) Spread() float64 {
	if s.BestBid == 0 || s.BestAsk == 0 {
		return 0
	}
	return float64(s.BestAsk-s.BestBid) / 1e6
}
