package domain

import "time"

// Direction is the trade direction a signal requests.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	DirectionFlat  Direction = "flat"
)

// Signal is emitted by the evaluator when every predicate in the active
// chain passes on the same bar. Signals are immutable once emitted and are
// consumed exactly once by the risk gate.
type Signal struct {
	ID         string // UUID for dedup
	Symbol     string
	Direction  Direction
	PriceTicks int64 // close price of the triggering bar, 1e6 ticks
	SizeUnits  int64 // requested size, 1e6 units
	Predicates []string // names of the predicates that fired
	BarTime    time.Time
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Price returns the display price from fixed-point ticks.
func (s Signal) Price() float64 {
	return float64(s.PriceTicks) / 1e6
}

// Size returns the display size from fixed-point units.
func (s Signal) Size() float64 {
	return float64(s.SizeUnits) / 1e6
}
