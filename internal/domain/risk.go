package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outcome classifies a settled position.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
)

// Settlement is emitted by the order lifecycle manager when a filled
// position closes. The risk gate consumes it to update daily counters.
type Settlement struct {
	OrderID   string
	Symbol    string
	SizeUnits int64 // the closed order's size, 1e6 units
	Outcome   Outcome
	PnL       decimal.Decimal // realized profit (positive) or loss (negative)
	Status    OrderStatus     // closed_take_profit, closed_stop_loss or closed_manual
	At        time.Time
}

// RiskCounters is the per-account daily risk state. It is persisted so the
// counters survive a restart within the same trading day and is reset at
// the UTC day boundary.
type RiskCounters struct {
	Account           string
	Day               time.Time // UTC midnight of the trading day
	DailyPnL          decimal.Decimal
	ConsecutiveLosses int
	TradesToday       int
	OpenPositions     map[string]int64 // symbol -> size units
	UpdatedAt         time.Time
}

// Exposure returns the total notional across open positions given a price
// per symbol in display units.
func (c RiskCounters) Exposure(prices map[string]float64) decimal.Decimal {
	total := decimal.Zero
	for symbol, sizeUnits := range c.OpenPositions {
		price := decimal.NewFromFloat(prices[symbol])
		size := decimal.New(sizeUnits, -6)
		total = total.Add(price.Mul(size))
	}
	return total
}
