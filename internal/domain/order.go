package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus tracks the order lifecycle. Transitions are one-directional;
// see Transitions for the full state machine.
type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "pending"
	OrderStatusSubmitted        OrderStatus = "submitted"
	OrderStatusFilled           OrderStatus = "filled"
	OrderStatusRejected         OrderStatus = "rejected"
	OrderStatusCancelled        OrderStatus = "cancelled"
	OrderStatusClosedTakeProfit OrderStatus = "closed_take_profit"
	OrderStatusClosedStopLoss   OrderStatus = "closed_stop_loss"
	OrderStatusClosedManual     OrderStatus = "closed_manual"
)

// Transitions maps each order status to the set of statuses it may move to.
// A status absent from the map (or with an empty set) is terminal.
var Transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusSubmitted, OrderStatusCancelled},
	OrderStatusSubmitted: {OrderStatusFilled, OrderStatusRejected, OrderStatusCancelled},
	OrderStatusFilled:    {OrderStatusClosedTakeProfit, OrderStatusClosedStopLoss, OrderStatusClosedManual},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing transitions.
func IsTerminal(s OrderStatus) bool {
	return len(Transitions[s]) == 0
}

// RejectReason explains why an order ended up rejected.
type RejectReason string

const (
	RejectReasonBroker  RejectReason = "broker"
	RejectReasonTimeout RejectReason = "timeout"
)

// Order represents one tracked trading order. Stop-loss and take-profit
// levels are fixed at creation from the signal's configuration and are
// never silently adjusted afterwards.
type Order struct {
	ID              string
	Symbol          string
	Side            OrderSide
	SizeUnits       int64 // fixed-point size, 1e6 units
	EntryTicks      int64 // fixed-point entry price, 1e6 ticks
	StopLossTicks   int64
	TakeProfitTicks int64
	Status          OrderStatus
	RejectReason    RejectReason
	SignalID        string
	CreatedAt       time.Time
	SubmittedAt     *time.Time
	FilledAt        *time.Time
	ClosedAt        *time.Time
	ExitTicks       int64 // close price when the position was exited
}

// Size returns the display size from fixed-point units.
func (o Order) Size() float64 { return float64(o.SizeUnits) / 1e6 }

// EntryPrice returns the display entry price.
func (o Order) EntryPrice() float64 { return float64(o.EntryTicks) / 1e6 }

// StopLoss returns the display stop-loss price.
func (o Order) StopLoss() float64 { return float64(o.StopLossTicks) / 1e6 }

// TakeProfit returns the display take-profit price.
func (o Order) TakeProfit() float64 { return float64(o.TakeProfitTicks) / 1e6 }

// BrokerAck is the asynchronous acknowledgment for a submitted order,
// correlated back to the order by ID.
type BrokerAck struct {
	OrderID     string
	Filled      bool
	FilledTicks int64 // actual fill price, 1e6 ticks
	Message     string
	At          time.Time
}

// Fill records one executed trade for archival and accounting.
type Fill struct {
	ID         string
	OrderID    string
	Symbol     string
	Side       OrderSide
	PriceTicks int64
	SizeUnits  int64
	At         time.Time
}
