// Package order tracks submitted orders through their lifecycle state
// machine: pending → submitted → {filled, rejected, cancelled} and
// filled → {closed_take_profit, closed_stop_loss, closed_manual}.
// Transitions are one-directional and validated against domain.Transitions.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

// Broker is the external execution venue. Place blocks until the venue
// acknowledges or the context expires; the manager calls it from a
// goroutine so submission is fire-and-forget from the caller's view.
type Broker interface {
	Place(ctx context.Context, o domain.Order) (domain.BrokerAck, error)
	Close(ctx context.Context, o domain.Order, exitTicks int64) error
}

// Settler receives settlement events and slot releases. Implemented by the
// risk gate. Both carry the order's size so the gate can subtract exactly
// this order's reservation when more than one order is live on a symbol.
type Settler interface {
	Settle(ctx context.Context, st domain.Settlement)
	Release(ctx context.Context, symbol string, sizeUnits int64)
}

// Alerter surfaces operator-facing alerts. Implemented by the notifier.
type Alerter interface {
	Alert(ctx context.Context, event, message string)
}

// Manager owns all live orders. External acknowledgments are correlated
// back by order ID and applied under one mutex so state transitions stay
// serialized even though broker calls run concurrently.
type Manager struct {
	broker      Broker
	store       domain.OrderStore
	fills       domain.FillStore
	settlements domain.SettlementStore
	settler     Settler
	alerter     Alerter
	timeout     time.Duration
	logger      *slog.Logger

	mu    sync.Mutex
	live  map[string]*domain.Order
	acked map[string]bool
}

// NewManager creates a Manager. timeout bounds how long a broker
// submission may stay unacknowledged before the order is rejected.
func NewManager(
	broker Broker,
	store domain.OrderStore,
	fills domain.FillStore,
	settlements domain.SettlementStore,
	settler Settler,
	alerter Alerter,
	timeout time.Duration,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		broker:      broker,
		store:       store,
		fills:       fills,
		settlements: settlements,
		settler:     settler,
		alerter:     alerter,
		timeout:     timeout,
		logger:      logger.With(slog.String("component", "order_manager")),
		live:        make(map[string]*domain.Order),
		acked:       make(map[string]bool),
	}
}

// Submit moves a pending order to submitted and dispatches it to the
// broker. The order stays submitted until the asynchronous ack arrives or
// the timeout elapses, at which point it transitions to rejected with
// reason timeout.
func (m *Manager) Submit(ctx context.Context, o domain.Order) error {
	m.mu.Lock()
	if o.Status != domain.OrderStatusPending {
		m.mu.Unlock()
		return fmt.Errorf("order %s: submit from %s: %w", o.ID, o.Status, domain.ErrBadTransition)
	}
	now := time.Now().UTC()
	o.Status = domain.OrderStatusSubmitted
	o.SubmittedAt = &now
	tracked := o
	m.live[o.ID] = &tracked
	m.mu.Unlock()

	if err := m.store.Create(ctx, tracked); err != nil {
		m.logger.Warn("order persist failed", slog.String("order_id", o.ID), slog.String("error", err.Error()))
	}
	m.logger.Info("order submitted",
		slog.String("order_id", o.ID),
		slog.String("symbol", o.Symbol),
		slog.String("side", string(o.Side)),
	)

	go m.awaitAck(ctx, o.ID)
	return nil
}

// awaitAck calls the broker with a bounded context and applies the result.
func (m *Manager) awaitAck(ctx context.Context, orderID string) {
	m.mu.Lock()
	o, ok := m.live[orderID]
	if !ok {
		m.mu.Unlock()
		return
	}
	snapshot := *o
	m.mu.Unlock()

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()

	ack, err := m.broker.Place(callCtx, snapshot)
	if err != nil {
		reason := domain.RejectReasonBroker
		if errors.Is(err, context.DeadlineExceeded) {
			reason = domain.RejectReasonTimeout
			err = fmt.Errorf("%w: %s", domain.ErrBrokerTimeout, snapshot.ID)
		}
		m.reject(ctx, orderID, reason, err.Error())
		return
	}
	m.applyAck(ctx, ack)
}

// applyAck correlates a broker acknowledgment with its order and applies
// the resulting transition. Acks for cancelled or unknown orders are
// dropped.
func (m *Manager) applyAck(ctx context.Context, ack domain.BrokerAck) {
	m.mu.Lock()
	o, ok := m.live[ack.OrderID]
	if !ok || o.Status != domain.OrderStatusSubmitted {
		m.mu.Unlock()
		m.logger.Debug("ack for inactive order dropped", slog.String("order_id", ack.OrderID))
		return
	}
	m.acked[ack.OrderID] = true

	if !ack.Filled {
		m.mu.Unlock()
		m.reject(ctx, ack.OrderID, domain.RejectReasonBroker, ack.Message)
		return
	}

	now := time.Now().UTC()
	o.Status = domain.OrderStatusFilled
	o.FilledAt = &now
	if ack.FilledTicks > 0 {
		o.EntryTicks = ack.FilledTicks
	}
	updated := *o
	m.mu.Unlock()

	if err := m.store.Update(ctx, updated); err != nil {
		m.logger.Warn("order update failed", slog.String("order_id", updated.ID), slog.String("error", err.Error()))
	}
	fill := domain.Fill{
		ID:         uuid.New().String(),
		OrderID:    updated.ID,
		Symbol:     updated.Symbol,
		Side:       updated.Side,
		PriceTicks: updated.EntryTicks,
		SizeUnits:  updated.SizeUnits,
		At:         now,
	}
	if err := m.fills.Insert(ctx, fill); err != nil {
		m.logger.Warn("fill persist failed", slog.String("order_id", updated.ID), slog.String("error", err.Error()))
	}
	m.logger.Info("order filled",
		slog.String("order_id", updated.ID),
		slog.Float64("price", updated.EntryPrice()),
	)
}

// reject moves an order to the terminal rejected state, frees its reserved
// risk slot, and raises an operator alert. Rejected orders are never
// retried automatically; a possibly-filled order must be reconciled before
// resubmission.
func (m *Manager) reject(ctx context.Context, orderID string, reason domain.RejectReason, msg string) {
	m.mu.Lock()
	o, ok := m.live[orderID]
	if !ok || !domain.CanTransition(o.Status, domain.OrderStatusRejected) {
		m.mu.Unlock()
		return
	}
	o.Status = domain.OrderStatusRejected
	o.RejectReason = reason
	updated := *o
	delete(m.live, orderID)
	delete(m.acked, orderID)
	m.mu.Unlock()

	if err := m.store.Update(ctx, updated); err != nil {
		m.logger.Warn("order update failed", slog.String("order_id", orderID), slog.String("error", err.Error()))
	}
	m.settler.Release(ctx, updated.Symbol, updated.SizeUnits)
	m.logger.Warn("order rejected",
		slog.String("order_id", orderID),
		slog.String("reason", string(reason)),
		slog.String("message", msg),
	)
	if m.alerter != nil {
		m.alerter.Alert(ctx, "order_rejected",
			fmt.Sprintf("order %s %s %s rejected (%s): %s",
				orderID, updated.Symbol, updated.Side, reason, msg))
	}
}

// Cancel cancels an order. Pending orders cancel locally; submitted orders
// may only be cancelled before the broker acknowledgment arrives. Any
// later cancellation is a close request, not a rollback.
func (m *Manager) Cancel(ctx context.Context, orderID string) error {
	m.mu.Lock()
	o, ok := m.live[orderID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	if o.Status == domain.OrderStatusSubmitted && m.acked[orderID] {
		m.mu.Unlock()
		return fmt.Errorf("order %s acknowledged: %w", orderID, domain.ErrNotCancellable)
	}
	if !domain.CanTransition(o.Status, domain.OrderStatusCancelled) {
		st := o.Status
		m.mu.Unlock()
		return fmt.Errorf("order %s: cancel from %s: %w", orderID, st, domain.ErrNotCancellable)
	}
	o.Status = domain.OrderStatusCancelled
	updated := *o
	delete(m.live, orderID)
	delete(m.acked, orderID)
	m.mu.Unlock()

	if err := m.store.Update(ctx, updated); err != nil {
		m.logger.Warn("order update failed", slog.String("order_id", orderID), slog.String("error", err.Error()))
	}
	m.settler.Release(ctx, updated.Symbol, updated.SizeUnits)
	m.logger.Info("order cancelled", slog.String("order_id", orderID))
	return nil
}

// OnTick checks every filled order for the tick's symbol against its fixed
// stop-loss and take-profit levels and closes those that were hit.
func (m *Manager) OnTick(ctx context.Context, tick domain.TickEvent) {
	m.mu.Lock()
	var hits []closeHit
	for _, o := range m.live {
		if o.Status != domain.OrderStatusFilled || o.Symbol != tick.Symbol {
			continue
		}
		if status, ok := levelHit(*o, tick.PriceTicks); ok {
			hits = append(hits, closeHit{order: *o, status: status})
		}
	}
	m.mu.Unlock()

	for _, h := range hits {
		m.close(ctx, h.order.ID, h.status, tick.PriceTicks)
	}
}

type closeHit struct {
	order  domain.Order
	status domain.OrderStatus
}

// levelHit reports which protective level, if any, the given price crossed.
func levelHit(o domain.Order, priceTicks int64) (domain.OrderStatus, bool) {
	switch o.Side {
	case domain.OrderSideBuy:
		if priceTicks <= o.StopLossTicks {
			return domain.OrderStatusClosedStopLoss, true
		}
		if priceTicks >= o.TakeProfitTicks {
			return domain.OrderStatusClosedTakeProfit, true
		}
	case domain.OrderSideSell:
		if priceTicks >= o.StopLossTicks {
			return domain.OrderStatusClosedStopLoss, true
		}
		if priceTicks <= o.TakeProfitTicks {
			return domain.OrderStatusClosedTakeProfit, true
		}
	}
	return "", false
}

// CloseManual closes a filled order at the given exit price on operator
// request.
func (m *Manager) CloseManual(ctx context.Context, orderID string, exitTicks int64) error {
	m.mu.Lock()
	o, ok := m.live[orderID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	if !domain.CanTransition(o.Status, domain.OrderStatusClosedManual) {
		st := o.Status
		m.mu.Unlock()
		return fmt.Errorf("order %s: close from %s: %w", orderID, st, domain.ErrBadTransition)
	}
	m.mu.Unlock()
	m.close(ctx, orderID, domain.OrderStatusClosedManual, exitTicks)
	return nil
}

// close applies a terminal close transition, emits the settlement consumed
// by the risk gate, and sends the close request to the broker.
func (m *Manager) close(ctx context.Context, orderID string, status domain.OrderStatus, exitTicks int64) {
	m.mu.Lock()
	o, ok := m.live[orderID]
	if !ok || !domain.CanTransition(o.Status, status) {
		m.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	o.Status = status
	o.ExitTicks = exitTicks
	o.ClosedAt = &now
	updated := *o
	delete(m.live, orderID)
	delete(m.acked, orderID)
	m.mu.Unlock()

	if err := m.broker.Close(ctx, updated, exitTicks); err != nil {
		m.logger.Error("broker close failed", slog.String("order_id", orderID), slog.String("error", err.Error()))
		if m.alerter != nil {
			m.alerter.Alert(ctx, "close_failed",
				fmt.Sprintf("close request for order %s failed: %v", orderID, err))
		}
	}
	if err := m.store.Update(ctx, updated); err != nil {
		m.logger.Warn("order update failed", slog.String("order_id", orderID), slog.String("error", err.Error()))
	}

	st := settlementFor(updated, now)
	if err := m.settlements.Insert(ctx, st); err != nil {
		m.logger.Warn("settlement persist failed", slog.String("order_id", orderID), slog.String("error", err.Error()))
	}
	m.settler.Settle(ctx, st)

	m.logger.Info("order closed",
		slog.String("order_id", orderID),
		slog.String("status", string(status)),
		slog.String("pnl", st.PnL.String()),
	)
}

// settlementFor computes the realized P&L for a closed order.
func settlementFor(o domain.Order, at time.Time) domain.Settlement {
	entry := decimal.New(o.EntryTicks, -6)
	exit := decimal.New(o.ExitTicks, -6)
	size := decimal.New(o.SizeUnits, -6)

	pnl := exit.Sub(entry).Mul(size)
	if o.Side == domain.OrderSideSell {
		pnl = entry.Sub(exit).Mul(size)
	}
	outcome := domain.OutcomeWin
	if pnl.IsNegative() {
		outcome = domain.OutcomeLoss
	}
	return domain.Settlement{
		OrderID:   o.ID,
		Symbol:    o.Symbol,
		SizeUnits: o.SizeUnits,
		Outcome:   outcome,
		PnL:       pnl,
		Status:    o.Status,
		At:        at,
	}
}

// Open returns a copy of every live (non-terminal) order.
func (m *Manager) Open() []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, 0, len(m.live))
	for _, o := range m.live {
		out = append(out, *o)
	}
	return out
}
