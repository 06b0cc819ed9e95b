package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/quantbot/internal/domain"
	"github.com/alanyoungcy/quantbot/internal/order"
)

// OrderHandler exposes the order lifecycle over HTTP. Live state comes from
// the in-memory manager; history comes from the store.
type OrderHandler struct {
	manager *order.Manager
	store   domain.OrderStore
	logger  *slog.Logger
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(manager *order.Manager, store domain.OrderStore, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		manager: manager,
		store:   store,
		logger:  logger.With(slog.String("handler", "orders")),
	}
}

// orderView is the JSON shape of an order, with prices in display units.
type orderView struct {
	ID           string     `json:"id"`
	Symbol       string     `json:"symbol"`
	Side         string     `json:"side"`
	Size         float64    `json:"size"`
	EntryPrice   float64    `json:"entry_price"`
	StopLoss     float64    `json:"stop_loss"`
	TakeProfit   float64    `json:"take_profit"`
	Status       string     `json:"status"`
	RejectReason string     `json:"reject_reason,omitempty"`
	SignalID     string     `json:"signal_id,omitempty"`
	ExitPrice    float64    `json:"exit_price,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
	FilledAt     *time.Time `json:"filled_at,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
}

func viewOf(o domain.Order) orderView {
	return orderView{
		ID:           o.ID,
		Symbol:       o.Symbol,
		Side:         string(o.Side),
		Size:         o.Size(),
		EntryPrice:   o.EntryPrice(),
		StopLoss:     o.StopLoss(),
		TakeProfit:   o.TakeProfit(),
		Status:       string(o.Status),
		RejectReason: string(o.RejectReason),
		SignalID:     o.SignalID,
		ExitPrice:    float64(o.ExitTicks) / 1e6,
		CreatedAt:    o.CreatedAt,
		SubmittedAt:  o.SubmittedAt,
		FilledAt:     o.FilledAt,
		ClosedAt:     o.ClosedAt,
	}
}

func viewsOf(orders []domain.Order) []orderView {
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, viewOf(o))
	}
	return views
}

// ListOrders returns orders. With ?open=true only live orders are returned;
// with ?symbol=X history for one symbol; otherwise recent orders.
// GET /api/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Get("open") == "true" {
		writeJSON(w, http.StatusOK, map[string]any{"orders": viewsOf(h.manager.Open())})
		return
	}

	opts := parseListOpts(r)
	var (
		orders []domain.Order
		err    error
	)
	if symbol := q.Get("symbol"); symbol != "" {
		orders, err = h.store.ListBySymbol(r.Context(), symbol, opts)
	} else {
		orders, err = h.store.ListRecent(r.Context(), opts.Limit)
	}
	if err != nil {
		h.logger.Error("list orders failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": viewsOf(orders)})
}

// GetOrder returns a single order by ID.
// GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	o, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("get order failed", slog.String("order_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get order")
		return
	}

	writeJSON(w, http.StatusOK, viewOf(o))
}

// CancelOrder cancels an order that has not been acknowledged yet.
// DELETE /api/orders/{id}
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.manager.Cancel(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, domain.ErrNotCancellable):
			writeError(w, http.StatusConflict, "order already acknowledged")
		default:
			h.logger.Error("cancel failed", slog.String("order_id", id), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to cancel order")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

type closeRequest struct {
	Price float64 `json:"price"`
}

// CloseOrder manually closes a filled position at the given price.
// POST /api/orders/{id}/close
func (h *OrderHandler) CloseOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Price <= 0 {
		writeError(w, http.StatusBadRequest, "price must be positive")
		return
	}

	exitTicks := domain.PriceToTicks(req.Price)
	if err := h.manager.CloseManual(r.Context(), id, exitTicks); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, domain.ErrBadTransition):
			writeError(w, http.StatusConflict, "order is not in a closable state")
		default:
			h.logger.Error("manual close failed", slog.String("order_id", id), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to close order")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "closing"})
}
