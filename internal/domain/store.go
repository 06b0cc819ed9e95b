package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OrderStore persists trading orders.
type OrderStore interface {
	Create(ctx context.Context, order Order) error
	Update(ctx context.Context, order Order) error
	GetByID(ctx context.Context, id string) (Order, error)
	ListOpen(ctx context.Context, account string) ([]Order, error)
	ListBySymbol(ctx context.Context, symbol string, opts ListOpts) ([]Order, error)
	ListRecent(ctx context.Context, limit int) ([]Order, error)
}

// FillStore persists executed fills.
type FillStore interface {
	Insert(ctx context.Context, fill Fill) error
	ListByDay(ctx context.Context, day time.Time) ([]Fill, error)
	ListByOrder(ctx context.Context, orderID string) ([]Fill, error)
}

// RiskStore persists per-account daily risk counters so they survive a
// restart within the same trading day.
type RiskStore interface {
	Save(ctx context.Context, counters RiskCounters) error
	Load(ctx context.Context, account string, day time.Time) (RiskCounters, error)
}

// SettlementStore persists settled position outcomes.
type SettlementStore interface {
	Insert(ctx context.Context, st Settlement) error
	ListByDay(ctx context.Context, day time.Time) ([]Settlement, error)
}
