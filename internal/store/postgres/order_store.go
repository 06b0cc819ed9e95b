package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `
	id, symbol, side, size_units, entry_ticks, stop_loss_ticks,
	take_profit_ticks, status, reject_reason, signal_id, exit_ticks,
	created_at, submitted_at, filled_at, closed_at`

// Create inserts a new order.
func (s *OrderStore) Create(ctx context.Context, o domain.Order) error {
	const query = `
		INSERT INTO orders (
			id, symbol, side, size_units, entry_ticks, stop_loss_ticks,
			take_profit_ticks, status, reject_reason, signal_id, exit_ticks,
			created_at, submitted_at, filled_at, closed_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15, NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		o.ID, o.Symbol, string(o.Side), o.SizeUnits, o.EntryTicks, o.StopLossTicks,
		o.TakeProfitTicks, string(o.Status), string(o.RejectReason), o.SignalID, o.ExitTicks,
		o.CreatedAt, o.SubmittedAt, o.FilledAt, o.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create order %s: %w", o.ID, err)
	}
	return nil
}

// Update rewrites the mutable fields of an existing order.
func (s *OrderStore) Update(ctx context.Context, o domain.Order) error {
	const query = `
		UPDATE orders SET
			entry_ticks = $2, status = $3, reject_reason = $4, exit_ticks = $5,
			submitted_at = $6, filled_at = $7, closed_at = $8, updated_at = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		o.ID, o.EntryTicks, string(o.Status), string(o.RejectReason), o.ExitTicks,
		o.SubmittedAt, o.FilledAt, o.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update order %s: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update order %s: %w", o.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID fetches a single order.
func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, fmt.Errorf("postgres: order %s: %w", id, domain.ErrNotFound)
		}
		return domain.Order{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}
	return o, nil
}

// ListOpen returns all orders in a non-terminal state.
func (s *OrderStore) ListOpen(ctx context.Context, account string) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE status IN ('pending', 'submitted', 'filled')
		 ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListBySymbol returns orders for one symbol, newest first.
func (s *OrderStore) ListBySymbol(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.Order, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE symbol = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		symbol, limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders for %s: %w", symbol, err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListRecent returns the most recently created orders across all symbols.
func (s *OrderStore) ListRecent(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var side, status, rejectReason string
	err := row.Scan(
		&o.ID, &o.Symbol, &side, &o.SizeUnits, &o.EntryTicks, &o.StopLossTicks,
		&o.TakeProfitTicks, &status, &rejectReason, &o.SignalID, &o.ExitTicks,
		&o.CreatedAt, &o.SubmittedAt, &o.FilledAt, &o.ClosedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	o.Side = domain.OrderSide(side)
	o.Status = domain.OrderStatus(status)
	o.RejectReason = domain.RejectReason(rejectReason)
	return o, nil
}

func collectOrders(rows pgx.Rows) ([]domain.Order, error) {
	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
