package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

// FillStore implements domain.FillStore using PostgreSQL.
type FillStore struct {
	pool *pgxpool.Pool
}

// NewFillStore creates a new FillStore backed by the given connection pool.
func NewFillStore(pool *pgxpool.Pool) *FillStore {
	return &FillStore{pool: pool}
}

// Insert records an executed fill.
func (s *FillStore) Insert(ctx context.Context, f domain.Fill) error {
	const query = `
		INSERT INTO fills (id, order_id, symbol, side, price_ticks, size_units, filled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		f.ID, f.OrderID, f.Symbol, string(f.Side), f.PriceTicks, f.SizeUnits, f.At,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert fill %s: %w", f.ID, err)
	}
	return nil
}

// ListByDay returns all fills within the UTC day containing the given time.
func (s *FillStore) ListByDay(ctx context.Context, day time.Time) ([]domain.Fill, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	rows, err := s.pool.Query(ctx,
		`SELECT id, order_id, symbol, side, price_ticks, size_units, filled_at
		 FROM fills
		 WHERE filled_at >= $1 AND filled_at < $2
		 ORDER BY filled_at`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills for %s: %w", start.Format("2006-01-02"), err)
	}
	defer rows.Close()

	var out []domain.Fill
	for rows.Next() {
		var f domain.Fill
		var side string
		if err := rows.Scan(&f.ID, &f.OrderID, &f.Symbol, &side, &f.PriceTicks, &f.SizeUnits, &f.At); err != nil {
			return nil, fmt.Errorf("postgres: scan fill: %w", err)
		}
		f.Side = domain.OrderSide(side)
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListByOrder returns all fills belonging to an order.
func (s *FillStore) ListByOrder(ctx context.Context, orderID string) ([]domain.Fill, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, order_id, symbol, side, price_ticks, size_units, filled_at
		 FROM fills
		 WHERE order_id = $1
		 ORDER BY filled_at`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills for order %s: %w", orderID, err)
	}
	defer rows.Close()

	var out []domain.Fill
	for rows.Next() {
		var f domain.Fill
		var side string
		if err := rows.Scan(&f.ID, &f.OrderID, &f.Symbol, &side, &f.PriceTicks, &f.SizeUnits, &f.At); err != nil {
			return nil, fmt.Errorf("postgres: scan fill: %w", err)
		}
		f.Side = domain.OrderSide(side)
		out = append(out, f)
	}
	return out, rows.Err()
}
