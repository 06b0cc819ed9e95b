package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

// SettlementStore implements domain.SettlementStore using PostgreSQL.
type SettlementStore struct {
	pool *pgxpool.Pool
}

// NewSettlementStore creates a new SettlementStore backed by the given pool.
func NewSettlementStore(pool *pgxpool.Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

// Insert records a settled position. Re-settling the same order is a
// conflict and returns an error.
func (s *SettlementStore) Insert(ctx context.Context, st domain.Settlement) error {
	const query = `
		INSERT INTO settlements (order_id, symbol, size_units, outcome, pnl, status, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		st.OrderID, st.Symbol, st.SizeUnits, string(st.Outcome), st.PnL, string(st.Status), st.At,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert settlement for order %s: %w", st.OrderID, err)
	}
	return nil
}

// ListByDay returns all settlements within the UTC day containing the given time.
func (s *SettlementStore) ListByDay(ctx context.Context, day time.Time) ([]domain.Settlement, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	rows, err := s.pool.Query(ctx,
		`SELECT order_id, symbol, size_units, outcome, pnl, status, settled_at
		 FROM settlements
		 WHERE settled_at >= $1 AND settled_at < $2
		 ORDER BY settled_at`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settlements for %s: %w", start.Format("2006-01-02"), err)
	}
	defer rows.Close()

	var out []domain.Settlement
	for rows.Next() {
		var st domain.Settlement
		var outcome, status, pnl string
		if err := rows.Scan(&st.OrderID, &st.Symbol, &st.SizeUnits, &outcome, &pnl, &status, &st.At); err != nil {
			return nil, fmt.Errorf("postgres: scan settlement: %w", err)
		}
		st.Outcome = domain.Outcome(outcome)
		st.Status = domain.OrderStatus(status)
		parsed, err := decimal.NewFromString(pnl)
		if err != nil {
			return nil, fmt.Errorf("postgres: settlement pnl for order %s: %w", st.OrderID, err)
		}
		st.PnL = parsed
		out = append(out, st)
	}
	return out, rows.Err()
}
