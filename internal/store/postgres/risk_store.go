package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

// RiskStore implements domain.RiskStore using PostgreSQL. Counters are
// keyed by (account, day) so each trading day gets a fresh row.
type RiskStore struct {
	pool *pgxpool.Pool
}

// NewRiskStore creates a new RiskStore backed by the given connection pool.
func NewRiskStore(pool *pgxpool.Pool) *RiskStore {
	return &RiskStore{pool: pool}
}

// Save upserts the counters for the account's trading day.
func (s *RiskStore) Save(ctx context.Context, c domain.RiskCounters) error {
	positions, err := json.Marshal(c.OpenPositions)
	if err != nil {
		return fmt.Errorf("postgres: marshal open positions: %w", err)
	}

	const query = `
		INSERT INTO risk_counters (account, day, daily_pnl, consecutive_losses, trades_today, open_positions, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (account, day) DO UPDATE SET
			daily_pnl = EXCLUDED.daily_pnl,
			consecutive_losses = EXCLUDED.consecutive_losses,
			trades_today = EXCLUDED.trades_today,
			open_positions = EXCLUDED.open_positions,
			updated_at = NOW()`

	_, err = s.pool.Exec(ctx, query,
		c.Account, c.Day.UTC().Truncate(24*time.Hour), c.DailyPnL,
		c.ConsecutiveLosses, c.TradesToday, positions,
	)
	if err != nil {
		return fmt.Errorf("postgres: save risk counters for %s: %w", c.Account, err)
	}
	return nil
}

// Load fetches the counters for the account's trading day. Returns
// domain.ErrNotFound when the day has no row yet.
func (s *RiskStore) Load(ctx context.Context, account string, day time.Time) (domain.RiskCounters, error) {
	const query = `
		SELECT account, day, daily_pnl, consecutive_losses, trades_today, open_positions, updated_at
		FROM risk_counters
		WHERE account = $1 AND day = $2`

	var c domain.RiskCounters
	var pnl string
	var positions []byte
	err := s.pool.QueryRow(ctx, query, account, day.UTC().Truncate(24*time.Hour)).Scan(
		&c.Account, &c.Day, &pnl, &c.ConsecutiveLosses, &c.TradesToday, &positions, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RiskCounters{}, fmt.Errorf("postgres: risk counters for %s: %w", account, domain.ErrNotFound)
		}
		return domain.RiskCounters{}, fmt.Errorf("postgres: load risk counters for %s: %w", account, err)
	}

	c.DailyPnL, err = decimal.NewFromString(pnl)
	if err != nil {
		return domain.RiskCounters{}, fmt.Errorf("postgres: risk counters pnl for %s: %w", account, err)
	}
	if err := json.Unmarshal(positions, &c.OpenPositions); err != nil {
		return domain.RiskCounters{}, fmt.Errorf("postgres: unmarshal open positions for %s: %w", account, err)
	}
	if c.OpenPositions == nil {
		c.OpenPositions = make(map[string]int64)
	}
	return c, nil
}
