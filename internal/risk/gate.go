// Package risk validates candidate signals against account-level limits
// before they become orders. The gate is the only cross-symbol shared
// state in the pipeline; check-and-reserve runs as a single critical
// section so concurrent signals can never over-commit exposure.
package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

// Limits holds the tunable parameters for pre-trade risk checks.
type Limits struct {
	MaxPositions         int
	MaxExposureFraction  float64
	Capital              decimal.Decimal
	DailyLossLimit       decimal.Decimal
	ConsecutiveLossLimit int
	MaxTradesPerDay      int
	StopLossPct          float64
	TakeProfitPct        float64
}

// Gate admits or rejects candidate signals and tracks the per-account
// daily risk counters. Counters are persisted through a RiskStore so they
// survive a restart within the same trading day.
type Gate struct {
	account string
	limits  Limits
	store   domain.RiskStore
	prices  domain.PriceCache
	logger  *slog.Logger

	mu       sync.Mutex
	counters domain.RiskCounters

	now func() time.Time
}

// NewGate creates a Gate with empty counters for the current UTC day.
// Call Restore before use to reload persisted state.
func NewGate(account string, limits Limits, store domain.RiskStore, prices domain.PriceCache, logger *slog.Logger) *Gate {
	g := &Gate{
		account: account,
		limits:  limits,
		store:   store,
		prices:  prices,
		logger:  logger.With(slog.String("component", "risk_gate")),
		now:     func() time.Time { return time.Now().UTC() },
	}
	g.counters = emptyCounters(account, g.today())
	return g
}

func emptyCounters(account string, day time.Time) domain.RiskCounters {
	return domain.RiskCounters{
		Account:       account,
		Day:           day,
		DailyPnL:      decimal.Zero,
		OpenPositions: make(map[string]int64),
	}
}

func (g *Gate) today() time.Time {
	return g.now().Truncate(24 * time.Hour)
}

// Restore reloads the persisted counters for the current trading day. A
// missing record is not an error; the gate starts the day fresh.
func (g *Gate) Restore(ctx context.Context) error {
	counters, err := g.store.Load(ctx, g.account, g.today())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("risk: restore counters: %w", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if counters.OpenPositions == nil {
		counters.OpenPositions = make(map[string]int64)
	}
	g.counters = counters
	g.logger.Info("risk counters restored",
		slog.String("day", counters.Day.Format("2006-01-02")),
		slog.Int("trades_today", counters.TradesToday),
		slog.Int("consecutive_losses", counters.ConsecutiveLosses),
	)
	return nil
}

// Admit validates a candidate signal against the risk limits in order,
// short-circuiting on the first failure. On success it reserves the
// position slot and trade-count increment before returning the admitted
// order, so a second concurrent candidate sees the updated state.
func (g *Gate) Admit(ctx context.Context, sig domain.Signal) (domain.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverLocked(ctx)

	// 1. Max concurrent positions.
	if len(g.counters.OpenPositions) >= g.limits.MaxPositions {
		return domain.Order{}, fmt.Errorf("risk: %d/%d positions open: %w",
			len(g.counters.OpenPositions), g.limits.MaxPositions, domain.ErrPositionLimit)
	}

	// 2. Max total exposure as a fraction of capital.
	exposure := g.exposureLocked(ctx)
	notional := decimal.New(sig.PriceTicks, -6).Mul(decimal.New(sig.SizeUnits, -6))
	maxExposure := g.limits.Capital.Mul(decimal.NewFromFloat(g.limits.MaxExposureFraction))
	if exposure.Add(notional).GreaterThan(maxExposure) {
		return domain.Order{}, fmt.Errorf("risk: exposure %s + %s exceeds %s: %w",
			exposure, notional, maxExposure, domain.ErrExposureLimit)
	}

	// 3. Daily loss limit.
	if g.counters.DailyPnL.LessThanOrEqual(g.limits.DailyLossLimit.Neg()) {
		return domain.Order{}, fmt.Errorf("risk: daily pnl %s at limit %s: %w",
			g.counters.DailyPnL, g.limits.DailyLossLimit, domain.ErrDailyLossLimit)
	}

	// 4. Consecutive-loss circuit breaker.
	if g.counters.ConsecutiveLosses >= g.limits.ConsecutiveLossLimit {
		return domain.Order{}, fmt.Errorf("risk: %d consecutive losses: %w",
			g.counters.ConsecutiveLosses, domain.ErrCircuitBreakerOpen)
	}

	// 5. Trade-frequency cap.
	if g.counters.TradesToday >= g.limits.MaxTradesPerDay {
		return domain.Order{}, fmt.Errorf("risk: %d/%d trades today: %w",
			g.counters.TradesToday, g.limits.MaxTradesPerDay, domain.ErrFrequencyLimit)
	}

	// Reserve before releasing the lock.
	g.counters.OpenPositions[sig.Symbol] += sig.SizeUnits
	g.counters.TradesToday++
	g.persistLocked(ctx)

	return g.buildOrder(sig), nil
}

// buildOrder creates the admitted order with stop-loss and take-profit
// levels fixed from the configured percentages.
func (g *Gate) buildOrder(sig domain.Signal) domain.Order {
	side := domain.OrderSideBuy
	slMult, tpMult := 1-g.limits.StopLossPct, 1+g.limits.TakeProfitPct
	if sig.Direction == domain.DirectionShort {
		side = domain.OrderSideSell
		slMult, tpMult = 1+g.limits.StopLossPct, 1-g.limits.TakeProfitPct
	}
	entry := float64(sig.PriceTicks)
	return domain.Order{
		ID:              uuid.New().String(),
		Symbol:          sig.Symbol,
		Side:            side,
		SizeUnits:       sig.SizeUnits,
		EntryTicks:      sig.PriceTicks,
		StopLossTicks:   int64(math.Round(entry * slMult)),
		TakeProfitTicks: int64(math.Round(entry * tpMult)),
		Status:          domain.OrderStatusPending,
		SignalID:        sig.ID,
		CreatedAt:       g.now(),
	}
}

// Settle consumes a close event from the order lifecycle manager: it
// updates daily P&L, the win/loss streak, and releases the position slot.
func (g *Gate) Settle(ctx context.Context, st domain.Settlement) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverLocked(ctx)

	g.counters.DailyPnL = g.counters.DailyPnL.Add(st.PnL)
	if st.Outcome == domain.OutcomeLoss {
		g.counters.ConsecutiveLosses++
	} else {
		g.counters.ConsecutiveLosses = 0
	}
	g.releaseLocked(st.Symbol, st.SizeUnits)
	g.persistLocked(ctx)

	g.logger.Info("settlement applied",
		slog.String("order_id", st.OrderID),
		slog.String("outcome", string(st.Outcome)),
		slog.String("pnl", st.PnL.String()),
		slog.Int("consecutive_losses", g.counters.ConsecutiveLosses),
	)
}

// Release frees a reserved position slot for an order that never reached a
// filled state (broker reject, timeout or cancel). The trade count is not
// rolled back; the attempt still counts against the frequency cap.
func (g *Gate) Release(ctx context.Context, symbol string, sizeUnits int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releaseLocked(symbol, sizeUnits)
	g.persistLocked(ctx)
}

// releaseLocked subtracts one order's reservation. Other live orders on
// the same symbol keep theirs; the entry is removed only when nothing
// remains reserved.
func (g *Gate) releaseLocked(symbol string, sizeUnits int64) {
	remaining := g.counters.OpenPositions[symbol] - sizeUnits
	if remaining <= 0 {
		delete(g.counters.OpenPositions, symbol)
		return
	}
	g.counters.OpenPositions[symbol] = remaining
}

// Counters returns a copy of the current counters for status reporting.
func (g *Gate) Counters() domain.RiskCounters {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.counters
	out.OpenPositions = make(map[string]int64, len(g.counters.OpenPositions))
	for k, v := range g.counters.OpenPositions {
		out.OpenPositions[k] = v
	}
	return out
}

// exposureLocked computes the current notional exposure using cached
// prices, falling back to zero-price symbols contributing nothing. Price
// cache failures do not block admission; the candidate's own notional is
// still counted.
func (g *Gate) exposureLocked(ctx context.Context) decimal.Decimal {
	if len(g.counters.OpenPositions) == 0 {
		return decimal.Zero
	}
	symbols := make([]string, 0, len(g.counters.OpenPositions))
	for s := range g.counters.OpenPositions {
		symbols = append(symbols, s)
	}
	prices, err := g.prices.GetPrices(ctx, symbols)
	if err != nil {
		g.logger.Warn("risk: price lookup for exposure failed",
			slog.String("error", err.Error()),
		)
		prices = map[string]float64{}
	}
	return g.counters.Exposure(prices)
}

// rolloverLocked resets the counters when the UTC day has changed since
// the last mutation.
func (g *Gate) rolloverLocked(ctx context.Context) {
	day := g.today()
	if g.counters.Day.Equal(day) {
		return
	}
	open := g.counters.OpenPositions
	g.logger.Info("risk day rollover",
		slog.String("from", g.counters.Day.Format("2006-01-02")),
		slog.String("to", day.Format("2006-01-02")),
	)
	g.counters = emptyCounters(g.account, day)
	// Positions held across midnight stay reserved.
	g.counters.OpenPositions = open
	g.persistLocked(ctx)
}

// persistLocked writes the counters through the store. Persistence errors
// are logged, not returned: dropping a counter write must not stall the
// trading path.
func (g *Gate) persistLocked(ctx context.Context) {
	g.counters.UpdatedAt = g.now()
	if err := g.store.Save(ctx, g.counters); err != nil {
		g.logger.Warn("risk: persist counters failed", slog.String("error", err.Error()))
	}
}
