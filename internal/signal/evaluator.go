// Package signal evaluates a configurable chain of predicates over
// indicator state and emits trade signals. The chain is a pure AND: a
// signal fires only when every active predicate passes on the same bar.
package signal

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

// ChainConfig describes one signal chain. Composition and thresholds are
// runtime configuration so tuning never requires a redeploy.
type ChainConfig struct {
	Direction  domain.Direction
	Predicates []Predicate
	SizeUnits  int64 // order size attached to emitted signals, 1e6 units
	TTL        time.Duration
}

// Validate checks the chain for obviously invalid composition.
func (c ChainConfig) Validate() error {
	if c.Direction != domain.DirectionLong && c.Direction != domain.DirectionShort {
		return fmt.Errorf("signal chain: direction must be long or short, got %q", c.Direction)
	}
	if len(c.Predicates) == 0 {
		return fmt.Errorf("signal chain: at least one predicate required")
	}
	if c.SizeUnits <= 0 {
		return fmt.Errorf("signal chain: size must be positive")
	}
	for _, p := range c.Predicates {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("signal chain: %w", err)
		}
	}
	return nil
}

// Evaluator applies a chain to successive indicator states for one symbol.
// It remembers the previous state so crossing predicates can compare
// against it; the first bar is non-triggering by construction.
type Evaluator struct {
	symbol  string
	chain   ChainConfig
	logger  *slog.Logger
	prev    domain.IndicatorState
	hasPrev bool
}

// NewEvaluator creates an Evaluator for symbol. The chain must already be
// validated.
func NewEvaluator(symbol string, chain ChainConfig, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		symbol: symbol,
		chain:  chain,
		logger: logger.With(slog.String("component", "evaluator"), slog.String("symbol", symbol)),
	}
}

// OnState consumes the indicator state for a newly closed bar. It returns
// the emitted signal and true when every predicate in the chain passed.
func (e *Evaluator) OnState(cur domain.IndicatorState) (domain.Signal, bool) {
	prev, hasPrev := e.prev, e.hasPrev
	e.prev, e.hasPrev = cur, true

	fired, names := Evaluate(e.chain, prev, cur, hasPrev)
	if !fired {
		return domain.Signal{}, false
	}

	now := time.Now().UTC()
	sig := domain.Signal{
		ID:         uuid.New().String(),
		Symbol:     e.symbol,
		Direction:  e.chain.Direction,
		PriceTicks: domain.PriceToTicks(cur.BarClose),
		SizeUnits:  e.chain.SizeUnits,
		Predicates: names,
		BarTime:    cur.BarTime,
		CreatedAt:  now,
	}
	if e.chain.TTL > 0 {
		sig.ExpiresAt = now.Add(e.chain.TTL)
	}
	e.logger.Info("signal fired",
		slog.String("signal_id", sig.ID),
		slog.String("direction", string(sig.Direction)),
		slog.Any("predicates", names),
	)
	return sig, true
}

// Evaluate runs the chain's interpreter loop over one bar transition. It
// returns whether every predicate passed, and the names of the predicates
// evaluated. Short-circuits on the first failing predicate.
func Evaluate(chain ChainConfig, prev, cur domain.IndicatorState, hasPrev bool) (bool, []string) {
	names := make([]string, 0, len(chain.Predicates))
	for _, p := range chain.Predicates {
		if !evalPredicate(p, prev, cur, hasPrev) {
			return false, nil
		}
		names = append(names, p.Name())
	}
	return true, names
}
