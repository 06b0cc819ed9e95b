// Package executor consumes candidate signals from the shared signal
// channel and drives them through deduplication, expiry, the risk gate,
// and order submission.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

// Admitter validates a candidate signal and, on success, returns the
// admitted order with its risk reservation already taken. Implemented by
// the risk gate.
type Admitter interface {
	Admit(ctx context.Context, sig domain.Signal) (domain.Order, error)
}

// Submitter dispatches an admitted order to the broker. Implemented by the
// order lifecycle manager.
type Submitter interface {
	Submit(ctx context.Context, o domain.Order) error
}

// Alerter surfaces operator-facing alerts.
type Alerter interface {
	Alert(ctx context.Context, event, message string)
}

// Executor reads trade signals from a channel, applies deduplication and
// expiry checks, passes survivors to the risk gate, and submits admitted
// orders. Risk rejections drop the signal without retry.
type Executor struct {
	signalCh <-chan domain.Signal
	gate     Admitter
	orders   Submitter
	alerter  Alerter
	dedup    *Dedup
	logger   *slog.Logger

	cleanupInterval time.Duration
}

// New creates an Executor reading from signalCh.
func New(signalCh <-chan domain.Signal, gate Admitter, orders Submitter, alerter Alerter, logger *slog.Logger) *Executor {
	return &Executor{
		signalCh:        signalCh,
		gate:            gate,
		orders:          orders,
		alerter:         alerter,
		dedup:           NewDedup(2 * time.Minute),
		logger:          logger.With(slog.String("component", "executor")),
		cleanupInterval: 30 * time.Second,
	}
}

// Run processes signals until the context is cancelled, then drains any
// signals still buffered in the channel so in-flight candidates are not
// silently dropped.
func (e *Executor) Run(ctx context.Context) error {
	e.logger.Info("executor started")
	defer e.logger.Info("executor stopped")

	cleanupTicker := time.NewTicker(e.cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.drain()
			return ctx.Err()
		case sig, ok := <-e.signalCh:
			if !ok {
				return nil
			}
			e.process(ctx, sig)
		case <-cleanupTicker.C:
			e.dedup.Cleanup()
		}
	}
}

// process handles one candidate signal through the full admission path.
func (e *Executor) process(ctx context.Context, sig domain.Signal) {
	log := e.logger.With(
		slog.String("signal_id", sig.ID),
		slog.String("symbol", sig.Symbol),
		slog.String("direction", string(sig.Direction)),
	)

	if e.dedup.IsDuplicate(sig) {
		log.Debug("signal deduplicated, skipping")
		return
	}

	if !sig.ExpiresAt.IsZero() && time.Now().UTC().After(sig.ExpiresAt) {
		log.Warn("signal expired, skipping", slog.Time("expires_at", sig.ExpiresAt))
		return
	}

	o, err := e.gate.Admit(ctx, sig)
	if err != nil {
		log.Warn("signal rejected by risk gate", slog.String("error", err.Error()))
		e.alertOnTrip(ctx, sig, err)
		return
	}

	if err := e.orders.Submit(ctx, o); err != nil {
		log.Error("order submission failed",
			slog.String("order_id", o.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	log.Info("order dispatched", slog.String("order_id", o.ID))
}

// alertOnTrip raises an operator alert for rejections that indicate a
// tripped account-level breaker rather than an ordinary limit.
func (e *Executor) alertOnTrip(ctx context.Context, sig domain.Signal, err error) {
	if e.alerter == nil {
		return
	}
	switch {
	case errors.Is(err, domain.ErrCircuitBreakerOpen):
		e.alerter.Alert(ctx, "circuit_breaker",
			fmt.Sprintf("circuit breaker open, dropping signal for %s", sig.Symbol))
	case errors.Is(err, domain.ErrDailyLossLimit):
		e.alerter.Alert(ctx, "daily_loss_limit",
			fmt.Sprintf("daily loss limit reached, dropping signal for %s", sig.Symbol))
	}
}

// drain processes signals already buffered after cancellation, each under
// a short-lived context so shutdown cannot hang on external calls.
func (e *Executor) drain() {
	for {
		select {
		case sig, ok := <-e.signalCh:
			if !ok {
				return
			}
			e.logger.Warn("draining signal after shutdown", slog.String("signal_id", sig.ID))
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			e.process(drainCtx, sig)
			cancel()
		default:
			return
		}
	}
}

// SetDedupTTL replaces the dedup window. Useful for tests.
func (e *Executor) SetDedupTTL(ttl time.Duration) {
	e.dedup = NewDedup(ttl)
}
