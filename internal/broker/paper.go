package broker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

// PaperBroker fills every order at its requested price after a configurable
// simulated latency. Used in paper mode and in tests.
type PaperBroker struct {
	latency time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	placed int
	closed int
}

// NewPaperBroker creates a PaperBroker with the given simulated ack latency.
func NewPaperBroker(latency time.Duration, logger *slog.Logger) *PaperBroker {
	return &PaperBroker{
		latency: latency,
		logger:  logger.With(slog.String("component", "paper_broker")),
	}
}

// Place acknowledges the order as filled at its requested price once the
// simulated latency has passed, or returns the context error if it expires
// first.
func (b *PaperBroker) Place(ctx context.Context, o domain.Order) (domain.BrokerAck, error) {
	if b.latency > 0 {
		select {
		case <-ctx.Done():
			return domain.BrokerAck{}, ctx.Err()
		case <-time.After(b.latency):
		}
	}
	b.mu.Lock()
	b.placed++
	b.mu.Unlock()
	b.logger.Debug("paper fill",
		slog.String("order_id", o.ID),
		slog.Float64("price", o.EntryPrice()),
	)
	return domain.BrokerAck{
		OrderID:     o.ID,
		Filled:      true,
		FilledTicks: o.EntryTicks,
		At:          time.Now().UTC(),
	}, nil
}

// Close always succeeds in paper mode.
func (b *PaperBroker) Close(ctx context.Context, o domain.Order, exitTicks int64) error {
	b.mu.Lock()
	b.closed++
	b.mu.Unlock()
	return nil
}

// Stats returns how many orders the paper broker has placed and closed.
func (b *PaperBroker) Stats() (placed, closed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.placed, b.closed
}
