package pipeline

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

// Router fans feed events out to per-symbol pipelines. It implements
// feed.Handler; events for unknown symbols are dropped with a debug log.
type Router struct {
	pipelines map[string]*Pipeline
	bus       domain.TickBus
	logger    *slog.Logger
}

// NewRouter creates a Router over the given pipelines, keyed by symbol.
// bus may be nil; when set, every tick is also published for external
// monitors.
func NewRouter(pipelines map[string]*Pipeline, bus domain.TickBus, logger *slog.Logger) *Router {
	return &Router{
		pipelines: pipelines,
		bus:       bus,
		logger:    logger.With(slog.String("component", "router")),
	}
}

// OnTick routes a tick to its symbol's pipeline.
func (r *Router) OnTick(ctx context.Context, tick domain.TickEvent) {
	p, ok := r.pipelines[tick.Symbol]
	if !ok {
		r.logger.Debug("tick for unknown symbol dropped", slog.String("symbol", tick.Symbol))
		return
	}
	p.offerTick(tick)
	r.publish(ctx, tick)
}

// OnBookUpdate routes a book update to its symbol's pipeline.
func (r *Router) OnBookUpdate(ctx context.Context, update domain.BookUpdate) {
	p, ok := r.pipelines[update.Symbol]
	if !ok {
		r.logger.Debug("book update for unknown symbol dropped", slog.String("symbol", update.Symbol))
		return
	}
	p.offerBook(update)
}

// publish mirrors the tick onto the bus for external consumers. Failures
// are logged at debug; the bus is observability, not the trading path.
func (r *Router) publish(ctx context.Context, tick domain.TickEvent) {
	if r.bus == nil {
		return
	}
	payload, err := tickPayload(tick)
	if err != nil {
		return
	}
	if err := r.bus.Publish(ctx, "ticks", payload); err != nil {
		r.logger.Debug("tick publish failed", slog.String("error", err.Error()))
	}
}

// Run starts every pipeline on its own goroutine and blocks until the
// context is cancelled.
func (r *Router) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range r.pipelines {
		p := p
		g.Go(func() error {
			return p.Run(gctx)
		})
	}
	return g.Wait()
}
