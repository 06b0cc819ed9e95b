// Package pipeline runs one processing pipeline per symbol: feed events go
// through the orderbook engine and bar builder, closed bars update the
// indicator engine, and the signal evaluator emits candidate signals to
// the shared signal channel. Symbols share no mutable state with each
// other; the risk gate downstream is the only cross-symbol resource.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/quantbot/internal/book"
	"github.com/alanyoungcy/quantbot/internal/domain"
	"github.com/alanyoungcy/quantbot/internal/feed"
	"github.com/alanyoungcy/quantbot/internal/indicator"
	"github.com/alanyoungcy/quantbot/internal/order"
	"github.com/alanyoungcy/quantbot/internal/signal"
)

const (
	eventBuffer     = 256
	publishInterval = time.Second
)

// Pipeline is the single-symbol processing chain. All stages run on one
// goroutine so the orderbook has a single writer and the indicator state
// needs no locking.
type Pipeline struct {
	symbol    string
	book      *book.Engine
	bars      *feed.BarBuilder
	indicator *indicator.Engine
	evaluator *signal.Evaluator
	orders    *order.Manager
	prices    domain.PriceCache
	books     domain.OrderbookCache
	signalCh  chan<- domain.Signal
	logger    *slog.Logger

	tickCh chan domain.TickEvent
	bookCh chan domain.BookUpdate

	lastPublish time.Time
	dropped     atomic.Int64

	stateMu   sync.RWMutex
	lastState domain.IndicatorState
	hasState  bool
}

// New creates a Pipeline for symbol. orders may be nil in monitor mode;
// stop-loss/take-profit monitoring is skipped then.
func New(
	symbol string,
	bookEngine *book.Engine,
	bars *feed.BarBuilder,
	ind *indicator.Engine,
	eval *signal.Evaluator,
	orders *order.Manager,
	prices domain.PriceCache,
	books domain.OrderbookCache,
	signalCh chan<- domain.Signal,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		symbol:    symbol,
		book:      bookEngine,
		bars:      bars,
		indicator: ind,
		evaluator: eval,
		orders:    orders,
		prices:    prices,
		books:     books,
		signalCh:  signalCh,
		logger:    logger.With(slog.String("component", "pipeline"), slog.String("symbol", symbol)),
		tickCh:    make(chan domain.TickEvent, eventBuffer),
		bookCh:    make(chan domain.BookUpdate, eventBuffer),
	}
}

// Run consumes events until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started")
	defer p.logger.Info("pipeline stopped")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick := <-p.tickCh:
			p.handleTick(ctx, tick)
		case update := <-p.bookCh:
			p.handleBook(ctx, update)
		}
	}
}

// offerTick enqueues a tick, dropping it when the buffer is full so a slow
// pipeline cannot stall the feed reader.
func (p *Pipeline) offerTick(tick domain.TickEvent) {
	select {
	case p.tickCh <- tick:
	default:
		p.dropped.Add(1)
	}
}

func (p *Pipeline) offerBook(update domain.BookUpdate) {
	select {
	case p.bookCh <- update:
	default:
		p.dropped.Add(1)
	}
}

func (p *Pipeline) handleTick(ctx context.Context, tick domain.TickEvent) {
	if p.orders != nil {
		p.orders.OnTick(ctx, tick)
	}

	if err := p.prices.SetPrice(ctx, p.symbol, tick.Price(), tick.Timestamp); err != nil {
		p.logger.Debug("price cache update failed", slog.String("error", err.Error()))
	}

	bar, closed := p.bars.OnTick(tick)
	if !closed {
		return
	}

	state := p.indicator.OnBar(bar)
	p.stateMu.Lock()
	p.lastState = state
	p.hasState = true
	p.stateMu.Unlock()

	sig, fired := p.evaluator.OnState(state)
	if !fired {
		return
	}

	select {
	case <-ctx.Done():
	case p.signalCh <- sig:
	}
}

func (p *Pipeline) handleBook(ctx context.Context, update domain.BookUpdate) {
	if err := p.book.Apply(update); err != nil {
		if errors.Is(err, domain.ErrCrossedBook) {
			// Malformed or out-of-order market data: drop, log, continue.
			p.logger.Warn("crossed book update dropped",
				slog.String("side", string(update.Side)),
				slog.Int64("price_ticks", update.PriceTicks),
			)
			return
		}
		p.logger.Warn("book update rejected", slog.String("error", err.Error()))
		return
	}
	p.publishSnapshot(ctx, update.Timestamp)
}

// publishSnapshot pushes the current book to the snapshot cache at most
// once per publishInterval.
func (p *Pipeline) publishSnapshot(ctx context.Context, now time.Time) {
	if now.Sub(p.lastPublish) < publishInterval {
		return
	}
	p.lastPublish = now
	if err := p.books.SetSnapshot(ctx, p.symbol, p.book.Snapshot()); err != nil {
		p.logger.Debug("orderbook cache update failed", slog.String("error", err.Error()))
	}
}

// Dropped returns how many events were shed due to full buffers.
func (p *Pipeline) Dropped() int64 { return p.dropped.Load() }

// Symbol returns the symbol this pipeline processes.
func (p *Pipeline) Symbol() string { return p.symbol }

// BookSnapshot returns a copy of the current orderbook.
func (p *Pipeline) BookSnapshot() domain.OrderbookSnapshot {
	return p.book.Snapshot()
}

// Indicators returns the state computed from the most recent closed bar.
// The bool is false until the first bar closes.
func (p *Pipeline) Indicators() (domain.IndicatorState, bool) {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.lastState, p.hasState
}
