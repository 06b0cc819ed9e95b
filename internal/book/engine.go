// Package book maintains per-symbol price-level aggregation for the live
// orderbook. Levels are kept in B-trees keyed by fixed-point price so every
// insert, update and delete is O(log n); the book is never rebuilt per event.
package book

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tidwall/btree"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

// Engine is the orderbook for a single symbol. Updates must come from a
// single writer; snapshot reads copy levels under a short-held read lock so
// readers never block the writer beyond a bounded critical section.
type Engine struct {
	symbol string
	logger *slog.Logger

	mu    sync.RWMutex
	bids  btree.Map[int64, int64] // price ticks -> size units
	asks  btree.Map[int64, int64]
	asOf  time.Time
}

// NewEngine creates an empty orderbook engine for symbol.
func NewEngine(symbol string, logger *slog.Logger) *Engine {
	return &Engine{
		symbol: symbol,
		logger: logger.With(slog.String("component", "book"), slog.String("symbol", symbol)),
	}
}

// Symbol returns the symbol this engine tracks.
func (e *Engine) Symbol() string { return e.symbol }

// Apply applies one incremental level update. A size of 0 removes the
// level. Updates that would cross the book are rejected with
// domain.ErrCrossedBook; callers drop the update and continue.
func (e *Engine) Apply(u domain.BookUpdate) error {
	if u.PriceTicks <= 0 {
		return fmt.Errorf("book %s: non-positive price %d", e.symbol, u.PriceTicks)
	}
	if u.SizeUnits < 0 {
		return fmt.Errorf("book %s: negative size %d", e.symbol, u.SizeUnits)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch u.Side {
	case domain.TickSideBuy:
		if u.SizeUnits == 0 {
			e.bids.Delete(u.PriceTicks)
			break
		}
		if bestAsk, _, ok := e.asks.Min(); ok && u.PriceTicks >= bestAsk {
			return fmt.Errorf("book %s: bid %d >= best ask %d: %w",
				e.symbol, u.PriceTicks, bestAsk, domain.ErrCrossedBook)
		}
		e.bids.Set(u.PriceTicks, u.SizeUnits)
	case domain.TickSideSell:
		if u.SizeUnits == 0 {
			e.asks.Delete(u.PriceTicks)
			break
		}
		if bestBid, _, ok := e.bids.Max(); ok && u.PriceTicks <= bestBid {
			return fmt.Errorf("book %s: ask %d <= best bid %d: %w",
				e.symbol, u.PriceTicks, bestBid, domain.ErrCrossedBook)
		}
		e.asks.Set(u.PriceTicks, u.SizeUnits)
	default:
		return fmt.Errorf("book %s: unknown side %q", e.symbol, u.Side)
	}

	e.asOf = u.Timestamp
	return nil
}

// BestBidAsk returns the current best bid and ask in price ticks. ok is
// false when either side of the book is empty.
func (e *Engine) BestBidAsk() (bid, ask int64, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	bestBid, _, hasBid := e.bids.Max()
	bestAsk, _, hasAsk := e.asks.Min()
	if !hasBid || !hasAsk {
		return 0, 0, false
	}
	return bestBid, bestAsk, true
}

// Depth returns the number of bid and ask levels currently tracked.
func (e *Engine) Depth() (bids, asks int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bids.Len(), e.asks.Len()
}

// Snapshot copies the current book into an OrderbookSnapshot. Bids are
// returned descending, asks ascending. The returned snapshot is owned by
// the caller.
func (e *Engine) Snapshot() domain.OrderbookSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := domain.OrderbookSnapshot{
		Symbol:    e.symbol,
		Bids:      make([]domain.PriceLevel, 0, e.bids.Len()),
		Asks:      make([]domain.PriceLevel, 0, e.asks.Len()),
		Timestamp: e.asOf,
	}

	e.bids.Reverse(func(price, size int64) bool {
		snap.Bids = append(snap.Bids, domain.PriceLevel{PriceTicks: price, SizeUnits: size})
		return true
	})
	e.asks.Scan(func(price, size int64) bool {
		snap.Asks = append(snap.Asks, domain.PriceLevel{PriceTicks: price, SizeUnits: size})
		return true
	})

	if len(snap.Bids) > 0 {
		snap.BestBid = snap.Bids[0].PriceTicks
	}
	if len(snap.Asks) > 0 {
		snap.BestAsk = snap.Asks[0].PriceTicks
	}
	return snap
}

// Reset clears both sides of the book, e.g. after a feed resync.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bids.Clear()
	e.asks.Clear()
	e.logger.Info("orderbook reset")
}
