package feed

import (
	"time"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

// BarBuilder aggregates ticks for one symbol into fixed-interval OHLC bars.
// It is a pure per-symbol pipeline stage driven from a single goroutine.
type BarBuilder struct {
	symbol   string
	interval time.Duration
	cur      *domain.Bar
}

// NewBarBuilder creates a BarBuilder emitting bars of the given interval.
func NewBarBuilder(symbol string, interval time.Duration) *BarBuilder {
	return &BarBuilder{symbol: symbol, interval: interval}
}

// OnTick folds a tick into the current bar. When the tick falls past the
// current bar's end, the finished bar is returned with ok=true and a new
// bar is started from this tick.
func (b *BarBuilder) OnTick(tick domain.TickEvent) (domain.Bar, bool) {
	start := tick.Timestamp.Truncate(b.interval)

	if b.cur == nil {
		b.cur = b.newBar(start, tick)
		return domain.Bar{}, false
	}

	if !start.After(b.cur.Start) {
		if tick.PriceTicks > b.cur.HighTicks {
			b.cur.HighTicks = tick.PriceTicks
		}
		if tick.PriceTicks < b.cur.LowTicks {
			b.cur.LowTicks = tick.PriceTicks
		}
		b.cur.CloseTicks = tick.PriceTicks
		b.cur.Volume += tick.Size()
		return domain.Bar{}, false
	}

	finished := *b.cur
	b.cur = b.newBar(start, tick)
	return finished, true
}

// Flush returns the in-progress bar, if any, without closing it. Used at
// shutdown so a partially built bar is not lost silently.
func (b *BarBuilder) Flush() (domain.Bar, bool) {
	if b.cur == nil {
		return domain.Bar{}, false
	}
	return *b.cur, true
}

func (b *BarBuilder) newBar(start time.Time, tick domain.TickEvent) *domain.Bar {
	return &domain.Bar{
		Symbol:     b.symbol,
		OpenTicks:  tick.PriceTicks,
		HighTicks:  tick.PriceTicks,
		LowTicks:   tick.PriceTicks,
		CloseTicks: tick.PriceTicks,
		Volume:     tick.Size(),
		Start:      start,
		End:        start.Add(b.interval),
	}
}
