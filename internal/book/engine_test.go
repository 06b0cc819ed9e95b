package book

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func update(side domain.TickSide, price, size int64) domain.BookUpdate {
	return domain.BookUpdate{
		Symbol:     "BTC-USD",
		Side:       side,
		PriceTicks: price,
		SizeUnits:  size,
		Timestamp:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestApplySetsAndRemovesLevels(t *testing.T) {
	e := NewEngine("BTC-USD", testLogger())

	require.NoError(t, e.Apply(update(domain.TickSideBuy, 100_000000, 5_000000)))
	require.NoError(t, e.Apply(update(domain.TickSideSell, 101_000000, 3_000000)))

	bid, ask, ok := e.BestBidAsk()
	require.True(t, ok)
	assert.Equal(t, int64(100_000000), bid)
	assert.Equal(t, int64(101_000000), ask)

	// Size 0 removes the level.
	require.NoError(t, e.Apply(update(domain.TickSideBuy, 100_000000, 0)))
	_, _, ok = e.BestBidAsk()
	assert.False(t, ok, "book with an empty side has no BBO")

	bids, asks := e.Depth()
	assert.Equal(t, 0, bids)
	assert.Equal(t, 1, asks)
}

func TestApplyUpdatesExistingLevelInPlace(t *testing.T) {
	e := NewEngine("BTC-USD", testLogger())

	require.NoError(t, e.Apply(update(domain.TickSideBuy, 100_000000, 5_000000)))
	require.NoError(t, e.Apply(update(domain.TickSideBuy, 100_000000, 9_000000)))

	snap := e.Snapshot()
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, int64(9_000000), snap.Bids[0].SizeUnits)
}

func TestApplyRejectsCrossedBook(t *testing.T) {
	e := NewEngine("BTC-USD", testLogger())

	require.NoError(t, e.Apply(update(domain.TickSideBuy, 100_000000, 5_000000)))
	require.NoError(t, e.Apply(update(domain.TickSideSell, 101_000000, 3_000000)))

	// Bid at or above the best ask crosses.
	err := e.Apply(update(domain.TickSideBuy, 101_000000, 1_000000))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCrossedBook))

	err = e.Apply(update(domain.TickSideBuy, 102_000000, 1_000000))
	assert.True(t, errors.Is(err, domain.ErrCrossedBook))

	// Ask at or below the best bid crosses.
	err = e.Apply(update(domain.TickSideSell, 100_000000, 1_000000))
	assert.True(t, errors.Is(err, domain.ErrCrossedBook))

	err = e.Apply(update(domain.TickSideSell, 99_000000, 1_000000))
	assert.True(t, errors.Is(err, domain.ErrCrossedBook))

	// The rejected updates left the book untouched.
	bid, ask, ok := e.BestBidAsk()
	require.True(t, ok)
	assert.Equal(t, int64(100_000000), bid)
	assert.Equal(t, int64(101_000000), ask)
}

func TestApplyValidatesInput(t *testing.T) {
	e := NewEngine("BTC-USD", testLogger())

	assert.Error(t, e.Apply(update(domain.TickSideBuy, 0, 1_000000)))
	assert.Error(t, e.Apply(update(domain.TickSideBuy, -5, 1_000000)))
	assert.Error(t, e.Apply(update(domain.TickSideBuy, 100_000000, -1)))
	assert.Error(t, e.Apply(update(domain.TickSide("middle"), 100_000000, 1_000000)))
}

func TestSnapshotOrdering(t *testing.T) {
	e := NewEngine("BTC-USD", testLogger())

	for _, price := range []int64{98_000000, 100_000000, 99_000000} {
		require.NoError(t, e.Apply(update(domain.TickSideBuy, price, 1_000000)))
	}
	for _, price := range []int64{103_000000, 101_000000, 102_000000} {
		require.NoError(t, e.Apply(update(domain.TickSideSell, price, 1_000000)))
	}

	snap := e.Snapshot()
	require.Len(t, snap.Bids, 3)
	require.Len(t, snap.Asks, 3)

	// Bids descending, asks ascending.
	assert.Equal(t, int64(100_000000), snap.Bids[0].PriceTicks)
	assert.Equal(t, int64(99_000000), snap.Bids[1].PriceTicks)
	assert.Equal(t, int64(98_000000), snap.Bids[2].PriceTicks)
	assert.Equal(t, int64(101_000000), snap.Asks[0].PriceTicks)
	assert.Equal(t, int64(102_000000), snap.Asks[1].PriceTicks)
	assert.Equal(t, int64(103_000000), snap.Asks[2].PriceTicks)

	assert.Equal(t, int64(100_000000), snap.BestBid)
	assert.Equal(t, int64(101_000000), snap.BestAsk)
	assert.InDelta(t, 100.5, snap.MidPrice(), 1e-9)
	assert.InDelta(t, 1.0, snap.Spread(), 1e-9)
}

func TestSnapshotIsACopy(t *testing.T) {
	e := NewEngine("BTC-USD", testLogger())
	require.NoError(t, e.Apply(update(domain.TickSideBuy, 100_000000, 5_000000)))

	snap := e.Snapshot()
	snap.Bids[0].SizeUnits = 42

	again := e.Snapshot()
	assert.Equal(t, int64(5_000000), again.Bids[0].SizeUnits)
}

func TestReset(t *testing.T) {
	e := NewEngine("BTC-USD", testLogger())
	require.NoError(t, e.Apply(update(domain.TickSideBuy, 100_000000, 5_000000)))
	require.NoError(t, e.Apply(update(domain.TickSideSell, 101_000000, 5_000000)))

	e.Reset()

	bids, asks := e.Depth()
	assert.Equal(t, 0, bids)
	assert.Equal(t, 0, asks)
}
