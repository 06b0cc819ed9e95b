package executor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

type fakeGate struct {
	mu       sync.Mutex
	admitted []domain.Signal
	err      error
}

func (g *fakeGate) Admit(_ context.Context, sig domain.Signal) (domain.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return domain.Order{}, g.err
	}
	g.admitted = append(g.admitted, sig)
	return domain.Order{ID: "ord-" + sig.ID, Symbol: sig.Symbol, Status: domain.OrderStatusPending}, nil
}

func (g *fakeGate) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.admitted)
}

type fakeSubmitter struct {
	mu        sync.Mutex
	submitted []domain.Order
}

func (s *fakeSubmitter) Submit(_ context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, o)
	return nil
}

func (s *fakeSubmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.submitted)
}

type fakeAlerter struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeAlerter) Alert(_ context.Context, event, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeAlerter) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func testSignal(id string, barTime time.Time) domain.Signal {
	return domain.Signal{
		ID:         id,
		Symbol:     "BTC-USD",
		Direction:  domain.DirectionLong,
		PriceTicks: domain.PriceToTicks(100),
		SizeUnits:  domain.PriceToTicks(1),
		BarTime:    barTime,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestDedupKeysOnBarNotID(t *testing.T) {
	d := NewDedup(time.Minute)
	barTime := time.Date(2026, 8, 1, 12, 1, 0, 0, time.UTC)

	assert.False(t, d.IsDuplicate(testSignal("a", barTime)))
	// Same bar, fresh UUID: still a duplicate.
	assert.True(t, d.IsDuplicate(testSignal("b", barTime)))
	// Next bar is a new candidate.
	assert.False(t, d.IsDuplicate(testSignal("c", barTime.Add(time.Minute))))

	// Opposite direction on the same bar is not a duplicate.
	short := testSignal("d", barTime)
	short.Direction = domain.DirectionShort
	assert.False(t, d.IsDuplicate(short))
}

func TestDedupExpiry(t *testing.T) {
	d := NewDedup(10 * time.Millisecond)
	barTime := time.Date(2026, 8, 1, 12, 1, 0, 0, time.UTC)

	assert.False(t, d.IsDuplicate(testSignal("a", barTime)))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, d.IsDuplicate(testSignal("b", barTime)), "expired entries are re-admitted")
}

func TestDedupCleanupBoundsMap(t *testing.T) {
	d := NewDedup(5 * time.Millisecond)
	barTime := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		d.IsDuplicate(testSignal("x", barTime.Add(time.Duration(i)*time.Minute)))
	}
	time.Sleep(10 * time.Millisecond)
	d.Cleanup()

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Empty(t, d.seen)
}

func runExecutor(t *testing.T, gate *fakeGate, orders *fakeSubmitter, alerter *fakeAlerter) (chan domain.Signal, context.CancelFunc, *sync.WaitGroup) {
	t.Helper()
	signalCh := make(chan domain.Signal, 16)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := New(signalCh, gate, orders, alerter, logger)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = e.Run(ctx)
	}()
	return signalCh, cancel, &wg
}

func TestExecutorAdmitsAndSubmits(t *testing.T) {
	gate := &fakeGate{}
	orders := &fakeSubmitter{}
	signalCh, cancel, wg := runExecutor(t, gate, orders, &fakeAlerter{})
	defer func() { cancel(); wg.Wait() }()

	barTime := time.Date(2026, 8, 1, 12, 1, 0, 0, time.UTC)
	signalCh <- testSignal("a", barTime)

	require.Eventually(t, func() bool { return orders.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, gate.count())
}

func TestExecutorDropsDuplicates(t *testing.T) {
	gate := &fakeGate{}
	orders := &fakeSubmitter{}
	signalCh, cancel, wg := runExecutor(t, gate, orders, &fakeAlerter{})
	defer func() { cancel(); wg.Wait() }()

	barTime := time.Date(2026, 8, 1, 12, 1, 0, 0, time.UTC)
	signalCh <- testSignal("a", barTime)
	signalCh <- testSignal("b", barTime)

	require.Eventually(t, func() bool { return orders.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, gate.count(), "duplicate never reaches the gate")
}

func TestExecutorDropsExpiredSignals(t *testing.T) {
	gate := &fakeGate{}
	orders := &fakeSubmitter{}
	signalCh, cancel, wg := runExecutor(t, gate, orders, &fakeAlerter{})
	defer func() { cancel(); wg.Wait() }()

	sig := testSignal("a", time.Date(2026, 8, 1, 12, 1, 0, 0, time.UTC))
	sig.ExpiresAt = time.Now().UTC().Add(-time.Second)
	signalCh <- sig

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, gate.count())
	assert.Zero(t, orders.count())
}

func TestExecutorAlertsOnBreakerTrip(t *testing.T) {
	gate := &fakeGate{err: domain.ErrCircuitBreakerOpen}
	orders := &fakeSubmitter{}
	alerter := &fakeAlerter{}
	signalCh, cancel, wg := runExecutor(t, gate, orders, alerter)
	defer func() { cancel(); wg.Wait() }()

	signalCh <- testSignal("a", time.Date(2026, 8, 1, 12, 1, 0, 0, time.UTC))

	require.Eventually(t, func() bool {
		for _, e := range alerter.seen() {
			if e == "circuit_breaker" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, orders.count(), "rejected signals are dropped without retry")
}

func TestExecutorDrainsBufferedSignalsOnShutdown(t *testing.T) {
	gate := &fakeGate{}
	orders := &fakeSubmitter{}
	signalCh := make(chan domain.Signal, 16)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := New(signalCh, gate, orders, &fakeAlerter{}, logger)

	barTime := time.Date(2026, 8, 1, 12, 1, 0, 0, time.UTC)
	signalCh <- testSignal("a", barTime)
	signalCh <- testSignal("b", barTime.Add(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 2, orders.count(), "buffered signals are processed during drain")
}
