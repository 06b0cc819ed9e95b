package order

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

type fakeBroker struct {
	mu      sync.Mutex
	placeFn func(ctx context.Context, o domain.Order) (domain.BrokerAck, error)
	closed  []string
}

func (b *fakeBroker) Place(ctx context.Context, o domain.Order) (domain.BrokerAck, error) {
	b.mu.Lock()
	fn := b.placeFn
	b.mu.Unlock()
	if fn == nil {
		return domain.BrokerAck{OrderID: o.ID, Filled: true, At: time.Now().UTC()}, nil
	}
	return fn(ctx, o)
}

func (b *fakeBroker) Close(_ context.Context, o domain.Order, _ int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = append(b.closed, o.ID)
	return nil
}

func (b *fakeBroker) closedOrders() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.closed...)
}

type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]domain.Order)}
}

func (s *fakeOrderStore) Create(_ context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	return nil
}

func (s *fakeOrderStore) Update(_ context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	return nil
}

func (s *fakeOrderStore) GetByID(_ context.Context, id string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (s *fakeOrderStore) ListOpen(context.Context, string) ([]domain.Order, error) { return nil, nil }

func (s *fakeOrderStore) ListBySymbol(context.Context, string, domain.ListOpts) ([]domain.Order, error) {
	return nil, nil
}

func (s *fakeOrderStore) ListRecent(context.Context, int) ([]domain.Order, error) { return nil, nil }

func (s *fakeOrderStore) get(id string) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

type fakeFillStore struct {
	mu    sync.Mutex
	fills []domain.Fill
}

func (s *fakeFillStore) Insert(_ context.Context, f domain.Fill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fills = append(s.fills, f)
	return nil
}

func (s *fakeFillStore) ListByDay(context.Context, time.Time) ([]domain.Fill, error) {
	return nil, nil
}

func (s *fakeFillStore) ListByOrder(context.Context, string) ([]domain.Fill, error) {
	return nil, nil
}

func (s *fakeFillStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fills)
}

type fakeSettlementStore struct {
	mu          sync.Mutex
	settlements []domain.Settlement
}

func (s *fakeSettlementStore) Insert(_ context.Context, st domain.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settlements = append(s.settlements, st)
	return nil
}

func (s *fakeSettlementStore) ListByDay(context.Context, time.Time) ([]domain.Settlement, error) {
	return nil, nil
}

func (s *fakeSettlementStore) all() []domain.Settlement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Settlement(nil), s.settlements...)
}

type fakeSettler struct {
	mu            sync.Mutex
	settled       []domain.Settlement
	released      []string
	releasedSizes []int64
}

func (f *fakeSettler) Settle(_ context.Context, st domain.Settlement) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settled = append(f.settled, st)
}

func (f *fakeSettler) Release(_ context.Context, symbol string, sizeUnits int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, symbol)
	f.releasedSizes = append(f.releasedSizes, sizeUnits)
}

func (f *fakeSettler) releasedSymbols() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.released...)
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

type fixture struct {
	manager     *Manager
	broker      *fakeBroker
	store       *fakeOrderStore
	fills       *fakeFillStore
	settlements *fakeSettlementStore
	settler     *fakeSettler
	alerter     *fakeAlerter
}

func newFixture(t *testing.T, timeout time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		broker:      &fakeBroker{},
		store:       newFakeOrderStore(),
		fills:       &fakeFillStore{},
		settlements: &fakeSettlementStore{},
		settler:     &fakeSettler{},
		alerter:     &fakeAlerter{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.manager = NewManager(f.broker, f.store, f.fills, f.settlements, f.settler, f.alerter, timeout, logger)
	return f
}

func pendingOrder(id string) domain.Order {
	return domain.Order{
		ID:              id,
		Symbol:          "BTC-USD",
		Side:            domain.OrderSideBuy,
		SizeUnits:       domain.PriceToTicks(1),
		EntryTicks:      domain.PriceToTicks(100),
		StopLossTicks:   domain.PriceToTicks(99),
		TakeProfitTicks: domain.PriceToTicks(102),
		Status:          domain.OrderStatusPending,
		SignalID:        "sig-1",
		CreatedAt:       time.Now().UTC(),
	}
}

func waitForStatus(t *testing.T, store *fakeOrderStore, id string, want domain.OrderStatus) domain.Order {
	t.Helper()
	var got domain.Order
	require.Eventually(t, func() bool {
		o, ok := store.get(id)
		got = o
		return ok && o.Status == want
	}, time.Second, 5*time.Millisecond, "order %s never reached %s", id, want)
	return got
}

func TestSubmitFilledOnAck(t *testing.T) {
	f := newFixture(t, time.Second)
	f.broker.placeFn = func(_ context.Context, o domain.Order) (domain.BrokerAck, error) {
		return domain.BrokerAck{
			OrderID:     o.ID,
			Filled:      true,
			FilledTicks: domain.PriceToTicks(100.5),
			At:          time.Now().UTC(),
		}, nil
	}

	require.NoError(t, f.manager.Submit(context.Background(), pendingOrder("ord-1")))

	got := waitForStatus(t, f.store, "ord-1", domain.OrderStatusFilled)
	assert.Equal(t, domain.PriceToTicks(100.5), got.EntryTicks, "fill price overrides the signal price")
	assert.NotNil(t, got.SubmittedAt)
	assert.NotNil(t, got.FilledAt)

	require.Eventually(t, func() bool { return f.fills.count() == 1 }, time.Second, 5*time.Millisecond)

	// Filled orders stay live for stop/take-profit tracking.
	open := f.manager.Open()
	require.Len(t, open, 1)
	assert.Equal(t, domain.OrderStatusFilled, open[0].Status)
}

func TestSubmitRequiresPending(t *testing.T) {
	f := newFixture(t, time.Second)
	o := pendingOrder("ord-1")
	o.Status = domain.OrderStatusFilled

	err := f.manager.Submit(context.Background(), o)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadTransition))
}

func TestBrokerRejection(t *testing.T) {
	f := newFixture(t, time.Second)
	f.broker.placeFn = func(_ context.Context, o domain.Order) (domain.BrokerAck, error) {
		return domain.BrokerAck{OrderID: o.ID, Filled: false, Message: "insufficient margin"}, nil
	}

	require.NoError(t, f.manager.Submit(context.Background(), pendingOrder("ord-1")))

	got := waitForStatus(t, f.store, "ord-1", domain.OrderStatusRejected)
	assert.Equal(t, domain.RejectReasonBroker, got.RejectReason)

	require.Eventually(t, func() bool {
		return len(f.settler.releasedSymbols()) == 1
	}, time.Second, 5*time.Millisecond, "rejection frees the risk slot")
	f.settler.mu.Lock()
	assert.Equal(t, []int64{domain.PriceToTicks(1)}, f.settler.releasedSizes)
	f.settler.mu.Unlock()
	assert.Contains(t, f.alerter.seen(), "order_rejected")
	assert.Empty(t, f.manager.Open())
}

func TestAckTimeoutRejects(t *testing.T) {
	f := newFixture(t, 30*time.Millisecond)
	f.broker.placeFn = func(ctx context.Context, _ domain.Order) (domain.BrokerAck, error) {
		<-ctx.Done()
		return domain.BrokerAck{}, ctx.Err()
	}

	require.NoError(t, f.manager.Submit(context.Background(), pendingOrder("ord-1")))

	got := waitForStatus(t, f.store, "ord-1", domain.OrderStatusRejected)
	assert.Equal(t, domain.RejectReasonTimeout, got.RejectReason)
	require.Eventually(t, func() bool {
		return len(f.settler.releasedSymbols()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCancelBeforeAck(t *testing.T) {
	f := newFixture(t, time.Second)
	release := make(chan struct{})
	f.broker.placeFn = func(_ context.Context, o domain.Order) (domain.BrokerAck, error) {
		<-release
		return domain.BrokerAck{OrderID: o.ID, Filled: true}, nil
	}

	require.NoError(t, f.manager.Submit(context.Background(), pendingOrder("ord-1")))
	require.NoError(t, f.manager.Cancel(context.Background(), "ord-1"))

	got, ok := f.store.get("ord-1")
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusCancelled, got.Status)
	assert.Contains(t, f.settler.releasedSymbols(), "BTC-USD")

	// The late ack arrives after cancellation and must be dropped.
	close(release)
	time.Sleep(50 * time.Millisecond)
	got, _ = f.store.get("ord-1")
	assert.Equal(t, domain.OrderStatusCancelled, got.Status)
	assert.Zero(t, f.fills.count())
}

func TestCancelAfterAckFails(t *testing.T) {
	f := newFixture(t, time.Second)

	require.NoError(t, f.manager.Submit(context.Background(), pendingOrder("ord-1")))
	waitForStatus(t, f.store, "ord-1", domain.OrderStatusFilled)

	err := f.manager.Cancel(context.Background(), "ord-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotCancellable))
}

func TestCancelUnknownOrder(t *testing.T) {
	f := newFixture(t, time.Second)
	err := f.manager.Cancel(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func fillOrder(t *testing.T, f *fixture, id string) {
	t.Helper()
	require.NoError(t, f.manager.Submit(context.Background(), pendingOrder(id)))
	waitForStatus(t, f.store, id, domain.OrderStatusFilled)
}

func TestStopLossClose(t *testing.T) {
	f := newFixture(t, time.Second)
	fillOrder(t, f, "ord-1")

	f.manager.OnTick(context.Background(), domain.TickEvent{
		Symbol:     "BTC-USD",
		PriceTicks: domain.PriceToTicks(98.5),
		Timestamp:  time.Now().UTC(),
	})

	got := waitForStatus(t, f.store, "ord-1", domain.OrderStatusClosedStopLoss)
	assert.Equal(t, domain.PriceToTicks(98.5), got.ExitTicks)
	assert.NotNil(t, got.ClosedAt)

	settlements := f.settlements.all()
	require.Len(t, settlements, 1)
	assert.Equal(t, domain.OutcomeLoss, settlements[0].Outcome)
	assert.True(t, settlements[0].PnL.Equal(decimal.NewFromFloat(-1.5)),
		"pnl %s", settlements[0].PnL)

	assert.Contains(t, f.broker.closedOrders(), "ord-1")
	assert.Empty(t, f.manager.Open())
}

func TestTakeProfitClose(t *testing.T) {
	f := newFixture(t, time.Second)
	fillOrder(t, f, "ord-1")

	f.manager.OnTick(context.Background(), domain.TickEvent{
		Symbol:     "BTC-USD",
		PriceTicks: domain.PriceToTicks(102.5),
		Timestamp:  time.Now().UTC(),
	})

	waitForStatus(t, f.store, "ord-1", domain.OrderStatusClosedTakeProfit)
	settlements := f.settlements.all()
	require.Len(t, settlements, 1)
	assert.Equal(t, domain.OutcomeWin, settlements[0].Outcome)
	assert.True(t, settlements[0].PnL.Equal(decimal.NewFromFloat(2.5)))
}

func TestTickBetweenLevelsDoesNothing(t *testing.T) {
	f := newFixture(t, time.Second)
	fillOrder(t, f, "ord-1")

	f.manager.OnTick(context.Background(), domain.TickEvent{
		Symbol:     "BTC-USD",
		PriceTicks: domain.PriceToTicks(100.7),
		Timestamp:  time.Now().UTC(),
	})

	assert.Len(t, f.manager.Open(), 1)
	assert.Empty(t, f.settlements.all())
}

func TestTickForOtherSymbolIgnored(t *testing.T) {
	f := newFixture(t, time.Second)
	fillOrder(t, f, "ord-1")

	f.manager.OnTick(context.Background(), domain.TickEvent{
		Symbol:     "ETH-USD",
		PriceTicks: domain.PriceToTicks(1),
		Timestamp:  time.Now().UTC(),
	})

	assert.Len(t, f.manager.Open(), 1)
}

func TestShortStopLoss(t *testing.T) {
	f := newFixture(t, time.Second)
	o := pendingOrder("ord-1")
	o.Side = domain.OrderSideSell
	o.StopLossTicks = domain.PriceToTicks(101)
	o.TakeProfitTicks = domain.PriceToTicks(98)
	require.NoError(t, f.manager.Submit(context.Background(), o))
	waitForStatus(t, f.store, "ord-1", domain.OrderStatusFilled)

	f.manager.OnTick(context.Background(), domain.TickEvent{
		Symbol:     "BTC-USD",
		PriceTicks: domain.PriceToTicks(101.5),
		Timestamp:  time.Now().UTC(),
	})

	waitForStatus(t, f.store, "ord-1", domain.OrderStatusClosedStopLoss)
	settlements := f.settlements.all()
	require.Len(t, settlements, 1)
	// Short: entry 100, exit 101.5 is a 1.5 loss.
	assert.Equal(t, domain.OutcomeLoss, settlements[0].Outcome)
	assert.True(t, settlements[0].PnL.Equal(decimal.NewFromFloat(-1.5)))
}

func TestCloseManual(t *testing.T) {
	f := newFixture(t, time.Second)
	fillOrder(t, f, "ord-1")

	require.NoError(t, f.manager.CloseManual(context.Background(), "ord-1", domain.PriceToTicks(101)))

	got := waitForStatus(t, f.store, "ord-1", domain.OrderStatusClosedManual)
	assert.Equal(t, domain.PriceToTicks(101), got.ExitTicks)

	settlements := f.settlements.all()
	require.Len(t, settlements, 1)
	assert.Equal(t, domain.OutcomeWin, settlements[0].Outcome)
	assert.True(t, settlements[0].PnL.Equal(decimal.NewFromInt(1)))

	// Terminal: a second close is rejected.
	err := f.manager.CloseManual(context.Background(), "ord-1", domain.PriceToTicks(101))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, domain.CanTransition(domain.OrderStatusPending, domain.OrderStatusSubmitted))
	assert.True(t, domain.CanTransition(domain.OrderStatusPending, domain.OrderStatusCancelled))
	assert.True(t, domain.CanTransition(domain.OrderStatusSubmitted, domain.OrderStatusFilled))
	assert.True(t, domain.CanTransition(domain.OrderStatusFilled, domain.OrderStatusClosedStopLoss))

	assert.False(t, domain.CanTransition(domain.OrderStatusPending, domain.OrderStatusFilled))
	assert.False(t, domain.CanTransition(domain.OrderStatusFilled, domain.OrderStatusCancelled))
	assert.False(t, domain.CanTransition(domain.OrderStatusRejected, domain.OrderStatusSubmitted))
	assert.False(t, domain.CanTransition(domain.OrderStatusClosedManual, domain.OrderStatusFilled))

	assert.True(t, domain.IsTerminal(domain.OrderStatusRejected))
	assert.True(t, domain.IsTerminal(domain.OrderStatusCancelled))
	assert.True(t, domain.IsTerminal(domain.OrderStatusClosedTakeProfit))
	assert.False(t, domain.IsTerminal(domain.OrderStatusFilled))
}
