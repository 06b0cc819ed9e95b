package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *recordingSender) Send(_ context.Context, event, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, event)
	return nil
}

func (s *recordingSender) Name() string { return "recording" }

func (s *recordingSender) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAlertDeliversToAllSenders(t *testing.T) {
	a, b := &recordingSender{}, &recordingSender{}
	n := NewNotifier([]Sender{a, b}, nil, testLogger())

	n.Alert(context.Background(), EventOrderRejected, "order ord-1 rejected")

	require.Eventually(t, func() bool {
		return len(a.events()) == 1 && len(b.events()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{EventOrderRejected}, a.events())
}

func TestAlertFiltersEvents(t *testing.T) {
	s := &recordingSender{}
	n := NewNotifier([]Sender{s}, []string{EventCircuitBreaker}, testLogger())

	n.Alert(context.Background(), EventOrderRejected, "filtered out")
	n.Alert(context.Background(), EventCircuitBreaker, "breaker open")

	require.Eventually(t, func() bool { return len(s.events()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{EventCircuitBreaker}, s.events())
}

func TestAlertSurvivesCallerCancellation(t *testing.T) {
	s := &recordingSender{}
	n := NewNotifier([]Sender{s}, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Alert(ctx, EventDailyLossLimit, "limit hit")

	require.Eventually(t, func() bool { return len(s.events()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestAlertFailuresDoNotStopOtherSenders(t *testing.T) {
	failing := &recordingSender{err: errors.New("chat unreachable")}
	healthy := &recordingSender{}
	n := NewNotifier([]Sender{failing, healthy}, nil, testLogger())

	n.Alert(context.Background(), EventCloseFailed, "close failed")

	require.Eventually(t, func() bool { return len(healthy.events()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, failing.events())
}
