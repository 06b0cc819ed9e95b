// Package notify delivers operator alerts to external channels. Alerts are
// dispatched to all registered senders (Telegram, Discord) and filtered by
// event type so operators receive only what they care about. Dispatch is
// asynchronous; a slow or failing channel never blocks the trading path.
package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Event types emitted by the trading engine.
const (
	EventCircuitBreaker = "circuit_breaker"
	EventDailyLossLimit = "daily_loss_limit"
	EventOrderRejected  = "order_rejected"
	EventOrderClosed    = "order_closed"
	EventCloseFailed    = "close_failed"
	EventFeedDisconnect = "feed_disconnect"
)

// Sender is one delivery channel for alerts.
type Sender interface {
	// Send delivers an alert with the given event tag and message body.
	Send(ctx context.Context, event, message string) error
	// Name identifies the sender in logs (e.g. "telegram").
	Name() string
}

// Notifier fans alerts out to registered senders. It keeps a set of allowed
// event types; Alert drops messages whose event is not in the set. An empty
// set allows everything.
type Notifier struct {
	senders     []Sender
	events      map[string]bool
	sendTimeout time.Duration
	logger      *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only
// events listed in the events slice pass the filter; an empty slice allows
// all events.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		e = strings.TrimSpace(e)
		if e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders:     senders,
		events:      allowed,
		sendTimeout: 10 * time.Second,
		logger:      logger.With(slog.String("component", "notifier")),
	}
}

// Alert dispatches a message to all senders if the event type passes the
// filter. Delivery happens in the background; failures are logged, never
// returned, so callers on the trading path are not slowed down.
func (n *Notifier) Alert(ctx context.Context, event, message string) {
	if len(n.senders) == 0 {
		return
	}
	if len(n.events) > 0 && !n.events[event] {
		n.logger.Debug("event filtered out", slog.String("event", event))
		return
	}

	// Detach from the caller's context so in-flight alerts survive the
	// operation that triggered them.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.sendTimeout)
	go func() {
		defer cancel()
		for _, s := range n.senders {
			if err := s.Send(sendCtx, event, message); err != nil {
				n.logger.Error("sender failed",
					slog.String("sender", s.Name()),
					slog.String("event", event),
					slog.String("error", err.Error()),
				)
				continue
			}
			n.logger.Debug("alert sent",
				slog.String("sender", s.Name()),
				slog.String("event", event),
			)
		}
	}()
}
