package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// Handler receives normalized feed events. Implementations must not block;
// the client calls them from its single read goroutine.
type Handler interface {
	OnTick(ctx context.Context, tick domain.TickEvent)
	OnBookUpdate(ctx context.Context, update domain.BookUpdate)
}

// Client is the websocket market-data client. It manages the connection
// lifecycle, resubscribes after reconnects, and feeds normalized events to
// its handler. Resubscription is rate-limited so a flapping connection
// cannot hammer the venue.
type Client struct {
	wsURL   string
	symbols []string
	handler Handler
	logger  *slog.Logger

	subLimiter *rate.Limiter
}

// NewClient creates a feed client subscribing to the given symbols.
func NewClient(wsURL string, symbols []string, handler Handler, logger *slog.Logger) *Client {
	return &Client{
		wsURL:      wsURL,
		symbols:    symbols,
		handler:    handler,
		logger:     logger.With(slog.String("component", "feed")),
		subLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// Run connects and consumes the feed until ctx is cancelled, reconnecting
// with exponential backoff on any connection failure.
func (c *Client) Run(ctx context.Context) error {
	delay := reconnectDelay
	for {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("feed disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// runOnce dials, subscribes, and reads until the connection drops.
func (c *Client) runOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: connect %s: %w", c.wsURL, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if err := c.subscribe(ctx, conn); err != nil {
		return err
	}
	c.logger.Info("feed connected", slog.Any("symbols", c.symbols))

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", domain.ErrWSDisconnect)
		}
		c.dispatch(ctx, payload)
	}
}

// subscribe sends one subscription command per symbol, rate-limited.
func (c *Client) subscribe(ctx context.Context, conn *websocket.Conn) error {
	for _, symbol := range c.symbols {
		if err := c.subLimiter.Wait(ctx); err != nil {
			return err
		}
		cmd := map[string]any{
			"type":     "subscribe",
			"channels": []string{"trade", "depth"},
			"symbol":   symbol,
		}
		payload, err := json.Marshal(cmd)
		if err != nil {
			return fmt.Errorf("feed: encode subscribe: %w", err)
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return fmt.Errorf("feed: subscribe %s: %w", symbol, err)
		}
	}
	return nil
}

// dispatch normalizes one payload and hands it to the handler. Malformed
// payloads are dropped and logged, never fatal.
func (c *Client) dispatch(ctx context.Context, payload []byte) {
	ev, err := Normalize(payload)
	if err != nil {
		c.logger.Debug("feed message dropped",
			slog.String("error", err.Error()),
			slog.Int("payload_len", len(payload)),
		)
		return
	}
	switch {
	case ev.Tick != nil:
		c.handler.OnTick(ctx, *ev.Tick)
	case ev.Book != nil:
		c.handler.OnBookUpdate(ctx, *ev.Book)
	}
}
