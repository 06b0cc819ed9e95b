// Package feed connects to the market-data venue, normalizes raw exchange
// messages into canonical domain events, and aggregates ticks into bars.
package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

// rawMessage is the venue's wire shape for both trade and depth events.
type rawMessage struct {
	Type   string  `json:"type"`
	Symbol string  `json:"symbol"`
	Side   string  `json:"side"`
	Price  float64 `json:"price"`
	Size   float64 `json:"size"`
	TsMs   int64   `json:"ts"`
}

// Normalized is the result of normalizing one raw feed message: exactly one
// of Tick or Book is set.
type Normalized struct {
	Tick *domain.TickEvent
	Book *domain.BookUpdate
}

// Normalize converts a raw venue payload into a canonical event. Malformed
// payloads return an error; callers drop them and continue, they are never
// fatal.
func Normalize(payload []byte) (Normalized, error) {
	var raw rawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Normalized{}, fmt.Errorf("feed: decode message: %w", err)
	}

	symbol := strings.TrimSpace(raw.Symbol)
	if symbol == "" {
		return Normalized{}, fmt.Errorf("feed: message missing symbol")
	}
	if raw.Price <= 0 {
		return Normalized{}, fmt.Errorf("feed: non-positive price %v for %s", raw.Price, symbol)
	}
	if raw.Size < 0 {
		return Normalized{}, fmt.Errorf("feed: negative size %v for %s", raw.Size, symbol)
	}

	side, err := normalizeSide(raw.Side)
	if err != nil {
		return Normalized{}, fmt.Errorf("feed: %s: %w", symbol, err)
	}

	ts := time.Now().UTC()
	if raw.TsMs > 0 {
		ts = time.UnixMilli(raw.TsMs).UTC()
	}

	switch raw.Type {
	case "trade":
		if raw.Size == 0 {
			return Normalized{}, fmt.Errorf("feed: zero-size trade for %s", symbol)
		}
		return Normalized{Tick: &domain.TickEvent{
			Symbol:     symbol,
			Timestamp:  ts,
			PriceTicks: domain.PriceToTicks(raw.Price),
			SizeUnits:  domain.PriceToTicks(raw.Size),
			Side:       side,
		}}, nil
	case "depth":
		return Normalized{Book: &domain.BookUpdate{
			Symbol:     symbol,
			Side:       side,
			PriceTicks: domain.PriceToTicks(raw.Price),
			SizeUnits:  domain.PriceToTicks(raw.Size),
			Timestamp:  ts,
		}}, nil
	default:
		return Normalized{}, fmt.Errorf("feed: unknown message type %q", raw.Type)
	}
}

func normalizeSide(s string) (domain.TickSide, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "bid", "b":
		return domain.TickSideBuy, nil
	case "sell", "ask", "a", "s":
		return domain.TickSideSell, nil
	default:
		return "", fmt.Errorf("unknown side %q", s)
	}
}
