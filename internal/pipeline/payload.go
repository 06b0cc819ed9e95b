package pipeline

import (
	"encoding/json"
	"time"

	"github.com/alanyoungcy/quantbot/internal/domain"
)

// tickEvent is the JSON shape published to the "ticks" bus channel.
type tickEvent struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	Side      string  `json:"side"`
	Timestamp string  `json:"timestamp"`
}

func tickPayload(tick domain.TickEvent) ([]byte, error) {
	return json.Marshal(tickEvent{
		Symbol:    tick.Symbol,
		Price:     tick.Price(),
		Size:      tick.Size(),
		Side:      string(tick.Side),
		Timestamp: tick.Timestamp.Format(time.RFC3339Nano),
	})
}
