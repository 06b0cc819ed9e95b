package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/quantbot/internal/domain"
	"github.com/alanyoungcy/quantbot/internal/pipeline"
)

// BookHandler exposes live orderbook and indicator state per symbol.
type BookHandler struct {
	pipelines map[string]*pipeline.Pipeline
}

// NewBookHandler creates a BookHandler for the given pipelines.
func NewBookHandler(pipelines map[string]*pipeline.Pipeline) *BookHandler {
	return &BookHandler{pipelines: pipelines}
}

type levelView struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

func levelViews(levels []domain.PriceLevel) []levelView {
	views := make([]levelView, 0, len(levels))
	for _, l := range levels {
		views = append(views, levelView{Price: l.Price(), Size: l.Size()})
	}
	return views
}

// GetBook returns the current orderbook snapshot for a symbol.
// GET /api/book/{symbol}
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	p, ok := h.pipelines[symbol]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown symbol")
		return
	}

	snap := p.BookSnapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":    snap.Symbol,
		"bids":      levelViews(snap.Bids),
		"asks":      levelViews(snap.Asks),
		"best_bid":  float64(snap.BestBid) / 1e6,
		"best_ask":  float64(snap.BestAsk) / 1e6,
		"mid_price": snap.MidPrice(),
		"spread":    snap.Spread(),
		"timestamp": snap.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}

// GetIndicators returns the indicator state from the last closed bar.
// GET /api/indicators/{symbol}
func (h *BookHandler) GetIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	p, ok := h.pipelines[symbol]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown symbol")
		return
	}

	state, ok := p.Indicators()
	if !ok {
		writeError(w, http.StatusNotFound, "no closed bar yet")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":    state.Symbol,
		"bar_time":  state.BarTime.UTC().Format(time.RFC3339),
		"bar_close": state.BarClose,
		"rsi":       indicatorView(state.RSI),
		"macd":      indicatorView(state.MACD),
		"macd_sig":  indicatorView(state.MACDSig),
		"histogram": indicatorView(state.Histogram),
		"sma":       indicatorView(state.SMA),
		"atr":       indicatorView(state.ATR),
	})
}

// indicatorView renders a possibly-not-ready indicator value as either the
// number or null, never a placeholder zero.
func indicatorView(v domain.IndicatorValue) any {
	if !v.Ready {
		return nil
	}
	return v.Float
}
