package handler

import (
	"net/http"

	"github.com/alanyoungcy/quantbot/internal/risk"
)

// RiskHandler exposes the current risk counters.
type RiskHandler struct {
	gate *risk.Gate
}

// NewRiskHandler creates a RiskHandler reading from the given gate.
func NewRiskHandler(gate *risk.Gate) *RiskHandler {
	return &RiskHandler{gate: gate}
}

// GetCounters responds with the per-day risk state.
// GET /api/risk
func (h *RiskHandler) GetCounters(w http.ResponseWriter, r *http.Request) {
	c := h.gate.Counters()

	positions := make(map[string]float64, len(c.OpenPositions))
	for symbol, sizeUnits := range c.OpenPositions {
		positions[symbol] = float64(sizeUnits) / 1e6
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account":            c.Account,
		"day":                c.Day.Format("2006-01-02"),
		"daily_pnl":          c.DailyPnL,
		"consecutive_losses": c.ConsecutiveLosses,
		"trades_today":       c.TradesToday,
		"open_positions":     positions,
	})
}
