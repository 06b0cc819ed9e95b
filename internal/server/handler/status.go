package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/quantbot/internal/pipeline"
)

// StatusHandler reports the running mode and per-symbol pipeline health.
type StatusHandler struct {
	mode      string
	pipelines map[string]*pipeline.Pipeline
	started   time.Time
}

// NewStatusHandler creates a StatusHandler for the given pipelines.
func NewStatusHandler(mode string, pipelines map[string]*pipeline.Pipeline) *StatusHandler {
	return &StatusHandler{
		mode:      mode,
		pipelines: pipelines,
		started:   time.Now().UTC(),
	}
}

// GetStatus responds with the mode, uptime, and dropped-event counters.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	symbols := make(map[string]any, len(h.pipelines))
	for symbol, p := range h.pipelines {
		symbols[symbol] = map[string]any{
			"dropped_events": p.Dropped(),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"symbols":        symbols,
	})
}
