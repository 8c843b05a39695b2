// Package handlers exposes the risk system over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/modules/risk"
	"github.com/aristath/bastion/internal/modules/varmonitor"
)

// Handler handles risk HTTP requests
type Handler struct {
	system  *risk.System
	monitor *varmonitor.Monitor
	store   *varmonitor.Store
	log     zerolog.Logger
}

// NewHandler creates a new risk handler. store may be nil when archival is
// disabled; the history endpoint then serves the in-memory ring only.
func NewHandler(system *risk.System, monitor *varmonitor.Monitor, store *varmonitor.Store, log zerolog.Logger) *Handler {
	return &Handler{
		system:  system,
		monitor: monitor,
		store:   store,
		log:     log.With().Str("handler", "risk").Logger(),
	}
}

// HandleGetStatus handles GET /status - full cross-component view
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.system.Status())
}

// HandleGetSummary handles GET /summary - condensed view
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.system.Summary())
}

// HandleGetLatestVaR handles GET /var/latest
func (h *Handler) HandleGetLatestVaR(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.monitor.Latest()
	if !ok {
		http.Error(w, "No VaR snapshot computed yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// HandleGetVaRHistory handles GET /var/history - archived snapshots when a
// store is configured, the in-memory ring otherwise
func (h *Handler) HandleGetVaRHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, 100)
	if !ok {
		return
	}

	var snapshots []varmonitor.Snapshot
	if h.store != nil {
		var err error
		snapshots, err = h.store.RecentSnapshots(limit)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to load archived snapshots")
			http.Error(w, "Failed to retrieve VaR history", http.StatusInternalServerError)
			return
		}
	} else {
		snapshots = h.monitor.Snapshots(limit)
	}
	if snapshots == nil {
		snapshots = []varmonitor.Snapshot{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshots)
}

// HandleGetBreaches handles GET /var/breaches - in-memory breach history
func (h *Handler) HandleGetBreaches(w http.ResponseWriter, r *http.Request) {
	breaches := h.monitor.Breaches()
	if breaches == nil {
		breaches = []varmonitor.Breach{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(breaches)
}

// HandleAcknowledgeBreach handles POST /var/breaches/{id}/acknowledge
func (h *Handler) HandleAcknowledgeBreach(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.monitor.AcknowledgeBreach(id) {
		http.Error(w, "Breach not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"acknowledged": true,
		"id":           id,
	})
}

// HandleGetDrawdown handles GET /drawdown - circuit breaker state
func (h *Handler) HandleGetDrawdown(w http.ResponseWriter, r *http.Request) {
	st := h.system.Status()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"state":              st.Drawdown,
		"can_trade":          st.CanTrade,
		"trade_block_reason": st.TradeBlockReason,
		"size_multiplier":    st.SizeMultiplier,
	})
}

func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return def, true
	}
	l, err := strconv.Atoi(limitStr)
	if err != nil || l < 1 || l > 10000 {
		http.Error(w, "Invalid limit. Must be 1-10000", http.StatusBadRequest)
		return 0, false
	}
	return l, true
}
