package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// === Database maintenance ===

func (h *Handler) DatabaseInfoHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Database initialization endpoint",
		"usage":   "POST to this endpoint to initialize database tables",
	})
}

func (h *Handler) InitDatabaseHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Migrate(r.Context()); err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Failed to initialize database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Database initialized successfully",
	})
}

// CleanupHistoryHandler deletes yield snapshots older than ?days= (default
// the configured retention) and drops cached vault listings.
func (h *Handler) CleanupHistoryHandler(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", h.RetentionDays)
	if err != nil || days < 1 {
		h.fail(w, r, http.StatusBadRequest, "days must be a positive integer", nil)
		return
	}

	deleted, err := h.Store.CleanupHistory(r.Context(), days)
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Failed to clean up yield history", err)
		return
	}

	cachePurged := false
	if h.Cache != nil {
		if err := h.Cache.Purge(r.Context()); err != nil {
			h.log.Warn("failed to purge vault cache", zap.Error(err))
		} else {
			cachePurged = true
		}
	}

	h.log.Info("yield history cleaned up", zap.Int("days", days), zap.Int64("deleted", deleted))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"days":        days,
		"deleted":     deleted,
		"cachePurged": cachePurged,
	})
}
