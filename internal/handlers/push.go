package handlers

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"yield-monitor-go/internal/chains"
	"yield-monitor-go/internal/dispatch"
	"yield-monitor-go/internal/models"
	"yield-monitor-go/internal/notify"
	"yield-monitor-go/internal/store"
)

// VAPIDPublicKeyHandler returns the public VAPID key
func (h *Handler) VAPIDPublicKeyHandler(w http.ResponseWriter, r *http.Request) {
	if h.VAPIDPublicKey == "" {
		h.fail(w, r, http.StatusInternalServerError, "VAPID public key not configured", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": h.VAPIDPublicKey})
}

// SubscribeHandler saves a push subscription and sends a welcome push.
func (h *Handler) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address      string                   `json:"address"`
		Subscription *models.PushSubscription `json:"subscription"`
		ChainIDs     []int                    `json:"chainIds"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, http.StatusBadRequest, "Invalid request", nil)
		return
	}
	if req.Address == "" || req.Subscription == nil {
		h.fail(w, r, http.StatusBadRequest, "Address and subscription are required", nil)
		return
	}
	if !req.Subscription.Valid() {
		h.fail(w, r, http.StatusBadRequest, "Invalid subscription format", nil)
		return
	}
	address, err := models.NormalizeAddress(req.Address)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "Invalid wallet address", nil)
		return
	}
	chainIDs := req.ChainIDs
	if len(chainIDs) == 0 {
		chainIDs = chains.DefaultSubscriptionChains
	}
	for _, id := range chainIDs {
		if !chains.IsSupported(id) {
			h.fail(w, r, http.StatusBadRequest, "Unsupported chain id", nil)
			return
		}
	}

	if err := h.Store.SaveSubscription(r.Context(), address, *req.Subscription, chainIDs); err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Internal server error", err)
		return
	}

	// A failed welcome push does not undo the subscription.
	if err := h.Push.Welcome(r.Context(), address, *req.Subscription); err != nil {
		h.log.Warn("failed to send welcome notification", zap.String("address", address), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Subscription saved successfully",
	})
}

func (h *Handler) UnsubscribeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.Address == "" {
		h.fail(w, r, http.StatusBadRequest, "Address is required", nil)
		return
	}
	address, err := models.NormalizeAddress(req.Address)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "Invalid wallet address", nil)
		return
	}
	if err := h.Store.RemoveSubscription(r.Context(), address); err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Internal server error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Subscription removed successfully",
	})
}

// TestPushHandler sends a test notification to a subscribed address.
func (h *Handler) TestPushHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.Address == "" {
		h.fail(w, r, http.StatusBadRequest, "Address required", nil)
		return
	}
	address, err := models.NormalizeAddress(req.Address)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "Invalid wallet address", nil)
		return
	}

	switch err := h.Push.Test(r.Context(), address); {
	case errors.Is(err, notify.ErrNotSubscribed), errors.Is(err, notify.ErrSubscriptionGone):
		h.fail(w, r, http.StatusNotFound, "User not subscribed to notifications", nil)
	case err != nil:
		h.fail(w, r, http.StatusInternalServerError, "Failed to send test notification", err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Test notification sent",
		})
	}
}

// SendYieldHandler pushes caller-supplied yield data.
func (h *Handler) SendYieldHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address   string                        `json:"address"`
		YieldData *models.YieldNotificationData `json:"yieldData"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, http.StatusBadRequest, "Invalid request", nil)
		return
	}
	if req.Address == "" {
		h.fail(w, r, http.StatusBadRequest, "Address required", nil)
		return
	}
	if req.YieldData == nil {
		h.fail(w, r, http.StatusBadRequest, "Yield data required", nil)
		return
	}
	address, err := models.NormalizeAddress(req.Address)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "Invalid wallet address", nil)
		return
	}

	switch err := h.Push.SendYield(r.Context(), address, req.YieldData); {
	case errors.Is(err, notify.ErrNotSubscribed), errors.Is(err, notify.ErrSubscriptionGone):
		h.fail(w, r, http.StatusNotFound, "Failed to send notification - user may not be subscribed", nil)
	case err != nil:
		h.fail(w, r, http.StatusInternalServerError, "Internal server error", err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Yield notification sent successfully",
		})
	}
}

// PreviewYieldHandler computes the summary without sending anything.
// ?chainIds=1,8453 narrows the chains scanned; unknown ids are ignored.
func (h *Handler) PreviewYieldHandler(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Address parameter required",
			"usage": "GET /api/notifications/test-yield?address=0x...",
		})
		return
	}
	ids, err := chains.ParseIDs(r.URL.Query().Get("chainIds"))
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "Invalid chainIds", nil)
		return
	}
	ids = chains.FilterSupported(ids)
	if len(ids) == 0 {
		ids = chains.DefaultYieldChains
	}

	data, err := h.Yield.UserYieldData(r.Context(), address, ids)
	if err != nil {
		h.yieldError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Yield data calculated successfully",
		"yieldData": data,
	})
}

// TestYieldHandler computes the summary for a subscribed address and pushes
// it.
func (h *Handler) TestYieldHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.Address == "" {
		h.fail(w, r, http.StatusBadRequest, "Address required", nil)
		return
	}
	address, err := models.NormalizeAddress(req.Address)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "Invalid wallet address", nil)
		return
	}

	sub, err := h.Store.GetSubscription(r.Context(), address)
	if errors.Is(err, store.ErrNotFound) {
		h.fail(w, r, http.StatusNotFound, "User not subscribed to notifications", nil)
		return
	}
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Internal server error", err)
		return
	}

	data, err := h.Yield.UserYieldData(r.Context(), address, chains.DefaultYieldChains)
	if err != nil {
		h.yieldError(w, r, err)
		return
	}

	sent := true
	message := "Test yield notification sent!"
	if err := h.Push.SendYield(r.Context(), address, data); err != nil {
		h.log.Warn("test yield notification failed", zap.String("address", address), zap.Error(err))
		sent = false
		message = "Failed to send notification"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   sent,
		"message":   message,
		"yieldData": data,
		"subscription": map[string]any{
			"address":      sub.Address,
			"createdAt":    sub.CreatedAt,
			"lastNotified": sub.LastNotified,
		},
	})
}

func (h *Handler) DailyInfoHandler(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Store.ListSubscriptions(r.Context())
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Internal server error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Daily notifications endpoint",
		"usage":         "POST to this endpoint to trigger daily notifications",
		"subscriptions": len(subs),
	})
}

// RunDailyHandler runs the daily dispatch. The run is detached from the
// request so a disconnecting caller does not abort it halfway.
func (h *Handler) RunDailyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), dispatch.RunTimeout)
	defer cancel()

	report, err := h.Daily.Run(ctx)
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Internal server error", err)
		return
	}
	message := "Daily notifications processed"
	if report.Push.Total == 0 && report.Email.Total == 0 {
		message = "No subscriptions found"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": message,
		"results": report,
	})
}
