package handlers

import (
	"context"
	"fmt"
	"html/template"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"yield-monitor-go/internal/email"
	"yield-monitor-go/internal/models"
	"yield-monitor-go/internal/rewards"
	"yield-monitor-go/internal/store"
	"yield-monitor-go/internal/yield"
)

type emailRequest struct {
	Address string `json:"address"`
	Email   string `json:"email"`
}

func (h *Handler) EmailSubscribeHandler(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Address == "" || req.Email == "" {
		h.fail(w, r, http.StatusBadRequest, "Address and email are required", nil)
		return
	}
	if !email.ValidEmail(req.Email) {
		h.fail(w, r, http.StatusBadRequest, "Invalid email format", nil)
		return
	}
	address, err := models.NormalizeAddress(req.Address)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "Invalid wallet address", nil)
		return
	}

	if _, err := h.Store.SaveEmailSubscription(r.Context(), address, req.Email); err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Internal server error", err)
		return
	}

	welcomeSent := true
	if err := h.Email.SendWelcome(r.Context(), req.Email, address); err != nil {
		h.log.Warn("welcome email not sent", zap.String("address", address), zap.Error(err))
		welcomeSent = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"message":          "Successfully subscribed to email notifications",
		"welcomeEmailSent": welcomeSent,
	})
}

func (h *Handler) EmailUnsubscribeHandler(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Address == "" || req.Email == "" {
		h.fail(w, r, http.StatusBadRequest, "Address and email are required", nil)
		return
	}
	address, err := models.NormalizeAddress(req.Address)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "Invalid wallet address", nil)
		return
	}

	err = h.Store.RemoveEmailSubscription(r.Context(), address, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		h.fail(w, r, http.StatusNotFound, "Email subscription not found", nil)
		return
	}
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Internal server error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Successfully unsubscribed from email notifications",
	})
}

// EmailTestHandler sends the digest filled with sample data.
func (h *Handler) EmailTestHandler(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Email == "" {
		h.fail(w, r, http.StatusBadRequest, "Email address is required", nil)
		return
	}
	if !email.ValidEmail(req.Email) {
		h.fail(w, r, http.StatusBadRequest, "Invalid email format", nil)
		return
	}

	err := h.Email.SendTest(r.Context(), req.Email)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": err == nil,
		"message": sendMessage(err, "Test email sent successfully!", "Failed to send test email"),
	})
}

// EmailTestRealHandler sends the digest for a real wallet.
func (h *Handler) EmailTestRealHandler(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Address == "" || req.Email == "" {
		h.fail(w, r, http.StatusBadRequest, "Email and wallet address are required", nil)
		return
	}
	if !email.ValidEmail(req.Email) {
		h.fail(w, r, http.StatusBadRequest, "Invalid email format", nil)
		return
	}

	data, err := h.Yield.UserYieldData(r.Context(), req.Address, nil)
	if err != nil {
		h.yieldError(w, r, err)
		return
	}
	claimable := h.claimable(r.Context(), req.Address)

	err = h.Email.SendYieldSummary(r.Context(), req.Email, req.Address, data, claimable)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          err == nil,
		"message":          sendMessage(err, "Real yield email sent successfully!", "Failed to send real yield email"),
		"yieldData":        data,
		"claimableRewards": claimable,
	})
}

func sendMessage(err error, ok, failed string) string {
	switch {
	case err == nil:
		return ok
	case errors.Is(err, email.ErrEmailDisabled):
		return failed + ": email sending is not configured"
	}
	return failed
}

// claimable summarizes the address's rewards for the digest, or nil when
// they cannot be loaded.
func (h *Handler) claimable(ctx context.Context, address string) *models.ClaimableRewardsData {
	if h.Rewards == nil {
		return nil
	}
	list, err := h.Rewards.Claimable(ctx, address, h.RewardsChain)
	if err != nil {
		h.log.Warn("failed to load rewards", zap.String("address", address), zap.Error(err))
		return nil
	}
	sum := rewards.Summarize(list)
	return &sum
}

func (h *Handler) EmailSubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("address")
	if raw == "" {
		h.fail(w, r, http.StatusBadRequest, "Address parameter is required", nil)
		return
	}
	address, err := models.NormalizeAddress(raw)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "Invalid wallet address", nil)
		return
	}
	subs, err := h.Store.EmailSubscriptionsFor(r.Context(), address)
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Internal server error", err)
		return
	}
	if subs == nil {
		subs = []models.EmailSubscription{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"emails":  subs,
		"count":   len(subs),
	})
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func errorPage(title, detail string) string {
	return fmt.Sprintf(`<html>
  <body style="font-family: Arial, sans-serif; padding: 40px; text-align: center;">
    <h2 style="color: #ef4444;">%s</h2>
    <p>%s</p>
    <a href="/api/notifications/email/preview" style="color: #3b82f6;">View Mock Data Preview Instead</a>
  </body>
</html>`, template.HTMLEscapeString(title), template.HTMLEscapeString(detail))
}

// EmailPreviewHandler renders the digest with sample data.
func (h *Handler) EmailPreviewHandler(w http.ResponseWriter, r *http.Request) {
	sample := email.SampleRewards()
	html, err := h.Email.Preview(email.SampleYieldData(), &sample)
	if err != nil {
		h.log.Error("failed to render preview", zap.Error(err))
		writeHTML(w, http.StatusInternalServerError, errorPage("Error", "Failed to generate preview: "+err.Error()))
		return
	}
	writeHTML(w, http.StatusOK, html)
}

// EmailPreviewRealHandler renders the digest for a real wallet.
func (h *Handler) EmailPreviewRealHandler(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		h.fail(w, r, http.StatusBadRequest, "Wallet address is required as query parameter: ?address=0x...", nil)
		return
	}

	data, err := h.Yield.UserYieldData(r.Context(), address, nil)
	switch {
	case errors.Is(err, models.ErrInvalidAddress):
		h.fail(w, r, http.StatusBadRequest, "Invalid wallet address", nil)
		return
	case errors.Is(err, yield.ErrNoPositions):
		writeHTML(w, http.StatusNotFound, errorPage("No Yield Data Found",
			"No yield data found for address "+address+". Make sure the wallet has positions in Morpho vaults."))
		return
	case err != nil:
		h.log.Error("failed to generate real preview", zap.String("address", address), zap.Error(err))
		writeHTML(w, http.StatusInternalServerError, errorPage("Error", "Failed to generate preview: "+err.Error()))
		return
	}

	html, err := h.Email.Preview(data, h.claimable(r.Context(), address))
	if err != nil {
		h.log.Error("failed to render preview", zap.Error(err))
		writeHTML(w, http.StatusInternalServerError, errorPage("Error", "Failed to generate preview: "+err.Error()))
		return
	}
	writeHTML(w, http.StatusOK, html)
}

func (h *Handler) EmailCheckConfigHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, email.DescribeKey(h.ResendAPIKey))
}
