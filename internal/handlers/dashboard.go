package handlers

import (
	"net/http"

	"yield-monitor-go/internal/chains"
	"yield-monitor-go/internal/models"
	"yield-monitor-go/internal/rewards"
	"yield-monitor-go/internal/yield"
)

func (h *Handler) ChainsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"chains": chains.Morpho})
}

// VaultsHandler returns the vaults on ?chainId= (default 1), joined with
// the positions of ?address= when given. ?sort= orders them by apy, yield,
// balance or name.
func (h *Handler) VaultsHandler(w http.ResponseWriter, r *http.Request) {
	chainID, err := queryInt(r, "chainId", chains.DefaultSubscriptionChains[0])
	if err != nil || !chains.IsSupported(chainID) {
		h.fail(w, r, http.StatusBadRequest, "Unsupported chain id", nil)
		return
	}

	address := r.URL.Query().Get("address")
	if address != "" {
		if address, err = models.NormalizeAddress(address); err != nil {
			h.fail(w, r, http.StatusBadRequest, "Invalid wallet address", nil)
			return
		}
	}

	data, err := h.Yield.ChainData(r.Context(), address, chainID)
	if err != nil {
		h.fail(w, r, http.StatusBadGateway, "Failed to fetch vault data", err)
		return
	}
	if by := r.URL.Query().Get("sort"); by != "" {
		data.Vaults = yield.SortVaults(data.Vaults, yield.SortKey(by))
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *Handler) RewardsHandler(w http.ResponseWriter, r *http.Request) {
	address, err := models.NormalizeAddress(r.URL.Query().Get("address"))
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "Invalid wallet address", nil)
		return
	}
	chainID, err := queryInt(r, "chainId", h.RewardsChain)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "Invalid chain id", nil)
		return
	}

	list, err := h.Rewards.Claimable(r.Context(), address, chainID)
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Failed to load rewards", err)
		return
	}
	if list == nil {
		list = []models.CombinedReward{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address": address,
		"chainId": chainID,
		"rewards": list,
		"summary": rewards.Summarize(list),
	})
}

func (h *Handler) YieldHistoryHandler(w http.ResponseWriter, r *http.Request) {
	address, err := models.NormalizeAddress(r.URL.Query().Get("address"))
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "Invalid wallet address", nil)
		return
	}
	days, err := queryInt(r, "days", 30)
	if err != nil || days < 1 {
		h.fail(w, r, http.StatusBadRequest, "days must be a positive integer", nil)
		return
	}

	history, err := h.Yield.History(r.Context(), address, days)
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Failed to load yield history", err)
		return
	}
	if history == nil {
		history = []models.YieldSnapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address": address,
		"days":    days,
		"history": history,
		"count":   len(history),
	})
}
