package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tierhub/backend/internal/domain"
	"github.com/tierhub/backend/internal/service"
)

// MerchantHandler serves the merchant dashboard read side: wallet,
// ledger and rolling stats.
type MerchantHandler struct {
	store service.Store
}

func NewMerchantHandler(store service.Store) *MerchantHandler {
	return &MerchantHandler{store: store}
}

// Wallet handles GET /api/merchants/{id}/wallet.
func (h *MerchantHandler) Wallet(w http.ResponseWriter, r *http.Request) {
	merchantID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, domain.ErrBadRequest("invalid merchant id"))
		return
	}

	wallet, err := h.store.GetWallet(r.Context(), merchantID)
	if err != nil {
		Error(w, err)
		return
	}
	if wallet == nil {
		Error(w, domain.ErrNotFound("merchant wallet not found"))
		return
	}
	JSON(w, http.StatusOK, wallet)
}

// Ledger handles GET /api/merchants/{id}/ledger?limit=&offset=.
func (h *MerchantHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	merchantID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, domain.ErrBadRequest("invalid merchant id"))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.store.ListLedgerEntries(r.Context(), merchantID, limit, offset)
	if err != nil {
		Error(w, err)
		return
	}
	if entries == nil {
		entries = []*domain.LedgerEntry{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"offset":  offset,
	})
}

// Stats handles GET /api/merchants/{id}/stats.
func (h *MerchantHandler) Stats(w http.ResponseWriter, r *http.Request) {
	merchantID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, domain.ErrBadRequest("invalid merchant id"))
		return
	}

	stats, err := h.store.GetMerchantStats(r.Context(), merchantID)
	if err != nil {
		Error(w, err)
		return
	}
	if stats == nil {
		Error(w, domain.ErrNotFound("no settlements recorded for merchant"))
		return
	}
	JSON(w, http.StatusOK, stats)
}
