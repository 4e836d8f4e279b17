package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tierhub/backend/internal/contextkeys"
	"github.com/tierhub/backend/internal/domain"
	"github.com/tierhub/backend/internal/service"
)

type PaymentHandler struct {
	settlement *service.SettlementService
	validate   *validator.Validate
}

func NewPaymentHandler(settlement *service.SettlementService, validate *validator.Validate) *PaymentHandler {
	return &PaymentHandler{settlement: settlement, validate: validate}
}

// Refund handles POST /api/payments/{id}/refund (staff only, gated in
// the router).
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, domain.ErrBadRequest("invalid payment id"))
		return
	}

	approverStr, ok := r.Context().Value(contextkeys.UserID).(string)
	if !ok || approverStr == "" {
		Error(w, domain.ErrUnauthorized("unauthorized"))
		return
	}
	approverID, err := uuid.Parse(approverStr)
	if err != nil {
		Error(w, domain.ErrUnauthorized("invalid approver identity"))
		return
	}

	var req domain.RefundRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		Error(w, domain.ErrValidation(err.Error()))
		return
	}

	refund, err := h.settlement.Refund(r.Context(), paymentID, req.Reason, approverID)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, refund)
}
