package handler

import (
	"io"
	"log"
	"net/http"

	"github.com/tierhub/backend/internal/service"
	"github.com/tierhub/backend/pkg/payment"
)

// WebhookHandler receives payment gateway callbacks. The endpoint is
// public; authenticity comes from the HMAC signature over the raw body.
type WebhookHandler struct {
	gateway    payment.Gateway
	settlement *service.SettlementService
}

func NewWebhookHandler(gateway payment.Gateway, settlement *service.SettlementService) *WebhookHandler {
	return &WebhookHandler{
		gateway:    gateway,
		settlement: settlement,
	}
}

// HandleGatewayEvent handles POST /api/payments/webhook.
func (h *WebhookHandler) HandleGatewayEvent(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get("X-Signature-256")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if !h.gateway.VerifySignature(body, signature) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	ev, err := h.gateway.ParseEvent(body)
	if err != nil {
		log.Printf("webhook parse error: %v", err)
		http.Error(w, "invalid event", http.StatusBadRequest)
		return
	}

	switch ev.Status {
	case payment.StatusSuccess:
		result, err := h.settlement.Complete(r.Context(), ev.PaymentID, ev.ProviderTxnID, ev.Raw)
		if err != nil {
			Error(w, err)
			return
		}
		JSON(w, http.StatusOK, result)
	case payment.StatusFailed:
		p, err := h.settlement.Fail(r.Context(), ev.PaymentID, ev.ProviderTxnID)
		if err != nil {
			Error(w, err)
			return
		}
		JSON(w, http.StatusOK, p)
	}
}
