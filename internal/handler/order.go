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

type OrderHandler struct {
	orders   *service.OrderService
	validate *validator.Validate
}

func NewOrderHandler(orders *service.OrderService, validate *validator.Validate) *OrderHandler {
	return &OrderHandler{orders: orders, validate: validate}
}

// Create handles POST /api/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	customerID, ok := authedUUID(r)
	if !ok {
		Error(w, domain.ErrUnauthorized("unauthorized"))
		return
	}

	var req domain.CreateOrderRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		Error(w, domain.ErrValidation(err.Error()))
		return
	}

	merchantID, err := uuid.Parse(req.MerchantID)
	if err != nil {
		Error(w, domain.ErrBadRequest("invalid merchant id"))
		return
	}

	lines := make([]service.OrderLine, 0, len(req.Items))
	for _, it := range req.Items {
		productID, err := uuid.Parse(it.ProductID)
		if err != nil {
			Error(w, domain.ErrBadRequest("invalid product id"))
			return
		}
		variantID, err := uuid.Parse(it.VariantID)
		if err != nil {
			Error(w, domain.ErrBadRequest("invalid variant id"))
			return
		}
		lines = append(lines, service.OrderLine{
			ProductID: productID,
			VariantID: variantID,
			Quantity:  it.Quantity,
		})
	}

	order, err := h.orders.Create(r.Context(), customerID, merchantID, lines, service.Shipping{
		Name:    req.ShippingName,
		Address: req.ShippingAddress,
		Phone:   req.ShippingPhone,
	})
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusCreated, order)
}

// Get handles GET /api/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, domain.ErrBadRequest("invalid order id"))
		return
	}

	order, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, order)
}

// Advance handles POST /api/orders/{id}/advance (staff only).
func (h *OrderHandler) Advance(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, domain.ErrBadRequest("invalid order id"))
		return
	}

	var req domain.AdvanceOrderRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		Error(w, domain.ErrValidation(err.Error()))
		return
	}

	order, err := h.orders.Advance(r.Context(), orderID, domain.OrderStatus(req.Status))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, order)
}

// Complete handles POST /api/orders/{id}/complete (staff only).
func (h *OrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, domain.ErrBadRequest("invalid order id"))
		return
	}

	order, err := h.orders.Complete(r.Context(), orderID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, order)
}

// Cancel handles POST /api/orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, domain.ErrBadRequest("invalid order id"))
		return
	}

	order, err := h.orders.Cancel(r.Context(), orderID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, order)
}

func authedUUID(r *http.Request) (uuid.UUID, bool) {
	sub, ok := r.Context().Value(contextkeys.UserID).(string)
	if !ok || sub == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
