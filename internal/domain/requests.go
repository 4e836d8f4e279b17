package domain

// RefundRequest is the input for refunding a settled payment.
type RefundRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// OrderItemRequest is one requested order line.
type OrderItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid4"`
	VariantID string `json:"variantId" validate:"required,uuid4"`
	Quantity  int64  `json:"quantity" validate:"required,min=1"`
}

// CreateOrderRequest is the input for placing an order.
type CreateOrderRequest struct {
	MerchantID      string             `json:"merchantId" validate:"required,uuid4"`
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingName    string             `json:"shippingName" validate:"max=200"`
	ShippingAddress string             `json:"shippingAddress" validate:"max=500"`
	ShippingPhone   string             `json:"shippingPhone" validate:"max=50"`
}

// AdvanceOrderRequest is the input for a staff/rider status advance.
type AdvanceOrderRequest struct {
	Status string `json:"status" validate:"required,oneof=DISPATCHED DELIVERED"`
}
