package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the closed set of order states.
type OrderStatus string

const (
	OrderPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderDispatched     OrderStatus = "DISPATCHED"
	OrderDelivered      OrderStatus = "DELIVERED"
	OrderCompleted      OrderStatus = "COMPLETED"
	OrderCancelled      OrderStatus = "CANCELLED"
)

// CanTransitionTo reports whether moving to next is a legal transition.
// Orders advance PENDING_PAYMENT, DISPATCHED, DELIVERED, COMPLETED in
// sequence; CANCELLED is reachable only from PENDING_PAYMENT.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderPendingPayment:
		return next == OrderDispatched || next == OrderCancelled
	case OrderDispatched:
		return next == OrderDelivered
	case OrderDelivered:
		return next == OrderCompleted
	default:
		return false
	}
}

// Order is a merchant sale composed of line items, fulfilled via
// physical/variant goods rather than subscription tiers.
type Order struct {
	ID              uuid.UUID   `json:"id"`
	CustomerID      uuid.UUID   `json:"customerId"`
	MerchantID      uuid.UUID   `json:"merchantId"`
	Status          OrderStatus `json:"status"`
	Total           Money       `json:"total"`
	ShippingName    string      `json:"shippingName,omitempty"`
	ShippingAddress string      `json:"shippingAddress,omitempty"`
	ShippingPhone   string      `json:"shippingPhone,omitempty"`
	Items           []OrderItem `json:"items"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// OrderItem is one order line. UnitPrice is snapshotted at creation so
// later catalog price changes never alter historical orders.
type OrderItem struct {
	ID        uuid.UUID  `json:"id"`
	OrderID   uuid.UUID  `json:"orderId"`
	ProductID uuid.UUID  `json:"productId"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	Quantity  int64      `json:"quantity"`
	UnitPrice Money      `json:"unitPrice"`
	LineTotal Money      `json:"lineTotal"`
}

// Product is a merchant catalog item.
type Product struct {
	ID         uuid.UUID `json:"id"`
	MerchantID uuid.UUID `json:"merchantId"`
	Name       string    `json:"name"`
}

// Variant is a sellable variation of a product carrying live stock.
type Variant struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	Name      string    `json:"name"`
	Price     Money     `json:"price"`
	Stock     int64     `json:"stock"`
}
