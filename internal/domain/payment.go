package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the closed set of payment states.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentSuccess  PaymentStatus = "SUCCESS"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// CanTransitionTo reports whether moving to next is a legal transition.
// The only legal moves are PENDING to SUCCESS, PENDING to FAILED and
// SUCCESS to REFUNDED.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentPending:
		return next == PaymentSuccess || next == PaymentFailed
	case PaymentSuccess:
		return next == PaymentRefunded
	default:
		return false
	}
}

// Terminal reports whether the status admits no further settlement work.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSuccess || s == PaymentFailed || s == PaymentRefunded
}

// Payment represents one attempted charge against a merchant's tier.
// Immutable once SUCCESS, except for the SubscriptionID backfill that
// happens inside the same transaction that sets SUCCESS. Fee and Net
// are recorded at settlement time so later fee-plan changes never
// alter the historical split.
type Payment struct {
	ID             uuid.UUID     `json:"id"`
	PayerID        uuid.UUID     `json:"payerId"`
	MerchantID     uuid.UUID     `json:"merchantId"`
	ServiceID      uuid.UUID     `json:"serviceId"`
	TierID         uuid.UUID     `json:"tierId"`
	Amount         Money         `json:"amount"`
	Fee            *Money        `json:"fee,omitempty"`       // platform fee, recorded at settlement
	Net            *Money        `json:"netAmount,omitempty"` // amount credited, recorded at settlement
	Provider       string        `json:"provider"`
	ProviderRef    string        `json:"providerRef"` // unique gateway reference
	ProviderTxnID  string        `json:"providerTxnId,omitempty"`
	Status         PaymentStatus `json:"status"`
	CouponID       *uuid.UUID    `json:"couponId,omitempty"`
	OriginalPrice  *Money        `json:"originalPrice,omitempty"` // pre-discount, for audit
	Discount       *Money        `json:"discount,omitempty"`
	SubscriptionID *uuid.UUID    `json:"subscriptionId,omitempty"`
	PayloadCipher  string        `json:"-"` // encrypted raw gateway payload
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// SettlementResult is what Complete returns to the webhook layer.
type SettlementResult struct {
	Payment          *Payment      `json:"payment"`
	Subscription     *Subscription `json:"subscription,omitempty"`
	NetAmount        Money         `json:"netAmount"`
	PlatformFee      Money         `json:"platformFee"`
	AlreadyProcessed bool          `json:"alreadyProcessed"`
}

// RefundStatus is the closed set of refund states.
type RefundStatus string

const (
	RefundPending   RefundStatus = "PENDING"
	RefundCompleted RefundStatus = "COMPLETED"
)

// Refund is the reversal record for a previously settled payment. The
// merchant is debited the original gross amount; Fee records how much
// of that gross was never credited in the first place so finance can
// reconcile the asymmetry.
type Refund struct {
	ID         uuid.UUID    `json:"id"`
	PaymentID  uuid.UUID    `json:"paymentId"`
	MerchantID uuid.UUID    `json:"merchantId"`
	Amount     Money        `json:"amount"` // original gross
	Fee        Money        `json:"fee"`    // platform fee withheld at settlement
	Reason     string       `json:"reason"`
	ApproverID uuid.UUID    `json:"approverId"`
	Status     RefundStatus `json:"status"`
	CreatedAt  time.Time    `json:"createdAt"`
}
