package domain

import (
	"time"

	"github.com/google/uuid"
)

// Coupon is a merchant discount code; UsageCount increments once per
// redeemed settlement.
type Coupon struct {
	ID         uuid.UUID `json:"id"`
	MerchantID uuid.UUID `json:"merchantId"`
	Code       string    `json:"code"`
	UsageCount int64     `json:"usageCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CouponRedemption links a payer, a coupon and the subscription the
// discounted payment produced. Written once per settlement that carried
// a coupon.
type CouponRedemption struct {
	ID             uuid.UUID `json:"id"`
	CouponID       uuid.UUID `json:"couponId"`
	PayerID        uuid.UUID `json:"payerId"`
	SubscriptionID uuid.UUID `json:"subscriptionId"`
	CreatedAt      time.Time `json:"createdAt"`
}
