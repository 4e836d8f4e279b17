package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is the closed set of entitlement states.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionExpired   SubscriptionStatus = "EXPIRED"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
	SubscriptionPending   SubscriptionStatus = "PENDING"
)

// Subscription grants a payer time-boxed access to a merchant's service
// tier. At most one subscription exists per (payer, service) pair;
// renewal extends the existing row.
type Subscription struct {
	ID         uuid.UUID          `json:"id"`
	PayerID    uuid.UUID          `json:"payerId"`
	MerchantID uuid.UUID          `json:"merchantId"`
	ServiceID  uuid.UUID          `json:"serviceId"`
	TierID     uuid.UUID          `json:"tierId"`
	Status     SubscriptionStatus `json:"status"`
	StartsAt   time.Time          `json:"startsAt"`
	ExpiresAt  time.Time          `json:"expiresAt"`
	Renewals   int                `json:"renewals"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// ActiveAt reports whether the subscription still has paid-for time at t.
func (s *Subscription) ActiveAt(t time.Time) bool {
	return s.Status == SubscriptionActive && s.ExpiresAt.After(t)
}

// IntervalUnit is a tier's billing interval unit.
type IntervalUnit string

const (
	IntervalDay   IntervalUnit = "day"
	IntervalWeek  IntervalUnit = "week"
	IntervalMonth IntervalUnit = "month"
	IntervalYear  IntervalUnit = "year"
)

// AddTo returns t advanced by count units.
func (u IntervalUnit) AddTo(t time.Time, count int) time.Time {
	switch u {
	case IntervalDay:
		return t.AddDate(0, 0, count)
	case IntervalWeek:
		return t.AddDate(0, 0, 7*count)
	case IntervalMonth:
		return t.AddDate(0, count, 0)
	case IntervalYear:
		return t.AddDate(count, 0, 0)
	default:
		return t
	}
}

// Tier is a merchant-defined pricing/interval option for a service.
type Tier struct {
	ID            uuid.UUID    `json:"id"`
	ServiceID     uuid.UUID    `json:"serviceId"`
	Name          string       `json:"name"`
	Price         Money        `json:"price"`
	IntervalUnit  IntervalUnit `json:"intervalUnit"`
	IntervalCount int          `json:"intervalCount"`
}

// NextExpiry computes the expiry for one billing period starting at from.
func (t *Tier) NextExpiry(from time.Time) time.Time {
	return t.IntervalUnit.AddTo(from, t.IntervalCount)
}
