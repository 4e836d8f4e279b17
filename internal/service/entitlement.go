package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tierhub/backend/internal/domain"
)

// EntitlementManager creates or extends subscriptions. It only ever
// runs inside a settlement transaction; callers pass the enclosing
// TxStore so its writes commit or roll back with the rest.
type EntitlementManager struct{}

// NewEntitlementManager creates a new EntitlementManager.
func NewEntitlementManager() *EntitlementManager {
	return &EntitlementManager{}
}

// CreateOrExtend grants or renews the (payer, service) entitlement for
// one billing period of the given tier. An active subscription is
// extended from its current expiry so early renewals keep paid-for
// time; a lapsed one restarts from now. created reports whether a new
// subscription row was made (vs. a renewal).
func (m *EntitlementManager) CreateOrExtend(
	ctx context.Context,
	tx TxStore,
	payerID, merchantID, serviceID, tierID uuid.UUID,
) (sub *domain.Subscription, created bool, err error) {
	tier, err := tx.GetTier(ctx, tierID)
	if err != nil {
		return nil, false, err
	}
	if tier == nil {
		return nil, false, fmt.Errorf("%w: %s", domain.ErrTierNotFound, tierID)
	}

	now := time.Now().UTC()

	existing, err := tx.GetSubscriptionForUpdate(ctx, payerID, serviceID)
	if err != nil {
		return nil, false, err
	}

	if existing == nil {
		sub = &domain.Subscription{
			ID:         uuid.New(),
			PayerID:    payerID,
			MerchantID: merchantID,
			ServiceID:  serviceID,
			TierID:     tierID,
			Status:     domain.SubscriptionActive,
			StartsAt:   now,
			ExpiresAt:  tier.NextExpiry(now),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.SaveSubscription(ctx, sub); err != nil {
			return nil, false, err
		}
		return sub, true, nil
	}

	if existing.ActiveAt(now) {
		// Stack the new period onto the remaining one.
		existing.ExpiresAt = tier.NextExpiry(existing.ExpiresAt)
	} else {
		// Lapsed: fresh activation from now.
		existing.StartsAt = now
		existing.ExpiresAt = tier.NextExpiry(now)
	}
	existing.TierID = tierID
	existing.Status = domain.SubscriptionActive
	existing.Renewals++
	existing.UpdatedAt = now

	if err := tx.SaveSubscription(ctx, existing); err != nil {
		return nil, false, err
	}
	return existing, false, nil
}
