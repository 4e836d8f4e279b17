package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tierhub/backend/internal/domain"
)

func (t *txStore) IncrementCouponUsage(ctx context.Context, couponID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `UPDATE coupons SET usage_count = usage_count + 1 WHERE id = $1`, couponID)
	if err != nil {
		return fmt.Errorf("failed to increment coupon usage: %w", err)
	}
	return nil
}

func (t *txStore) CreateCouponRedemption(ctx context.Context, r *domain.CouponRedemption) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO coupon_redemptions (id, coupon_id, payer_id, subscription_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, r.ID, r.CouponID, r.PayerID, r.SubscriptionID, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create coupon redemption: %w", err)
	}
	return nil
}
