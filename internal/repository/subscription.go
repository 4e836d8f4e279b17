package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tierhub/backend/internal/domain"
)

const subscriptionSelect = `
	SELECT id, payer_id, merchant_id, service_id, tier_id, status,
	       starts_at, expires_at, renewals, created_at, updated_at
	FROM subscriptions`

func scanSubscription(row rowScanner) (*domain.Subscription, error) {
	var s domain.Subscription
	err := row.Scan(
		&s.ID, &s.PayerID, &s.MerchantID, &s.ServiceID, &s.TierID, &s.Status,
		&s.StartsAt, &s.ExpiresAt, &s.Renewals, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	return &s, nil
}

func (t *txStore) GetTier(ctx context.Context, id uuid.UUID) (*domain.Tier, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, service_id, name, price::text, currency, interval_unit, interval_count
		FROM tiers WHERE id = $1
	`, id)

	var tier domain.Tier
	var priceStr, currency string
	err := row.Scan(&tier.ID, &tier.ServiceID, &tier.Name, &priceStr, &currency, &tier.IntervalUnit, &tier.IntervalCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load tier: %w", err)
	}
	if tier.Price, err = domain.ParseMoney(priceStr, currency); err != nil {
		return nil, err
	}
	return &tier, nil
}

// GetSubscriptionForUpdate loads the (payer, service) subscription
// under a row lock. Returns nil when the payer has never subscribed.
func (t *txStore) GetSubscriptionForUpdate(ctx context.Context, payerID, serviceID uuid.UUID) (*domain.Subscription, error) {
	row := t.tx.QueryRow(ctx, subscriptionSelect+` WHERE payer_id = $1 AND service_id = $2 FOR UPDATE`, payerID, serviceID)
	return scanSubscription(row)
}

func (t *txStore) GetSubscriptionByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	row := t.tx.QueryRow(ctx, subscriptionSelect+` WHERE id = $1 FOR UPDATE`, id)
	return scanSubscription(row)
}

// SaveSubscription upserts by primary key. The (payer_id, service_id)
// unique constraint backstops the one-subscription-per-pair invariant.
func (t *txStore) SaveSubscription(ctx context.Context, sub *domain.Subscription) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO subscriptions (id, payer_id, merchant_id, service_id, tier_id, status, starts_at, expires_at, renewals, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET tier_id = EXCLUDED.tier_id, status = EXCLUDED.status,
		    starts_at = EXCLUDED.starts_at, expires_at = EXCLUDED.expires_at,
		    renewals = EXCLUDED.renewals, updated_at = EXCLUDED.updated_at
	`, sub.ID, sub.PayerID, sub.MerchantID, sub.ServiceID, sub.TierID, sub.Status,
		sub.StartsAt, sub.ExpiresAt, sub.Renewals, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: payer %s already holds this service", domain.ErrAlreadyProcessed, sub.PayerID)
		}
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}
