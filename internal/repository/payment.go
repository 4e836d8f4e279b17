package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tierhub/backend/internal/domain"
)

const paymentSelect = `
	SELECT id, payer_id, merchant_id, service_id, tier_id, amount::text,
	       fee::text, net_amount::text, currency,
	       provider, provider_ref, provider_txn_id, status, coupon_id,
	       original_price::text, discount::text, subscription_id, payload_cipher,
	       created_at, updated_at
	FROM payments`

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	var amountStr, currency string
	var feeStr, netStr, providerTxnID, originalStr, discountStr, payloadCipher *string
	err := row.Scan(
		&p.ID, &p.PayerID, &p.MerchantID, &p.ServiceID, &p.TierID, &amountStr,
		&feeStr, &netStr, &currency,
		&p.Provider, &p.ProviderRef, &providerTxnID, &p.Status, &p.CouponID,
		&originalStr, &discountStr, &p.SubscriptionID, &payloadCipher,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	if p.Amount, err = domain.ParseMoney(amountStr, currency); err != nil {
		return nil, err
	}
	if feeStr != nil {
		m, err := domain.ParseMoney(*feeStr, currency)
		if err != nil {
			return nil, err
		}
		p.Fee = &m
	}
	if netStr != nil {
		m, err := domain.ParseMoney(*netStr, currency)
		if err != nil {
			return nil, err
		}
		p.Net = &m
	}
	if providerTxnID != nil {
		p.ProviderTxnID = *providerTxnID
	}
	if payloadCipher != nil {
		p.PayloadCipher = *payloadCipher
	}
	if originalStr != nil {
		m, err := domain.ParseMoney(*originalStr, currency)
		if err != nil {
			return nil, err
		}
		p.OriginalPrice = &m
	}
	if discountStr != nil {
		m, err := domain.ParseMoney(*discountStr, currency)
		if err != nil {
			return nil, err
		}
		p.Discount = &m
	}
	return &p, nil
}

// GetPaymentForUpdate loads a payment under a row lock held until the
// enclosing transaction ends. Returns nil when the id does not resolve.
func (t *txStore) GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := t.tx.QueryRow(ctx, paymentSelect+` WHERE id = $1 FOR UPDATE`, id)
	return scanPayment(row)
}

func (t *txStore) UpdatePayment(ctx context.Context, p *domain.Payment) error {
	var providerTxnID, payloadCipher, feeStr, netStr *string
	if p.ProviderTxnID != "" {
		providerTxnID = &p.ProviderTxnID
	}
	if p.PayloadCipher != "" {
		payloadCipher = &p.PayloadCipher
	}
	if p.Fee != nil {
		s := p.Fee.Amount.String()
		feeStr = &s
	}
	if p.Net != nil {
		s := p.Net.Amount.String()
		netStr = &s
	}
	_, err := t.tx.Exec(ctx, `
		UPDATE payments
		SET status = $1, provider_txn_id = $2, subscription_id = $3, payload_cipher = $4,
		    fee = $5, net_amount = $6, updated_at = $7
		WHERE id = $8
	`, p.Status, providerTxnID, p.SubscriptionID, payloadCipher, feeStr, netStr, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	return nil
}

// GetFeePercent returns the merchant's fee-plan rate. ok is false when
// the merchant has no explicit plan and the platform default applies.
func (t *txStore) GetFeePercent(ctx context.Context, merchantID uuid.UUID) (decimal.Decimal, bool, error) {
	var percentStr string
	row := t.tx.QueryRow(ctx, `SELECT percent::text FROM fee_plans WHERE merchant_id = $1`, merchantID)
	if err := row.Scan(&percentStr); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("failed to load fee plan: %w", err)
	}
	percent, err := parseDecimal(percentStr)
	if err != nil {
		return decimal.Zero, false, err
	}
	return percent, true, nil
}

func (t *txStore) CreateRefund(ctx context.Context, r *domain.Refund) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO refunds (id, payment_id, merchant_id, amount, fee, currency, reason, approver_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.ID, r.PaymentID, r.MerchantID, r.Amount.Amount.String(), r.Fee.Amount.String(),
		r.Amount.Currency, r.Reason, r.ApproverID, r.Status, r.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrAlreadyProcessed, r.PaymentID)
		}
		return fmt.Errorf("failed to create refund: %w", err)
	}
	return nil
}
