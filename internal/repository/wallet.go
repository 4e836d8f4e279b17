package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tierhub/backend/internal/domain"
)

const walletSelect = `
	SELECT merchant_id, available::text, pending_escrow::text, currency, updated_at
	FROM wallets`

func scanWallet(row rowScanner) (*domain.Wallet, error) {
	var w domain.Wallet
	var availableStr, escrowStr, currency string
	err := row.Scan(&w.MerchantID, &availableStr, &escrowStr, &currency, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}
	if w.Available, err = domain.ParseMoney(availableStr, currency); err != nil {
		return nil, err
	}
	if w.PendingEscrow, err = domain.ParseMoney(escrowStr, currency); err != nil {
		return nil, err
	}
	return &w, nil
}

// GetWalletForUpdate loads a merchant wallet under a row lock, which is
// what serializes concurrent settlements for one merchant.
func (t *txStore) GetWalletForUpdate(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error) {
	row := t.tx.QueryRow(ctx, walletSelect+` WHERE merchant_id = $1 FOR UPDATE`, merchantID)
	return scanWallet(row)
}

func (t *txStore) UpdateWallet(ctx context.Context, w *domain.Wallet) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE wallets
		SET available = $1, pending_escrow = $2, updated_at = $3
		WHERE merchant_id = $4
	`, w.Available.Amount.String(), w.PendingEscrow.Amount.String(), w.UpdatedAt, w.MerchantID)
	if err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	return nil
}

func (t *txStore) AppendLedgerEntry(ctx context.Context, e *domain.LedgerEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO ledger_entries (id, merchant_id, payment_id, order_id, entry_type, amount, currency, description, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.MerchantID, e.PaymentID, e.OrderID, e.Type,
		e.Amount.Amount.String(), e.Amount.Currency, e.Description,
		e.BalanceAfter.Amount.String(), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// ApplyStatsDelta upserts the merchant's rolling counters. Today and
// month buckets reset when their date key has rolled over.
func (t *txStore) ApplyStatsDelta(ctx context.Context, merchantID uuid.UUID, delta domain.StatsDelta) error {
	gross := delta.GrossRevenue.Amount.String()
	net := delta.NetRevenue.Amount.String()
	_, err := t.tx.Exec(ctx, `
		INSERT INTO merchant_stats (merchant_id, total_revenue, net_revenue, today_revenue, today_date,
		                            month_revenue, month_start, currency, subscribers, settlements, updated_at)
		VALUES ($1, $2, $3, $2, CURRENT_DATE, $2, DATE_TRUNC('month', CURRENT_DATE), $4, $5, 1, NOW())
		ON CONFLICT (merchant_id) DO UPDATE SET
			total_revenue = merchant_stats.total_revenue + EXCLUDED.total_revenue,
			net_revenue   = merchant_stats.net_revenue + EXCLUDED.net_revenue,
			today_revenue = CASE WHEN merchant_stats.today_date = CURRENT_DATE
				THEN merchant_stats.today_revenue + EXCLUDED.today_revenue
				ELSE EXCLUDED.today_revenue END,
			today_date    = CURRENT_DATE,
			month_revenue = CASE WHEN merchant_stats.month_start = DATE_TRUNC('month', CURRENT_DATE)
				THEN merchant_stats.month_revenue + EXCLUDED.month_revenue
				ELSE EXCLUDED.month_revenue END,
			month_start   = DATE_TRUNC('month', CURRENT_DATE),
			subscribers   = merchant_stats.subscribers + EXCLUDED.subscribers,
			settlements   = merchant_stats.settlements + 1,
			updated_at    = NOW()
	`, merchantID, gross, net, delta.GrossRevenue.Currency, delta.NewSubscribers)
	if err != nil {
		return fmt.Errorf("failed to apply stats delta: %w", err)
	}
	return nil
}
