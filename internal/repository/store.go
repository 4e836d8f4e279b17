package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/tierhub/backend/internal/domain"
	"github.com/tierhub/backend/internal/service"
)

// PgStore implements service.Store on a pgxpool. Transactional work
// goes through WithinTx; read-side queries run directly on the pool.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a new PgStore.
func NewStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// WithinTx runs fn inside one database transaction. Any error from fn
// rolls the whole transaction back.
func (s *PgStore) WithinTx(ctx context.Context, fn func(tx service.TxStore) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// GetWallet returns a merchant's wallet, or nil when none exists.
func (s *PgStore) GetWallet(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error) {
	row := s.pool.QueryRow(ctx, walletSelect+` WHERE merchant_id = $1`, merchantID)
	return scanWallet(row)
}

// ListLedgerEntries returns a merchant's ledger entries, newest first.
func (s *PgStore) ListLedgerEntries(ctx context.Context, merchantID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, merchant_id, payment_id, order_id, entry_type, amount::text, currency, description, balance_after::text, created_at
		FROM ledger_entries
		WHERE merchant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, merchantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var amountStr, balanceStr, currency string
		if err := rows.Scan(&e.ID, &e.MerchantID, &e.PaymentID, &e.OrderID, &e.Type, &amountStr, &currency, &e.Description, &balanceStr, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.Amount, err = domain.ParseMoney(amountStr, currency); err != nil {
			return nil, err
		}
		if e.BalanceAfter, err = domain.ParseMoney(balanceStr, currency); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// GetMerchantStats returns rolling analytics counters, or nil when the
// merchant has never settled a payment.
func (s *PgStore) GetMerchantStats(ctx context.Context, merchantID uuid.UUID) (*domain.MerchantStats, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT merchant_id, total_revenue::text, net_revenue::text, today_revenue::text, today_date,
		       month_revenue::text, month_start, currency, subscribers, settlements, updated_at
		FROM merchant_stats WHERE merchant_id = $1
	`, merchantID)

	var st domain.MerchantStats
	var totalStr, netStr, todayStr, monthStr, currency string
	err := row.Scan(&st.MerchantID, &totalStr, &netStr, &todayStr, &st.TodayDate,
		&monthStr, &st.MonthStart, &currency, &st.Subscribers, &st.Settlements, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load merchant stats: %w", err)
	}
	if st.TotalRevenue, err = domain.ParseMoney(totalStr, currency); err != nil {
		return nil, err
	}
	if st.NetRevenue, err = domain.ParseMoney(netStr, currency); err != nil {
		return nil, err
	}
	if st.TodayRevenue, err = domain.ParseMoney(todayStr, currency); err != nil {
		return nil, err
	}
	if st.MonthRevenue, err = domain.ParseMoney(monthStr, currency); err != nil {
		return nil, err
	}
	return &st, nil
}

// GetOrder returns an order with its items, or nil when not found.
func (s *PgStore) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx, orderSelect+` WHERE id = $1`, orderID)
	o, err := scanOrder(row)
	if err != nil || o == nil {
		return o, err
	}
	o.Items, err = loadOrderItems(ctx, s.pool, orderID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateExpiredSubscriptions flips every ACTIVE subscription whose
// expiry has passed to EXPIRED. Meant for the out-of-band sweep; the
// settlement path never calls it.
func (s *PgStore) UpdateExpiredSubscriptions(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE subscriptions
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND expires_at <= NOW()
	`, domain.SubscriptionExpired, domain.SubscriptionActive)
	if err != nil {
		return 0, fmt.Errorf("failed to expire subscriptions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// txStore implements service.TxStore on one open pgx transaction.
type txStore struct {
	tx pgx.Tx
}

// querier is the shared surface of pgx.Tx and *pgxpool.Pool the scan
// helpers need.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return d, nil
}
