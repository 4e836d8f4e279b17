package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tierhub/backend/internal/domain"
)

// Store is the storage boundary for the settlement core. WithinTx runs
// fn inside one database transaction: every write fn performs through
// the TxStore commits atomically, or none do. The read-side methods run
// outside any transaction.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx TxStore) error) error

	GetWallet(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error)
	ListLedgerEntries(ctx context.Context, merchantID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error)
	GetMerchantStats(ctx context.Context, merchantID uuid.UUID) (*domain.MerchantStats, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
}

// TxStore is the unit of work handed to every step of a settlement,
// refund or order transaction. "ForUpdate" loads take a row lock held
// until the enclosing transaction commits or rolls back, which is what
// serializes concurrent settlements on the payment and wallet rows.
type TxStore interface {
	// Payments
	GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	UpdatePayment(ctx context.Context, p *domain.Payment) error

	// Merchant fee plans. ok is false when the merchant has no explicit
	// plan and the platform default applies.
	GetFeePercent(ctx context.Context, merchantID uuid.UUID) (percent decimal.Decimal, ok bool, err error)

	// Entitlements
	GetTier(ctx context.Context, id uuid.UUID) (*domain.Tier, error)
	GetSubscriptionForUpdate(ctx context.Context, payerID, serviceID uuid.UUID) (*domain.Subscription, error)
	GetSubscriptionByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Subscription, error)
	SaveSubscription(ctx context.Context, sub *domain.Subscription) error

	// Wallet + ledger
	GetWalletForUpdate(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error)
	UpdateWallet(ctx context.Context, w *domain.Wallet) error
	AppendLedgerEntry(ctx context.Context, e *domain.LedgerEntry) error

	// Analytics
	ApplyStatsDelta(ctx context.Context, merchantID uuid.UUID, delta domain.StatsDelta) error

	// Coupons
	IncrementCouponUsage(ctx context.Context, couponID uuid.UUID) error
	CreateCouponRedemption(ctx context.Context, r *domain.CouponRedemption) error

	// Refunds
	CreateRefund(ctx context.Context, r *domain.Refund) error

	// Orders + inventory
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	GetVariantForUpdate(ctx context.Context, id uuid.UUID) (*domain.Variant, error)
	UpdateVariantStock(ctx context.Context, id uuid.UUID, stock int64) error
	CreateOrder(ctx context.Context, o *domain.Order) error
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error
}
