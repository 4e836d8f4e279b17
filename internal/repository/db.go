package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the initial schema migration. Money columns
// are NUMERIC(20,4) with an adjacent currency code; one currency column
// covers every amount in its row.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS fee_plans (
			merchant_id UUID PRIMARY KEY,
			percent     NUMERIC(6,3) NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS tiers (
			id             UUID PRIMARY KEY,
			service_id     UUID NOT NULL,
			name           TEXT NOT NULL,
			price          NUMERIC(20,4) NOT NULL,
			currency       TEXT NOT NULL,
			interval_unit  TEXT NOT NULL,
			interval_count INT NOT NULL DEFAULT 1
		);
		CREATE INDEX IF NOT EXISTS idx_tiers_service_id ON tiers(service_id);

		CREATE TABLE IF NOT EXISTS payments (
			id              UUID PRIMARY KEY,
			payer_id        UUID NOT NULL,
			merchant_id     UUID NOT NULL,
			service_id      UUID NOT NULL,
			tier_id         UUID NOT NULL,
			amount          NUMERIC(20,4) NOT NULL,
			fee             NUMERIC(20,4),
			net_amount      NUMERIC(20,4),
			currency        TEXT NOT NULL,
			provider        TEXT NOT NULL,
			provider_ref    TEXT NOT NULL UNIQUE,
			provider_txn_id TEXT,
			status          TEXT NOT NULL DEFAULT 'PENDING',
			coupon_id       UUID,
			original_price  NUMERIC(20,4),
			discount        NUMERIC(20,4),
			subscription_id UUID,
			payload_cipher  TEXT,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_payments_merchant_id ON payments(merchant_id);
		CREATE INDEX IF NOT EXISTS idx_payments_payer_id ON payments(payer_id);

		CREATE TABLE IF NOT EXISTS subscriptions (
			id          UUID PRIMARY KEY,
			payer_id    UUID NOT NULL,
			merchant_id UUID NOT NULL,
			service_id  UUID NOT NULL,
			tier_id     UUID NOT NULL,
			status      TEXT NOT NULL,
			starts_at   TIMESTAMPTZ NOT NULL,
			expires_at  TIMESTAMPTZ NOT NULL,
			renewals    INT NOT NULL DEFAULT 0,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (payer_id, service_id)
		);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_merchant_id ON subscriptions(merchant_id);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_expires_at ON subscriptions(expires_at);

		CREATE TABLE IF NOT EXISTS wallets (
			merchant_id    UUID PRIMARY KEY,
			available      NUMERIC(20,4) NOT NULL DEFAULT 0,
			pending_escrow NUMERIC(20,4) NOT NULL DEFAULT 0,
			currency       TEXT NOT NULL,
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS ledger_entries (
			id            UUID PRIMARY KEY,
			merchant_id   UUID NOT NULL,
			payment_id    UUID,
			order_id      UUID,
			entry_type    TEXT NOT NULL,
			amount        NUMERIC(20,4) NOT NULL,
			currency      TEXT NOT NULL,
			description   TEXT NOT NULL,
			balance_after NUMERIC(20,4) NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_entries_merchant_id ON ledger_entries(merchant_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS refunds (
			id          UUID PRIMARY KEY,
			payment_id  UUID NOT NULL UNIQUE,
			merchant_id UUID NOT NULL,
			amount      NUMERIC(20,4) NOT NULL,
			fee         NUMERIC(20,4) NOT NULL,
			currency    TEXT NOT NULL,
			reason      TEXT NOT NULL,
			approver_id UUID NOT NULL,
			status      TEXT NOT NULL DEFAULT 'PENDING',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS coupons (
			id          UUID PRIMARY KEY,
			merchant_id UUID NOT NULL,
			code        TEXT NOT NULL,
			usage_count BIGINT NOT NULL DEFAULT 0,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (merchant_id, code)
		);

		CREATE TABLE IF NOT EXISTS coupon_redemptions (
			id              UUID PRIMARY KEY,
			coupon_id       UUID NOT NULL,
			payer_id        UUID NOT NULL,
			subscription_id UUID NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_coupon_redemptions_coupon_id ON coupon_redemptions(coupon_id);

		CREATE TABLE IF NOT EXISTS merchant_stats (
			merchant_id   UUID PRIMARY KEY,
			total_revenue NUMERIC(20,4) NOT NULL DEFAULT 0,
			net_revenue   NUMERIC(20,4) NOT NULL DEFAULT 0,
			today_revenue NUMERIC(20,4) NOT NULL DEFAULT 0,
			today_date    DATE NOT NULL DEFAULT CURRENT_DATE,
			month_revenue NUMERIC(20,4) NOT NULL DEFAULT 0,
			month_start   DATE NOT NULL DEFAULT DATE_TRUNC('month', CURRENT_DATE),
			currency      TEXT NOT NULL,
			subscribers   BIGINT NOT NULL DEFAULT 0,
			settlements   BIGINT NOT NULL DEFAULT 0,
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS products (
			id          UUID PRIMARY KEY,
			merchant_id UUID NOT NULL,
			name        TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_products_merchant_id ON products(merchant_id);

		CREATE TABLE IF NOT EXISTS variants (
			id         UUID PRIMARY KEY,
			product_id UUID NOT NULL REFERENCES products(id),
			name       TEXT NOT NULL,
			price      NUMERIC(20,4) NOT NULL,
			currency   TEXT NOT NULL,
			stock      BIGINT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_variants_product_id ON variants(product_id);

		CREATE TABLE IF NOT EXISTS orders (
			id               UUID PRIMARY KEY,
			customer_id      UUID NOT NULL,
			merchant_id      UUID NOT NULL,
			status           TEXT NOT NULL DEFAULT 'PENDING_PAYMENT',
			total            NUMERIC(20,4) NOT NULL,
			currency         TEXT NOT NULL,
			shipping_name    TEXT,
			shipping_address TEXT,
			shipping_phone   TEXT,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_orders_merchant_id ON orders(merchant_id);
		CREATE INDEX IF NOT EXISTS idx_orders_customer_id ON orders(customer_id);

		CREATE TABLE IF NOT EXISTS order_items (
			id         UUID PRIMARY KEY,
			order_id   UUID NOT NULL REFERENCES orders(id),
			product_id UUID NOT NULL,
			variant_id UUID,
			quantity   BIGINT NOT NULL,
			unit_price NUMERIC(20,4) NOT NULL,
			line_total NUMERIC(20,4) NOT NULL,
			currency   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);
	`
	_, err := pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
