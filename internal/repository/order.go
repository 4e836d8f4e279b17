package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tierhub/backend/internal/domain"
)

const orderSelect = `
	SELECT id, customer_id, merchant_id, status, total::text, currency,
	       COALESCE(shipping_name, ''), COALESCE(shipping_address, ''), COALESCE(shipping_phone, ''),
	       created_at, updated_at
	FROM orders`

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var totalStr, currency string
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.MerchantID, &o.Status, &totalStr, &currency,
		&o.ShippingName, &o.ShippingAddress, &o.ShippingPhone,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	if o.Total, err = domain.ParseMoney(totalStr, currency); err != nil {
		return nil, err
	}
	return &o, nil
}

func loadOrderItems(ctx context.Context, q querier, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, variant_id, quantity, unit_price::text, line_total::text, currency
		FROM order_items WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		var unitStr, lineStr, currency string
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Quantity, &unitStr, &lineStr, &currency); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = domain.ParseMoney(unitStr, currency); err != nil {
			return nil, err
		}
		if it.LineTotal, err = domain.ParseMoney(lineStr, currency); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (t *txStore) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var p domain.Product
	row := t.tx.QueryRow(ctx, `SELECT id, merchant_id, name FROM products WHERE id = $1`, id)
	if err := row.Scan(&p.ID, &p.MerchantID, &p.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return &p, nil
}

// GetVariantForUpdate loads a variant under a row lock so concurrent
// orders for the same stock serialize.
func (t *txStore) GetVariantForUpdate(ctx context.Context, id uuid.UUID) (*domain.Variant, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, product_id, name, price::text, currency, stock
		FROM variants WHERE id = $1 FOR UPDATE
	`, id)

	var v domain.Variant
	var priceStr, currency string
	err := row.Scan(&v.ID, &v.ProductID, &v.Name, &priceStr, &currency, &v.Stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load variant: %w", err)
	}
	if v.Price, err = domain.ParseMoney(priceStr, currency); err != nil {
		return nil, err
	}
	return &v, nil
}

func (t *txStore) UpdateVariantStock(ctx context.Context, id uuid.UUID, stock int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE variants SET stock = $1 WHERE id = $2`, stock, id)
	if err != nil {
		return fmt.Errorf("failed to update variant stock: %w", err)
	}
	return nil
}

func (t *txStore) CreateOrder(ctx context.Context, o *domain.Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders (id, customer_id, merchant_id, status, total, currency, shipping_name, shipping_address, shipping_phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, o.ID, o.CustomerID, o.MerchantID, o.Status, o.Total.Amount.String(), o.Total.Currency,
		o.ShippingName, o.ShippingAddress, o.ShippingPhone, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	for _, it := range o.Items {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, variant_id, quantity, unit_price, line_total, currency)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, it.ID, it.OrderID, it.ProductID, it.VariantID, it.Quantity,
			it.UnitPrice.Amount.String(), it.LineTotal.Amount.String(), it.UnitPrice.Currency)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}
	return nil
}

func (t *txStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := t.tx.QueryRow(ctx, orderSelect+` WHERE id = $1 FOR UPDATE`, id)
	o, err := scanOrder(row)
	if err != nil || o == nil {
		return o, err
	}
	o.Items, err = loadOrderItems(ctx, t.tx, id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (t *txStore) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return nil
}
