package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/tierhub/backend/internal/domain"
)

// OrderService owns order placement (stock reservation + total
// computation) and the order lifecycle through escrow release. It
// shares the settlement core's transaction and locking primitives.
type OrderService struct {
	store    Store
	notifier Notifier
}

// NewOrderService creates a new OrderService.
func NewOrderService(store Store, notifier Notifier) *OrderService {
	return &OrderService{store: store, notifier: notifier}
}

// OrderLine is one requested line item for Create.
type OrderLine struct {
	ProductID uuid.UUID
	VariantID uuid.UUID
	Quantity  int64
}

// Shipping carries the order's delivery fields.
type Shipping struct {
	Name    string
	Address string
	Phone   string
}

// Create places an order: per line item it locks the variant row,
// validates the requested quantity against live stock, decrements it
// and snapshots the unit price, accumulating the order total. Any
// shortfall fails the whole order with InsufficientStockError; partial
// reservations are never left committed.
func (s *OrderService) Create(ctx context.Context, customerID, merchantID uuid.UUID, lines []OrderLine, shipping Shipping) (*domain.Order, error) {
	if len(lines) == 0 {
		return nil, domain.ErrBadRequest("order must have at least one item")
	}

	// Reserve in variant id order so concurrent orders touching the
	// same variants always lock rows in the same sequence and cannot
	// deadlock each other.
	sorted := make([]OrderLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].VariantID[:], sorted[j].VariantID[:]) < 0
	})

	var order *domain.Order
	err := s.store.WithinTx(ctx, func(tx TxStore) error {
		now := time.Now().UTC()
		orderID := uuid.New()

		var total domain.Money
		items := make([]domain.OrderItem, 0, len(sorted))

		for _, line := range sorted {
			variant, err := tx.GetVariantForUpdate(ctx, line.VariantID)
			if err != nil {
				return err
			}
			if variant == nil || variant.ProductID != line.ProductID {
				return fmt.Errorf("%w: %s", domain.ErrVariantNotFound, line.VariantID)
			}
			if variant.Stock < line.Quantity {
				product, err := tx.GetProduct(ctx, line.ProductID)
				if err != nil {
					return err
				}
				name := line.ProductID.String()
				if product != nil {
					name = product.Name
				}
				return &domain.InsufficientStockError{
					ProductID:   line.ProductID,
					ProductName: name,
					Requested:   line.Quantity,
					Available:   variant.Stock,
				}
			}
			if err := tx.UpdateVariantStock(ctx, variant.ID, variant.Stock-line.Quantity); err != nil {
				return err
			}

			lineTotal := variant.Price.MulInt(line.Quantity)
			variantID := variant.ID
			items = append(items, domain.OrderItem{
				ID:        uuid.New(),
				OrderID:   orderID,
				ProductID: line.ProductID,
				VariantID: &variantID,
				Quantity:  line.Quantity,
				UnitPrice: variant.Price,
				LineTotal: lineTotal,
			})
			if total.Currency == "" {
				total = domain.ZeroMoney(variant.Price.Currency)
			}
			total = total.Add(lineTotal)
		}

		order = &domain.Order{
			ID:              orderID,
			CustomerID:      customerID,
			MerchantID:      merchantID,
			Status:          domain.OrderPendingPayment,
			Total:           total,
			ShippingName:    shipping.Name,
			ShippingAddress: shipping.Address,
			ShippingPhone:   shipping.Phone,
			Items:           items,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return tx.CreateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Advance moves an order to the next fulfillment state on explicit
// staff/rider action. Moving PENDING_PAYMENT to DISPATCHED records the
// customer's funds in the merchant's pending escrow; they stay held
// there until Complete releases them.
func (s *OrderService) Advance(ctx context.Context, orderID uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	var order *domain.Order
	err := s.store.WithinTx(ctx, func(tx TxStore) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
		}
		if !o.Status.CanTransitionTo(next) || next == domain.OrderCompleted || next == domain.OrderCancelled {
			return fmt.Errorf("%w: order %s %s -> %s", domain.ErrInvalidTransition, o.ID, o.Status, next)
		}

		if o.Status == domain.OrderPendingPayment && next == domain.OrderDispatched {
			w, err := tx.GetWalletForUpdate(ctx, o.MerchantID)
			if err != nil {
				return err
			}
			if w == nil {
				return fmt.Errorf("%w: merchant %s", domain.ErrWalletNotFound, o.MerchantID)
			}
			w.PendingEscrow = w.PendingEscrow.Add(o.Total)
			w.UpdatedAt = time.Now().UTC()
			if err := tx.UpdateWallet(ctx, w); err != nil {
				return err
			}
		}

		if err := tx.UpdateOrderStatus(ctx, o.ID, next); err != nil {
			return err
		}
		o.Status = next
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Complete finishes a delivered order: moves its total from pending
// escrow to the available balance with the same ledger pattern as a
// settlement credit, and marks the order COMPLETED. Legal only from
// DELIVERED.
func (s *OrderService) Complete(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	var order *domain.Order
	err := s.store.WithinTx(ctx, func(tx TxStore) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
		}
		if !o.Status.CanTransitionTo(domain.OrderCompleted) {
			return fmt.Errorf("%w: order %s %s -> %s", domain.ErrInvalidTransition, o.ID, o.Status, domain.OrderCompleted)
		}

		now := time.Now().UTC()
		w, err := tx.GetWalletForUpdate(ctx, o.MerchantID)
		if err != nil {
			return err
		}
		if w == nil {
			return fmt.Errorf("%w: merchant %s", domain.ErrWalletNotFound, o.MerchantID)
		}
		w.PendingEscrow = w.PendingEscrow.Sub(o.Total)
		w.Available = w.Available.Add(o.Total)
		w.UpdatedAt = now
		if err := tx.UpdateWallet(ctx, w); err != nil {
			return err
		}

		entry := &domain.LedgerEntry{
			ID:           uuid.New(),
			MerchantID:   o.MerchantID,
			OrderID:      &o.ID,
			Type:         domain.EntryCredit,
			Amount:       o.Total,
			Description:  fmt.Sprintf("escrow release for order %s", o.ID),
			BalanceAfter: w.Available,
			CreatedAt:    now,
		}
		if err := tx.AppendLedgerEntry(ctx, entry); err != nil {
			return err
		}

		if err := tx.UpdateOrderStatus(ctx, o.ID, domain.OrderCompleted); err != nil {
			return err
		}
		o.Status = domain.OrderCompleted
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("completed order %s: released %s from escrow", orderID, order.Total)
	if s.notifier != nil {
		s.notifier.Publish(FeedEvent{
			MerchantID: order.MerchantID,
			Kind:       "escrow_release",
			OrderID:    &order.ID,
			Amount:     order.Total,
			At:         time.Now().UTC(),
		})
	}
	return order, nil
}

// Cancel voids an unpaid order and restores the reserved stock in the
// same transaction. Legal only from PENDING_PAYMENT.
func (s *OrderService) Cancel(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	var order *domain.Order
	err := s.store.WithinTx(ctx, func(tx TxStore) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
		}
		if !o.Status.CanTransitionTo(domain.OrderCancelled) {
			return fmt.Errorf("%w: order %s %s -> %s", domain.ErrInvalidTransition, o.ID, o.Status, domain.OrderCancelled)
		}

		for _, item := range o.Items {
			if item.VariantID == nil {
				continue
			}
			variant, err := tx.GetVariantForUpdate(ctx, *item.VariantID)
			if err != nil {
				return err
			}
			if variant == nil {
				return fmt.Errorf("%w: %s", domain.ErrVariantNotFound, *item.VariantID)
			}
			if err := tx.UpdateVariantStock(ctx, variant.ID, variant.Stock+item.Quantity); err != nil {
				return err
			}
		}

		if err := tx.UpdateOrderStatus(ctx, o.ID, domain.OrderCancelled); err != nil {
			return err
		}
		o.Status = domain.OrderCancelled
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Get returns an order with its items.
func (s *OrderService) Get(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	return o, nil
}
