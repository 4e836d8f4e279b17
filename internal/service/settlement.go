package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tierhub/backend/internal/domain"
	"github.com/tierhub/backend/pkg/crypto"
)

// FeedEvent is pushed to the merchant dashboard feed after a settlement
// transaction commits. Delivery is fire-and-forget and never part of
// the transaction.
type FeedEvent struct {
	MerchantID uuid.UUID    `json:"merchantId"`
	Kind       string       `json:"kind"` // "settlement", "refund", "escrow_release"
	PaymentID  *uuid.UUID   `json:"paymentId,omitempty"`
	OrderID    *uuid.UUID   `json:"orderId,omitempty"`
	Amount     domain.Money `json:"amount"`
	At         time.Time    `json:"at"`
}

// Notifier receives committed feed events.
type Notifier interface {
	Publish(ev FeedEvent)
}

// SettlementService owns the payment-completion and refund-reversal
// transactions. Every public operation runs inside exactly one store
// transaction; any failure rolls back every write from that invocation.
type SettlementService struct {
	store        Store
	entitlements *EntitlementManager
	enc          *crypto.Encryptor
	defaultFee   decimal.Decimal // percent, applied when the merchant has no fee plan
	notifier     Notifier
}

// NewSettlementService creates a new SettlementService. enc may be nil,
// in which case raw gateway payloads are not stored. notifier may be
// nil.
func NewSettlementService(store Store, entitlements *EntitlementManager, enc *crypto.Encryptor, defaultFeePercent decimal.Decimal, notifier Notifier) *SettlementService {
	return &SettlementService{
		store:        store,
		entitlements: entitlements,
		enc:          enc,
		defaultFee:   defaultFeePercent,
		notifier:     notifier,
	}
}

// Complete settles a pending payment: marks it SUCCESS, creates or
// extends the payer's subscription, credits the merchant wallet net of
// the platform fee, appends the ledger entry, updates analytics and
// records any coupon redemption, all in one transaction. A payment
// that is already terminal short-circuits to a cached-result echo with
// AlreadyProcessed set; no side effects run twice.
func (s *SettlementService) Complete(ctx context.Context, paymentID uuid.UUID, providerTxnID string, providerPayload []byte) (*domain.SettlementResult, error) {
	var result *domain.SettlementResult

	err := s.store.WithinTx(ctx, func(tx TxStore) error {
		p, err := tx.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, paymentID)
		}

		if p.Status.Terminal() {
			// Duplicate delivery: echo the prior outcome.
			fee, net, err := s.settledSplit(ctx, tx, p)
			if err != nil {
				return err
			}
			result = &domain.SettlementResult{
				Payment:          p,
				NetAmount:        net,
				PlatformFee:      fee,
				AlreadyProcessed: true,
			}
			return nil
		}

		fee, net, err := s.feeSplit(ctx, tx, p)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		p.Status = domain.PaymentSuccess
		p.ProviderTxnID = providerTxnID
		p.Fee = &fee
		p.Net = &net
		p.UpdatedAt = now
		if len(providerPayload) > 0 && s.enc != nil {
			cipher, err := s.enc.Encrypt(providerPayload)
			if err != nil {
				return fmt.Errorf("encrypt gateway payload: %w", err)
			}
			p.PayloadCipher = cipher
		}

		sub, created, err := s.entitlements.CreateOrExtend(ctx, tx, p.PayerID, p.MerchantID, p.ServiceID, p.TierID)
		if err != nil {
			return err
		}
		p.SubscriptionID = &sub.ID
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return err
		}

		w, err := tx.GetWalletForUpdate(ctx, p.MerchantID)
		if err != nil {
			return err
		}
		if w == nil {
			return fmt.Errorf("%w: merchant %s", domain.ErrWalletNotFound, p.MerchantID)
		}
		w.Available = w.Available.Add(net)
		w.UpdatedAt = now
		if err := tx.UpdateWallet(ctx, w); err != nil {
			return err
		}

		entry := &domain.LedgerEntry{
			ID:           uuid.New(),
			MerchantID:   p.MerchantID,
			PaymentID:    &p.ID,
			Type:         domain.EntryCredit,
			Amount:       net,
			Description:  fmt.Sprintf("settlement credit for tier %s (payment %s)", p.TierID, p.ID),
			BalanceAfter: w.Available,
			CreatedAt:    now,
		}
		if err := tx.AppendLedgerEntry(ctx, entry); err != nil {
			return err
		}

		delta := domain.StatsDelta{GrossRevenue: p.Amount, NetRevenue: net}
		if created {
			delta.NewSubscribers = 1
		}
		if err := tx.ApplyStatsDelta(ctx, p.MerchantID, delta); err != nil {
			return err
		}

		if p.CouponID != nil {
			if err := tx.IncrementCouponUsage(ctx, *p.CouponID); err != nil {
				return err
			}
			redemption := &domain.CouponRedemption{
				ID:             uuid.New(),
				CouponID:       *p.CouponID,
				PayerID:        p.PayerID,
				SubscriptionID: sub.ID,
				CreatedAt:      now,
			}
			if err := tx.CreateCouponRedemption(ctx, redemption); err != nil {
				return err
			}
		}

		result = &domain.SettlementResult{
			Payment:      p,
			Subscription: sub,
			NetAmount:    net,
			PlatformFee:  fee,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyProcessed {
		log.Printf("settled payment %s: net %s, fee %s", paymentID, result.NetAmount, result.PlatformFee)
		s.publish(FeedEvent{
			MerchantID: result.Payment.MerchantID,
			Kind:       "settlement",
			PaymentID:  &result.Payment.ID,
			Amount:     result.NetAmount,
			At:         time.Now().UTC(),
		})
	}
	return result, nil
}

// Fail marks a pending payment FAILED, e.g. on a gateway failure
// callback. Already-terminal payments are a no-op echo.
func (s *SettlementService) Fail(ctx context.Context, paymentID uuid.UUID, providerTxnID string) (*domain.Payment, error) {
	var payment *domain.Payment
	err := s.store.WithinTx(ctx, func(tx TxStore) error {
		p, err := tx.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, paymentID)
		}
		if p.Status.Terminal() {
			payment = p
			return nil
		}
		p.Status = domain.PaymentFailed
		p.ProviderTxnID = providerTxnID
		p.UpdatedAt = time.Now().UTC()
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return err
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// Refund reverses a settled payment: creates the refund record, flips
// the payment to REFUNDED, debits the merchant's available balance by
// the original gross amount, appends the mirroring DEBIT ledger entry
// and cancels the linked subscription, in one transaction.
//
// NOTE: the settlement credited net-of-fee but the refund debits gross,
// so the merchant absorbs the platform fee on refunded transactions and
// the wallet can go negative. Preserved pending product sign-off.
func (s *SettlementService) Refund(ctx context.Context, paymentID uuid.UUID, reason string, approverID uuid.UUID) (*domain.Refund, error) {
	var refund *domain.Refund

	err := s.store.WithinTx(ctx, func(tx TxStore) error {
		p, err := tx.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, paymentID)
		}
		if p.Status != domain.PaymentSuccess {
			return fmt.Errorf("%w: payment %s is %s", domain.ErrNotRefundable, p.ID, p.Status)
		}

		fee, _, err := s.settledSplit(ctx, tx, p)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		refund = &domain.Refund{
			ID:         uuid.New(),
			PaymentID:  p.ID,
			MerchantID: p.MerchantID,
			Amount:     p.Amount,
			Fee:        fee,
			Reason:     reason,
			ApproverID: approverID,
			Status:     domain.RefundPending,
			CreatedAt:  now,
		}
		if err := tx.CreateRefund(ctx, refund); err != nil {
			return err
		}

		p.Status = domain.PaymentRefunded
		p.UpdatedAt = now
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return err
		}

		w, err := tx.GetWalletForUpdate(ctx, p.MerchantID)
		if err != nil {
			return err
		}
		if w == nil {
			return fmt.Errorf("%w: merchant %s", domain.ErrWalletNotFound, p.MerchantID)
		}
		// The debit may drive the balance negative; record it accurately
		// either way.
		w.Available = w.Available.Sub(p.Amount)
		w.UpdatedAt = now
		if err := tx.UpdateWallet(ctx, w); err != nil {
			return err
		}

		entry := &domain.LedgerEntry{
			ID:           uuid.New(),
			MerchantID:   p.MerchantID,
			PaymentID:    &p.ID,
			Type:         domain.EntryDebit,
			Amount:       p.Amount,
			Description:  fmt.Sprintf("refund debit for payment %s: %s", p.ID, reason),
			BalanceAfter: w.Available,
			CreatedAt:    now,
		}
		if err := tx.AppendLedgerEntry(ctx, entry); err != nil {
			return err
		}

		if p.SubscriptionID != nil {
			sub, err := tx.GetSubscriptionByIDForUpdate(ctx, *p.SubscriptionID)
			if err != nil {
				return err
			}
			if sub != nil {
				sub.Status = domain.SubscriptionCancelled
				sub.UpdatedAt = now
				if err := tx.SaveSubscription(ctx, sub); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("refunded payment %s: gross %s (approver %s)", paymentID, refund.Amount, approverID)
	s.publish(FeedEvent{
		MerchantID: refund.MerchantID,
		Kind:       "refund",
		PaymentID:  &refund.PaymentID,
		Amount:     refund.Amount,
		At:         time.Now().UTC(),
	})
	return refund, nil
}

// settledSplit returns the fee/net recorded on the payment when it
// settled. The recorded values win over a recomputation: the merchant's
// fee plan may have changed since, and echoes and refunds must report
// what was actually credited. Recomputes only for rows that predate
// the recorded split.
func (s *SettlementService) settledSplit(ctx context.Context, tx TxStore, p *domain.Payment) (domain.Money, domain.Money, error) {
	if p.Fee != nil && p.Net != nil {
		return *p.Fee, *p.Net, nil
	}
	return s.feeSplit(ctx, tx, p)
}

// feeSplit computes (platformFee, netAmount) for a payment under the
// merchant's fee plan, falling back to the platform default rate.
func (s *SettlementService) feeSplit(ctx context.Context, tx TxStore, p *domain.Payment) (domain.Money, domain.Money, error) {
	percent := s.defaultFee
	if planPercent, ok, err := tx.GetFeePercent(ctx, p.MerchantID); err != nil {
		return domain.Money{}, domain.Money{}, err
	} else if ok {
		percent = planPercent
	}
	fee := p.Amount.Percent(percent)
	net := p.Amount.Sub(fee)
	return fee, net, nil
}

func (s *SettlementService) publish(ev FeedEvent) {
	if s.notifier != nil {
		s.notifier.Publish(ev)
	}
}
