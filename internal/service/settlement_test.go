package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tierhub/backend/internal/domain"
)

type settlementFixture struct {
	store      *fakeStore
	notifier   *recordNotifier
	svc        *SettlementService
	paymentID  uuid.UUID
	payerID    uuid.UUID
	merchantID uuid.UUID
	serviceID  uuid.UUID
	tierID     uuid.UUID
}

func newSettlementFixture(t *testing.T, amount string) *settlementFixture {
	t.Helper()
	f := &settlementFixture{
		store:      newFakeStore(),
		notifier:   &recordNotifier{},
		paymentID:  uuid.New(),
		payerID:    uuid.New(),
		merchantID: uuid.New(),
		serviceID:  uuid.New(),
		tierID:     uuid.New(),
	}
	f.store.state.tiers[f.tierID] = &domain.Tier{
		ID:            f.tierID,
		ServiceID:     f.serviceID,
		Name:          "Gold",
		Price:         domain.MustMoney(amount, "USD"),
		IntervalUnit:  domain.IntervalMonth,
		IntervalCount: 1,
	}
	f.store.state.payments[f.paymentID] = &domain.Payment{
		ID:         f.paymentID,
		PayerID:    f.payerID,
		MerchantID: f.merchantID,
		ServiceID:  f.serviceID,
		TierID:     f.tierID,
		Amount:     domain.MustMoney(amount, "USD"),
		Provider:   "mockpay",
		Status:     domain.PaymentPending,
	}
	f.store.state.wallets[f.merchantID] = &domain.Wallet{
		MerchantID:    f.merchantID,
		Available:     domain.ZeroMoney("USD"),
		PendingEscrow: domain.ZeroMoney("USD"),
	}
	f.svc = NewSettlementService(f.store, NewEntitlementManager(), nil, decimal.NewFromInt(5), f.notifier)
	return f
}

func TestCompleteSettlesPayment(t *testing.T) {
	f := newSettlementFixture(t, "49.00")

	result, err := f.svc.Complete(context.Background(), f.paymentID, "txn-1", nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if result.AlreadyProcessed {
		t.Fatal("first settlement reported as already processed")
	}
	if got, want := result.PlatformFee, domain.MustMoney("2.45", "USD"); !got.Equal(want) {
		t.Errorf("fee = %s, want %s", got, want)
	}
	if got, want := result.NetAmount, domain.MustMoney("46.55", "USD"); !got.Equal(want) {
		t.Errorf("net = %s, want %s", got, want)
	}
	if result.Payment.Status != domain.PaymentSuccess {
		t.Errorf("payment status = %s, want SUCCESS", result.Payment.Status)
	}
	if result.Payment.ProviderTxnID != "txn-1" {
		t.Errorf("provider txn id = %q", result.Payment.ProviderTxnID)
	}

	sub := result.Subscription
	if sub == nil {
		t.Fatal("no subscription created")
	}
	if sub.Status != domain.SubscriptionActive {
		t.Errorf("subscription status = %s, want ACTIVE", sub.Status)
	}
	if result.Payment.SubscriptionID == nil || *result.Payment.SubscriptionID != sub.ID {
		t.Error("payment not linked to subscription")
	}

	w := f.store.state.wallets[f.merchantID]
	if !w.Available.Equal(domain.MustMoney("46.55", "USD")) {
		t.Errorf("wallet available = %s, want 46.55", w.Available)
	}

	if len(f.store.state.ledger) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(f.store.state.ledger))
	}
	entry := f.store.state.ledger[0]
	if entry.Type != domain.EntryCredit {
		t.Errorf("entry type = %s, want CREDIT", entry.Type)
	}
	if !entry.Amount.Equal(result.NetAmount) {
		t.Errorf("entry amount = %s, want %s", entry.Amount, result.NetAmount)
	}
	if !entry.BalanceAfter.Equal(w.Available) {
		t.Errorf("balance after = %s, want %s", entry.BalanceAfter, w.Available)
	}

	st := f.store.state.stats[f.merchantID]
	if st == nil || st.delta.NewSubscribers != 1 || st.settlements != 1 {
		t.Errorf("stats = %+v, want 1 new subscriber, 1 settlement", st)
	}
	if !st.delta.GrossRevenue.Equal(domain.MustMoney("49.00", "USD")) {
		t.Errorf("gross revenue = %s, want 49.00", st.delta.GrossRevenue)
	}

	if len(f.notifier.events) != 1 || f.notifier.events[0].Kind != "settlement" {
		t.Errorf("events = %+v, want one settlement event", f.notifier.events)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	f := newSettlementFixture(t, "49.00")
	ctx := context.Background()

	first, err := f.svc.Complete(ctx, f.paymentID, "txn-1", nil)
	if err != nil {
		t.Fatalf("first Complete: %v", err)
	}
	second, err := f.svc.Complete(ctx, f.paymentID, "txn-1-retry", nil)
	if err != nil {
		t.Fatalf("second Complete: %v", err)
	}

	if !second.AlreadyProcessed {
		t.Error("duplicate delivery not flagged as already processed")
	}
	if !second.NetAmount.Equal(first.NetAmount) {
		t.Errorf("echoed net = %s, want %s", second.NetAmount, first.NetAmount)
	}
	if second.Payment.ProviderTxnID != "txn-1" {
		t.Errorf("duplicate overwrote provider txn id: %q", second.Payment.ProviderTxnID)
	}

	w := f.store.state.wallets[f.merchantID]
	if !w.Available.Equal(domain.MustMoney("46.55", "USD")) {
		t.Errorf("wallet credited twice: %s", w.Available)
	}
	if len(f.store.state.ledger) != 1 {
		t.Errorf("ledger entries = %d, want 1", len(f.store.state.ledger))
	}
	if st := f.store.state.stats[f.merchantID]; st.settlements != 1 {
		t.Errorf("settlements = %d, want 1", st.settlements)
	}
	if len(f.notifier.events) != 1 {
		t.Errorf("events = %d, want 1", len(f.notifier.events))
	}
}

func TestCompleteEchoKeepsSettledFee(t *testing.T) {
	f := newSettlementFixture(t, "49.00")
	ctx := context.Background()

	if _, err := f.svc.Complete(ctx, f.paymentID, "txn-1", nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	// The merchant negotiates a new rate after settlement; a duplicate
	// delivery must still echo the split that was actually credited.
	f.store.state.feePlans[f.merchantID] = decimal.NewFromInt(10)

	echo, err := f.svc.Complete(ctx, f.paymentID, "txn-1-retry", nil)
	if err != nil {
		t.Fatalf("duplicate Complete: %v", err)
	}
	if !echo.AlreadyProcessed {
		t.Fatal("duplicate delivery not flagged as already processed")
	}
	if !echo.PlatformFee.Equal(domain.MustMoney("2.45", "USD")) {
		t.Errorf("echoed fee = %s, want 2.45", echo.PlatformFee)
	}
	if !echo.NetAmount.Equal(domain.MustMoney("46.55", "USD")) {
		t.Errorf("echoed net = %s, want 46.55", echo.NetAmount)
	}
}

func TestRefundUsesSettledFee(t *testing.T) {
	f := newSettlementFixture(t, "49.00")
	ctx := context.Background()

	if _, err := f.svc.Complete(ctx, f.paymentID, "txn-1", nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	f.store.state.feePlans[f.merchantID] = decimal.NewFromInt(10)

	refund, err := f.svc.Refund(ctx, f.paymentID, "customer request", uuid.New())
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if !refund.Fee.Equal(domain.MustMoney("2.45", "USD")) {
		t.Errorf("refund fee = %s, want the 2.45 withheld at settlement", refund.Fee)
	}
}

func TestCompleteUsesMerchantFeePlan(t *testing.T) {
	f := newSettlementFixture(t, "100.00")
	f.store.state.feePlans[f.merchantID] = decimal.NewFromFloat(7.5)

	result, err := f.svc.Complete(context.Background(), f.paymentID, "txn-1", nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !result.PlatformFee.Equal(domain.MustMoney("7.50", "USD")) {
		t.Errorf("fee = %s, want 7.50", result.PlatformFee)
	}
	if !result.NetAmount.Equal(domain.MustMoney("92.50", "USD")) {
		t.Errorf("net = %s, want 92.50", result.NetAmount)
	}
}

func TestCompleteConservesGross(t *testing.T) {
	cases := []struct {
		amount  string
		percent float64
	}{
		{"100.00", 5},
		{"49.00", 5},
		{"33.33", 7.5},
		{"0.01", 5},
		{"19.99", 12.5},
	}
	for _, tc := range cases {
		f := newSettlementFixture(t, tc.amount)
		f.store.state.feePlans[f.merchantID] = decimal.NewFromFloat(tc.percent)

		result, err := f.svc.Complete(context.Background(), f.paymentID, "txn", nil)
		if err != nil {
			t.Fatalf("Complete(%s @ %v%%): %v", tc.amount, tc.percent, err)
		}
		sum := result.NetAmount.Add(result.PlatformFee)
		if !sum.Equal(domain.MustMoney(tc.amount, "USD")) {
			t.Errorf("%s @ %v%%: net %s + fee %s = %s, want %s",
				tc.amount, tc.percent, result.NetAmount, result.PlatformFee, sum, tc.amount)
		}
	}
}

func TestCompleteMissingTierRollsBack(t *testing.T) {
	f := newSettlementFixture(t, "49.00")
	delete(f.store.state.tiers, f.tierID)

	_, err := f.svc.Complete(context.Background(), f.paymentID, "txn-1", nil)
	if !errors.Is(err, domain.ErrTierNotFound) {
		t.Fatalf("err = %v, want ErrTierNotFound", err)
	}

	p := f.store.state.payments[f.paymentID]
	if p.Status != domain.PaymentPending {
		t.Errorf("payment status = %s, want PENDING after rollback", p.Status)
	}
	if !f.store.state.wallets[f.merchantID].Available.IsZero() {
		t.Error("wallet credited despite rollback")
	}
	if len(f.store.state.ledger) != 0 {
		t.Error("ledger written despite rollback")
	}
}

func TestCompleteLedgerFailureRollsBackEverything(t *testing.T) {
	f := newSettlementFixture(t, "49.00")
	f.store.appendLedgerErr = errors.New("disk full")

	_, err := f.svc.Complete(context.Background(), f.paymentID, "txn-1", nil)
	if err == nil {
		t.Fatal("expected error")
	}

	if f.store.state.payments[f.paymentID].Status != domain.PaymentPending {
		t.Error("payment flipped despite ledger failure")
	}
	if !f.store.state.wallets[f.merchantID].Available.IsZero() {
		t.Error("wallet credited despite ledger failure")
	}
	if len(f.store.state.subs) != 0 {
		t.Error("subscription created despite ledger failure")
	}
	if len(f.notifier.events) != 0 {
		t.Error("event published for a rolled-back settlement")
	}
}

func TestCompleteExtendsActiveSubscription(t *testing.T) {
	f := newSettlementFixture(t, "49.00")
	now := time.Now().UTC()
	existingExpiry := now.Add(10 * 24 * time.Hour).Truncate(time.Second)
	subID := uuid.New()
	f.store.state.subs[subID] = &domain.Subscription{
		ID:        subID,
		PayerID:   f.payerID,
		ServiceID: f.serviceID,
		TierID:    f.tierID,
		Status:    domain.SubscriptionActive,
		StartsAt:  now.AddDate(0, -1, 0),
		ExpiresAt: existingExpiry,
	}

	result, err := f.svc.Complete(context.Background(), f.paymentID, "txn-1", nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	sub := result.Subscription
	if sub.ID != subID {
		t.Fatal("renewal created a second subscription")
	}
	want := existingExpiry.AddDate(0, 1, 0)
	if !sub.ExpiresAt.Equal(want) {
		t.Errorf("expiry = %s, want stacked %s", sub.ExpiresAt, want)
	}
	if sub.Renewals != 1 {
		t.Errorf("renewals = %d, want 1", sub.Renewals)
	}
	if st := f.store.state.stats[f.merchantID]; st.delta.NewSubscribers != 0 {
		t.Error("renewal counted as new subscriber")
	}
}

func TestCompleteRestartsLapsedSubscription(t *testing.T) {
	f := newSettlementFixture(t, "49.00")
	now := time.Now().UTC()
	subID := uuid.New()
	f.store.state.subs[subID] = &domain.Subscription{
		ID:        subID,
		PayerID:   f.payerID,
		ServiceID: f.serviceID,
		TierID:    f.tierID,
		Status:    domain.SubscriptionExpired,
		StartsAt:  now.AddDate(0, -2, 0),
		ExpiresAt: now.AddDate(0, -1, 0),
	}

	result, err := f.svc.Complete(context.Background(), f.paymentID, "txn-1", nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	sub := result.Subscription
	if sub.Status != domain.SubscriptionActive {
		t.Errorf("status = %s, want ACTIVE", sub.Status)
	}
	if !sub.ExpiresAt.After(now) {
		t.Errorf("expiry %s not in the future", sub.ExpiresAt)
	}
	if sub.ExpiresAt.After(now.AddDate(0, 1, 1)) {
		t.Errorf("lapsed renewal stacked onto stale expiry: %s", sub.ExpiresAt)
	}
}

func TestCompleteRecordsCouponRedemption(t *testing.T) {
	f := newSettlementFixture(t, "39.20")
	couponID := uuid.New()
	p := f.store.state.payments[f.paymentID]
	p.CouponID = &couponID
	original := domain.MustMoney("49.00", "USD")
	discount := domain.MustMoney("9.80", "USD")
	p.OriginalPrice = &original
	p.Discount = &discount

	result, err := f.svc.Complete(context.Background(), f.paymentID, "txn-1", nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if f.store.state.coupons[couponID] != 1 {
		t.Errorf("coupon usage = %d, want 1", f.store.state.coupons[couponID])
	}
	if len(f.store.state.redemptions) != 1 {
		t.Fatalf("redemptions = %d, want 1", len(f.store.state.redemptions))
	}
	red := f.store.state.redemptions[0]
	if red.CouponID != couponID || red.PayerID != f.payerID || red.SubscriptionID != result.Subscription.ID {
		t.Errorf("redemption = %+v", red)
	}
}

func TestFailMarksPaymentFailed(t *testing.T) {
	f := newSettlementFixture(t, "49.00")

	p, err := f.svc.Fail(context.Background(), f.paymentID, "txn-1")
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if p.Status != domain.PaymentFailed {
		t.Errorf("status = %s, want FAILED", p.Status)
	}
	if !f.store.state.wallets[f.merchantID].Available.IsZero() {
		t.Error("failed payment credited the wallet")
	}

	// A success callback after the failure must not settle.
	result, err := f.svc.Complete(context.Background(), f.paymentID, "txn-2", nil)
	if err != nil {
		t.Fatalf("Complete after Fail: %v", err)
	}
	if !result.AlreadyProcessed || result.Payment.Status != domain.PaymentFailed {
		t.Errorf("terminal FAILED payment settled: %+v", result.Payment.Status)
	}
}

func TestRefundReversesSettlement(t *testing.T) {
	f := newSettlementFixture(t, "49.00")
	ctx := context.Background()
	approver := uuid.New()

	settled, err := f.svc.Complete(ctx, f.paymentID, "txn-1", nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	refund, err := f.svc.Refund(ctx, f.paymentID, "customer complaint", approver)
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}

	if !refund.Amount.Equal(domain.MustMoney("49.00", "USD")) {
		t.Errorf("refund amount = %s, want gross 49.00", refund.Amount)
	}
	if !refund.Fee.Equal(domain.MustMoney("2.45", "USD")) {
		t.Errorf("refund fee = %s, want 2.45", refund.Fee)
	}
	if refund.ApproverID != approver {
		t.Error("approver not recorded")
	}

	p := f.store.state.payments[f.paymentID]
	if p.Status != domain.PaymentRefunded {
		t.Errorf("payment status = %s, want REFUNDED", p.Status)
	}

	// Credited net 46.55, debited gross 49.00: the merchant absorbs the
	// fee and the balance goes negative.
	w := f.store.state.wallets[f.merchantID]
	if !w.Available.Equal(domain.MustMoney("-2.45", "USD")) {
		t.Errorf("wallet available = %s, want -2.45", w.Available)
	}

	if len(f.store.state.ledger) != 2 {
		t.Fatalf("ledger entries = %d, want 2", len(f.store.state.ledger))
	}
	debit := f.store.state.ledger[1]
	if debit.Type != domain.EntryDebit || !debit.Amount.Equal(refund.Amount) {
		t.Errorf("debit entry = %+v", debit)
	}
	if !debit.BalanceAfter.Equal(w.Available) {
		t.Errorf("debit balance after = %s, want %s", debit.BalanceAfter, w.Available)
	}

	sub := f.store.state.subs[*settled.Payment.SubscriptionID]
	if sub.Status != domain.SubscriptionCancelled {
		t.Errorf("subscription status = %s, want CANCELLED", sub.Status)
	}

	if len(f.notifier.events) != 2 || f.notifier.events[1].Kind != "refund" {
		t.Errorf("events = %+v, want settlement then refund", f.notifier.events)
	}
}

func TestRefundRejectsNonSuccessPayment(t *testing.T) {
	f := newSettlementFixture(t, "49.00")
	ctx := context.Background()
	approver := uuid.New()

	if _, err := f.svc.Refund(ctx, f.paymentID, "too early", approver); !errors.Is(err, domain.ErrNotRefundable) {
		t.Fatalf("refund of PENDING payment: err = %v, want ErrNotRefundable", err)
	}

	if _, err := f.svc.Complete(ctx, f.paymentID, "txn-1", nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := f.svc.Refund(ctx, f.paymentID, "first", approver); err != nil {
		t.Fatalf("first Refund: %v", err)
	}
	if _, err := f.svc.Refund(ctx, f.paymentID, "second", approver); !errors.Is(err, domain.ErrNotRefundable) {
		t.Fatalf("double refund: err = %v, want ErrNotRefundable", err)
	}
	if len(f.store.state.refunds) != 1 {
		t.Errorf("refund rows = %d, want 1", len(f.store.state.refunds))
	}
}

func TestCompleteUnknownPayment(t *testing.T) {
	f := newSettlementFixture(t, "49.00")
	_, err := f.svc.Complete(context.Background(), uuid.New(), "txn", nil)
	if !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("err = %v, want ErrPaymentNotFound", err)
	}
}
