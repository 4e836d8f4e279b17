package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tierhub/backend/internal/domain"
)

// fakeStore is an in-memory Store. WithinTx runs fn against a deep
// copy of the state and swaps it in only on success, so rollback
// behavior matches the real transaction semantics.
type fakeStore struct {
	state *fakeState

	appendLedgerErr error

	// variantLockOrder records the sequence of variant row locks taken
	// across transactions, for asserting canonical lock ordering.
	variantLockOrder []uuid.UUID
}

type fakeState struct {
	payments    map[uuid.UUID]*domain.Payment
	tiers       map[uuid.UUID]*domain.Tier
	subs        map[uuid.UUID]*domain.Subscription
	wallets     map[uuid.UUID]*domain.Wallet
	ledger      []*domain.LedgerEntry
	stats       map[uuid.UUID]*fakeStats
	feePlans    map[uuid.UUID]decimal.Decimal
	coupons     map[uuid.UUID]int64
	redemptions []*domain.CouponRedemption
	refunds     []*domain.Refund
	products    map[uuid.UUID]*domain.Product
	variants    map[uuid.UUID]*domain.Variant
	orders      map[uuid.UUID]*domain.Order
}

type fakeStats struct {
	delta       domain.StatsDelta
	settlements int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{state: &fakeState{
		payments: make(map[uuid.UUID]*domain.Payment),
		tiers:    make(map[uuid.UUID]*domain.Tier),
		subs:     make(map[uuid.UUID]*domain.Subscription),
		wallets:  make(map[uuid.UUID]*domain.Wallet),
		stats:    make(map[uuid.UUID]*fakeStats),
		feePlans: make(map[uuid.UUID]decimal.Decimal),
		coupons:  make(map[uuid.UUID]int64),
		products: make(map[uuid.UUID]*domain.Product),
		variants: make(map[uuid.UUID]*domain.Variant),
		orders:   make(map[uuid.UUID]*domain.Order),
	}}
}

func copyPayment(p *domain.Payment) *domain.Payment {
	c := *p
	if p.Fee != nil {
		m := *p.Fee
		c.Fee = &m
	}
	if p.Net != nil {
		m := *p.Net
		c.Net = &m
	}
	if p.CouponID != nil {
		id := *p.CouponID
		c.CouponID = &id
	}
	if p.SubscriptionID != nil {
		id := *p.SubscriptionID
		c.SubscriptionID = &id
	}
	if p.OriginalPrice != nil {
		m := *p.OriginalPrice
		c.OriginalPrice = &m
	}
	if p.Discount != nil {
		m := *p.Discount
		c.Discount = &m
	}
	return &c
}

func copyOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = make([]domain.OrderItem, len(o.Items))
	for i, it := range o.Items {
		c.Items[i] = it
		if it.VariantID != nil {
			id := *it.VariantID
			c.Items[i].VariantID = &id
		}
	}
	return &c
}

func (s *fakeState) clone() *fakeState {
	c := &fakeState{
		payments: make(map[uuid.UUID]*domain.Payment, len(s.payments)),
		tiers:    make(map[uuid.UUID]*domain.Tier, len(s.tiers)),
		subs:     make(map[uuid.UUID]*domain.Subscription, len(s.subs)),
		wallets:  make(map[uuid.UUID]*domain.Wallet, len(s.wallets)),
		stats:    make(map[uuid.UUID]*fakeStats, len(s.stats)),
		feePlans: make(map[uuid.UUID]decimal.Decimal, len(s.feePlans)),
		coupons:  make(map[uuid.UUID]int64, len(s.coupons)),
		products: make(map[uuid.UUID]*domain.Product, len(s.products)),
		variants: make(map[uuid.UUID]*domain.Variant, len(s.variants)),
		orders:   make(map[uuid.UUID]*domain.Order, len(s.orders)),
	}
	for k, v := range s.payments {
		c.payments[k] = copyPayment(v)
	}
	for k, v := range s.tiers {
		t := *v
		c.tiers[k] = &t
	}
	for k, v := range s.subs {
		sub := *v
		c.subs[k] = &sub
	}
	for k, v := range s.wallets {
		w := *v
		c.wallets[k] = &w
	}
	for k, v := range s.stats {
		st := *v
		c.stats[k] = &st
	}
	for k, v := range s.feePlans {
		c.feePlans[k] = v
	}
	for k, v := range s.coupons {
		c.coupons[k] = v
	}
	for k, v := range s.products {
		p := *v
		c.products[k] = &p
	}
	for k, v := range s.variants {
		va := *v
		c.variants[k] = &va
	}
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	c.ledger = append(c.ledger, s.ledger...)
	c.redemptions = append(c.redemptions, s.redemptions...)
	c.refunds = append(c.refunds, s.refunds...)
	return c
}

func (f *fakeStore) WithinTx(ctx context.Context, fn func(tx TxStore) error) error {
	snap := f.state.clone()
	if err := fn(&fakeTx{state: snap, store: f}); err != nil {
		return err
	}
	f.state = snap
	return nil
}

func (f *fakeStore) GetWallet(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error) {
	w, ok := f.state.wallets[merchantID]
	if !ok {
		return nil, nil
	}
	c := *w
	return &c, nil
}

func (f *fakeStore) ListLedgerEntries(ctx context.Context, merchantID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error) {
	var out []*domain.LedgerEntry
	for _, e := range f.state.ledger {
		if e.MerchantID == merchantID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) GetMerchantStats(ctx context.Context, merchantID uuid.UUID) (*domain.MerchantStats, error) {
	st, ok := f.state.stats[merchantID]
	if !ok {
		return nil, nil
	}
	return &domain.MerchantStats{
		MerchantID:   merchantID,
		TotalRevenue: st.delta.GrossRevenue,
		NetRevenue:   st.delta.NetRevenue,
		Subscribers:  int64(st.delta.NewSubscribers),
		Settlements:  st.settlements,
	}, nil
}

func (f *fakeStore) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	o, ok := f.state.orders[orderID]
	if !ok {
		return nil, nil
	}
	return copyOrder(o), nil
}

type fakeTx struct {
	state *fakeState
	store *fakeStore
}

func (t *fakeTx) GetPaymentForUpdate(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, ok := t.state.payments[id]
	if !ok {
		return nil, nil
	}
	return copyPayment(p), nil
}

func (t *fakeTx) UpdatePayment(ctx context.Context, p *domain.Payment) error {
	t.state.payments[p.ID] = copyPayment(p)
	return nil
}

func (t *fakeTx) GetFeePercent(ctx context.Context, merchantID uuid.UUID) (decimal.Decimal, bool, error) {
	percent, ok := t.state.feePlans[merchantID]
	return percent, ok, nil
}

func (t *fakeTx) GetTier(ctx context.Context, id uuid.UUID) (*domain.Tier, error) {
	tier, ok := t.state.tiers[id]
	if !ok {
		return nil, nil
	}
	c := *tier
	return &c, nil
}

func (t *fakeTx) GetSubscriptionForUpdate(ctx context.Context, payerID, serviceID uuid.UUID) (*domain.Subscription, error) {
	for _, sub := range t.state.subs {
		if sub.PayerID == payerID && sub.ServiceID == serviceID {
			c := *sub
			return &c, nil
		}
	}
	return nil, nil
}

func (t *fakeTx) GetSubscriptionByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	sub, ok := t.state.subs[id]
	if !ok {
		return nil, nil
	}
	c := *sub
	return &c, nil
}

func (t *fakeTx) SaveSubscription(ctx context.Context, sub *domain.Subscription) error {
	c := *sub
	t.state.subs[sub.ID] = &c
	return nil
}

func (t *fakeTx) GetWalletForUpdate(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error) {
	w, ok := t.state.wallets[merchantID]
	if !ok {
		return nil, nil
	}
	c := *w
	return &c, nil
}

func (t *fakeTx) UpdateWallet(ctx context.Context, w *domain.Wallet) error {
	c := *w
	t.state.wallets[w.MerchantID] = &c
	return nil
}

func (t *fakeTx) AppendLedgerEntry(ctx context.Context, e *domain.LedgerEntry) error {
	if t.store.appendLedgerErr != nil {
		return t.store.appendLedgerErr
	}
	c := *e
	t.state.ledger = append(t.state.ledger, &c)
	return nil
}

func (t *fakeTx) ApplyStatsDelta(ctx context.Context, merchantID uuid.UUID, delta domain.StatsDelta) error {
	st, ok := t.state.stats[merchantID]
	if !ok {
		t.state.stats[merchantID] = &fakeStats{delta: delta, settlements: 1}
		return nil
	}
	st.delta.GrossRevenue = st.delta.GrossRevenue.Add(delta.GrossRevenue)
	st.delta.NetRevenue = st.delta.NetRevenue.Add(delta.NetRevenue)
	st.delta.NewSubscribers += delta.NewSubscribers
	st.settlements++
	return nil
}

func (t *fakeTx) IncrementCouponUsage(ctx context.Context, couponID uuid.UUID) error {
	t.state.coupons[couponID]++
	return nil
}

func (t *fakeTx) CreateCouponRedemption(ctx context.Context, r *domain.CouponRedemption) error {
	c := *r
	t.state.redemptions = append(t.state.redemptions, &c)
	return nil
}

func (t *fakeTx) CreateRefund(ctx context.Context, r *domain.Refund) error {
	c := *r
	t.state.refunds = append(t.state.refunds, &c)
	return nil
}

func (t *fakeTx) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := t.state.products[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (t *fakeTx) GetVariantForUpdate(ctx context.Context, id uuid.UUID) (*domain.Variant, error) {
	t.store.variantLockOrder = append(t.store.variantLockOrder, id)
	v, ok := t.state.variants[id]
	if !ok {
		return nil, nil
	}
	c := *v
	return &c, nil
}

func (t *fakeTx) UpdateVariantStock(ctx context.Context, id uuid.UUID, stock int64) error {
	if v, ok := t.state.variants[id]; ok {
		v.Stock = stock
	}
	return nil
}

func (t *fakeTx) CreateOrder(ctx context.Context, o *domain.Order) error {
	t.state.orders[o.ID] = copyOrder(o)
	return nil
}

func (t *fakeTx) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := t.state.orders[id]
	if !ok {
		return nil, nil
	}
	return copyOrder(o), nil
}

func (t *fakeTx) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	if o, ok := t.state.orders[id]; ok {
		o.Status = status
	}
	return nil
}

// recordNotifier collects published feed events.
type recordNotifier struct {
	events []FeedEvent
}

func (n *recordNotifier) Publish(ev FeedEvent) {
	n.events = append(n.events, ev)
}
