package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryType is the direction of a ledger entry.
type EntryType string

const (
	EntryCredit EntryType = "CREDIT"
	EntryDebit  EntryType = "DEBIT"
)

// LedgerEntry is the immutable record of one balance-affecting event
// for a merchant. Entries are append-only; BalanceAfter snapshots the
// available balance that resulted from applying this entry, computed
// under the same transaction that wrote it.
type LedgerEntry struct {
	ID           uuid.UUID  `json:"id"`
	MerchantID   uuid.UUID  `json:"merchantId"`
	PaymentID    *uuid.UUID `json:"paymentId,omitempty"`
	OrderID      *uuid.UUID `json:"orderId,omitempty"`
	Type         EntryType  `json:"type"`
	Amount       Money      `json:"amount"`
	Description  string     `json:"description"`
	BalanceAfter Money      `json:"balanceAfter"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Wallet holds a merchant's two money buckets: Available is
// withdrawable; PendingEscrow is held until a fulfillment condition
// releases it. Only the settlement core writes either field.
type Wallet struct {
	MerchantID    uuid.UUID `json:"merchantId"`
	Available     Money     `json:"available"`
	PendingEscrow Money     `json:"pendingEscrow"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// StatsDelta is the per-settlement increment applied to a merchant's
// rolling analytics counters.
type StatsDelta struct {
	GrossRevenue   Money
	NetRevenue     Money
	NewSubscribers int
}

// MerchantStats are rolling analytics counters, upserted once per
// settlement. Today/month buckets roll over by date key.
type MerchantStats struct {
	MerchantID     uuid.UUID `json:"merchantId"`
	TotalRevenue   Money     `json:"totalRevenue"`
	NetRevenue     Money     `json:"netRevenue"`
	TodayRevenue   Money     `json:"todayRevenue"`
	TodayDate      time.Time `json:"todayDate"`
	MonthRevenue   Money     `json:"monthRevenue"`
	MonthStart     time.Time `json:"monthStart"`
	Subscribers    int64     `json:"subscribers"`
	Settlements    int64     `json:"settlements"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
