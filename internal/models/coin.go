package models

import (
	"time"

	"github.com/google/uuid"
)

// CoinTransactionType classifies a ledger entry. Amounts are stored as
// non-negative magnitudes; the sign is implied by the type.
type CoinTransactionType string

const (
	// Coin-weighted entries (affect the user's coin balance).
	CoinTxEarn   CoinTransactionType = "earn"
	CoinTxSpend  CoinTransactionType = "spend"
	CoinTxRefund CoinTransactionType = "coin_refund"
	CoinTxRevoke CoinTransactionType = "coin_revoke"

	// Monetary entries recorded on cancellation. Zero coin weight.
	CoinTxFee         CoinTransactionType = "fee"
	CoinTxMoneyRefund CoinTransactionType = "refund"
)

// CoinTransactionStatus represents the settlement status of an entry
type CoinTransactionStatus string

const (
	CoinTxStatusSuccess CoinTransactionStatus = "success"
	CoinTxStatusPending CoinTransactionStatus = "pending"
)

// CoinTransaction is one row of the append-only coin ledger
type CoinTransaction struct {
	ID          int64                 `json:"id" db:"id"`
	UserID      uuid.UUID             `json:"user_id" db:"user_id"`
	BookingID   *int64                `json:"booking_id,omitempty" db:"booking_id"`
	Type        CoinTransactionType   `json:"type" db:"type"`
	Amount      int64                 `json:"amount" db:"amount"`
	Description string                `json:"description" db:"description"`
	Status      CoinTransactionStatus `json:"status" db:"status"`
	CreatedAt   time.Time             `json:"created_at" db:"created_at"`
}

// SignedAmount returns the entry's contribution to the user's coin
// balance. Monetary fee/refund entries carry no coin weight, so the
// invariant coin_balance == sum(SignedAmount) holds per user.
func (t *CoinTransaction) SignedAmount() int64 {
	switch t.Type {
	case CoinTxEarn, CoinTxRefund:
		return t.Amount
	case CoinTxSpend, CoinTxRevoke:
		return -t.Amount
	default:
		return 0
	}
}
