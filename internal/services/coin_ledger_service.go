package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gotrip/booking-backend/internal/config"
	"github.com/gotrip/booking-backend/internal/database"
	"github.com/gotrip/booking-backend/internal/metrics"
	"github.com/gotrip/booking-backend/internal/models"
)

// balanceAttempts is the bound on the optimistic balance update: one
// initial attempt plus exactly one retry.
const balanceAttempts = 2

// CoinLedgerService owns every coin balance mutation. All writes go
// through an optimistic compare-and-set on the balance the caller just
// read, with a single bounded retry; exceeding it surfaces
// ErrConcurrentModification and the caller retries the whole request.
type CoinLedgerService struct {
	coinRepo *database.CoinRepository
	config   config.CoinsConfig
	logger   *logrus.Logger
}

// NewCoinLedgerService creates a new CoinLedgerService
func NewCoinLedgerService(coinRepo *database.CoinRepository, cfg config.CoinsConfig, logger *logrus.Logger) *CoinLedgerService {
	return &CoinLedgerService{coinRepo: coinRepo, config: cfg, logger: logger}
}

// EarnAmount computes the coins earned for a confirmed booking price:
// min(floor(price * EarnRate), EarnCap).
func (s *CoinLedgerService) EarnAmount(price int64) int64 {
	earned := int64(float64(price) * s.config.EarnRate)
	if earned > s.config.EarnCap {
		return s.config.EarnCap
	}
	return earned
}

// Balance reads the user's current coin balance
func (s *CoinLedgerService) Balance(userID uuid.UUID) (int64, error) {
	return s.coinRepo.GetBalance(userID)
}

// LedgerBalance computes the balance implied by the ledger. The offline
// reconciliation invariant requires it to equal Balance at all times.
func (s *CoinLedgerService) LedgerBalance(userID uuid.UUID) (int64, error) {
	return s.coinRepo.SumSignedForUser(userID)
}

// CoinStatement is the caller-facing view of a user's coin ledger. The
// stored balance and the ledger-implied balance are reported side by
// side; they disagree only when something corrupted the ledger.
type CoinStatement struct {
	Balance       int64                    `json:"balance"`
	LedgerBalance int64                    `json:"ledger_balance"`
	Consistent    bool                     `json:"consistent"`
	Transactions  []models.CoinTransaction `json:"transactions"`
}

// Statement reads the user's balance, ledger entries and the balance
// implied by the ledger. A mismatch is logged and counted but still
// served; the caller sees the drift instead of a failure.
func (s *CoinLedgerService) Statement(userID uuid.UUID) (*CoinStatement, error) {
	balance, err := s.coinRepo.GetBalance(userID)
	if err != nil {
		return nil, err
	}

	ledgerBalance, err := s.LedgerBalance(userID)
	if err != nil {
		return nil, err
	}

	transactions, err := s.coinRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	if balance != ledgerBalance {
		metrics.CoinLedgerDrift.Inc()
		s.logger.WithFields(logrus.Fields{
			"user_id":        userID,
			"balance":        balance,
			"ledger_balance": ledgerBalance,
		}).Error("Coin balance diverged from ledger")
	}

	return &CoinStatement{
		Balance:       balance,
		LedgerBalance: ledgerBalance,
		Consistent:    balance == ledgerBalance,
		Transactions:  transactions,
	}, nil
}

// Credit appends an earn entry and increases the balance. No precondition.
func (s *CoinLedgerService) Credit(userID uuid.UUID, amount int64, bookingID *int64, description string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: credit amount must be positive", models.ErrValidation)
	}
	entries := []models.CoinTransaction{{
		UserID:      userID,
		BookingID:   bookingID,
		Type:        models.CoinTxEarn,
		Amount:      amount,
		Description: description,
		Status:      models.CoinTxStatusSuccess,
	}}
	return s.applyWithRetry(userID, 0, amount, entries)
}

// Debit appends a spend entry and decreases the balance. Fails with
// ErrInsufficientCoins and performs no mutation when the balance cannot
// cover the amount.
func (s *CoinLedgerService) Debit(userID uuid.UUID, amount int64, bookingID *int64, description string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: debit amount must be positive", models.ErrValidation)
	}
	entries := []models.CoinTransaction{{
		UserID:      userID,
		BookingID:   bookingID,
		Type:        models.CoinTxSpend,
		Amount:      amount,
		Description: description,
		Status:      models.CoinTxStatusSuccess,
	}}
	return s.applyWithRetry(userID, amount, -amount, entries)
}

// ApplyNet is the compound confirmation-time operation: earn and spend
// commit together with a net balance change of earn-spend. The spend
// precondition is evaluated against the balance at the instant of
// mutation, not a balance read earlier in the request.
func (s *CoinLedgerService) ApplyNet(userID uuid.UUID, earnAmount, spendAmount int64, bookingID int64) (int64, error) {
	if earnAmount < 0 || spendAmount < 0 {
		return 0, fmt.Errorf("%w: amounts must be non-negative", models.ErrValidation)
	}

	var entries []models.CoinTransaction
	if earnAmount > 0 {
		entries = append(entries, models.CoinTransaction{
			UserID:      userID,
			BookingID:   &bookingID,
			Type:        models.CoinTxEarn,
			Amount:      earnAmount,
			Description: fmt.Sprintf("Coins earned for booking %d", bookingID),
			Status:      models.CoinTxStatusSuccess,
		})
	}
	if spendAmount > 0 {
		entries = append(entries, models.CoinTransaction{
			UserID:      userID,
			BookingID:   &bookingID,
			Type:        models.CoinTxSpend,
			Amount:      spendAmount,
			Description: fmt.Sprintf("Coins spent on booking %d", bookingID),
			Status:      models.CoinTxStatusSuccess,
		})
	}

	if len(entries) == 0 {
		return s.coinRepo.GetBalance(userID)
	}

	return s.applyWithRetry(userID, spendAmount, earnAmount-spendAmount, entries)
}

// AppliedForBooking reports whether confirmation-time coin entries
// already exist for the booking. Guards the coin step against payment
// callback replays and crash-resumed confirmations.
func (s *CoinLedgerService) AppliedForBooking(bookingID int64) (bool, error) {
	earned, err := s.coinRepo.SumByBookingAndType(bookingID, models.CoinTxEarn)
	if err != nil {
		return false, err
	}
	if earned > 0 {
		return true, nil
	}

	spent, err := s.coinRepo.SumByBookingAndType(bookingID, models.CoinTxSpend)
	if err != nil {
		return false, err
	}
	return spent > 0, nil
}

// RecordMonetary appends a monetary ledger entry (cancellation fee or
// refund intent). These document money movement, carry zero coin weight
// and never touch the balance.
func (s *CoinLedgerService) RecordMonetary(
	userID uuid.UUID,
	bookingID int64,
	txType models.CoinTransactionType,
	amount int64,
	description string,
	status models.CoinTransactionStatus,
) error {
	if txType != models.CoinTxFee && txType != models.CoinTxMoneyRefund {
		return fmt.Errorf("%w: %s is not a monetary transaction type", models.ErrValidation, txType)
	}

	entry := &models.CoinTransaction{
		UserID:      userID,
		BookingID:   &bookingID,
		Type:        txType,
		Amount:      amount,
		Description: description,
		Status:      status,
	}
	return s.coinRepo.InsertMonetary(entry)
}

// Reverse undoes the coins previously earned or spent on a booking by
// appending an offsetting entry: coin_revoke for an earn, coin_refund
// for a spend. Idempotent per (bookingID, kind); reversing twice never
// double-adjusts. Returns the reversed magnitude (0 when there was
// nothing to reverse or the reversal already exists).
func (s *CoinLedgerService) Reverse(userID uuid.UUID, bookingID int64, kind models.CoinTransactionType) (int64, error) {
	var reversalType models.CoinTransactionType
	switch kind {
	case models.CoinTxEarn:
		reversalType = models.CoinTxRevoke
	case models.CoinTxSpend:
		reversalType = models.CoinTxRefund
	default:
		return 0, fmt.Errorf("%w: cannot reverse transaction type %s", models.ErrValidation, kind)
	}

	exists, err := s.coinRepo.ReversalExists(bookingID, reversalType)
	if err != nil {
		return 0, err
	}
	if exists {
		s.logger.WithFields(logrus.Fields{
			"booking_id": bookingID,
			"kind":       kind,
		}).Info("Coin reversal already recorded, skipping")
		return 0, nil
	}

	magnitude, err := s.coinRepo.SumByBookingAndType(bookingID, kind)
	if err != nil {
		return 0, err
	}
	if magnitude == 0 {
		return 0, nil
	}

	net := magnitude
	spend := int64(0)
	description := fmt.Sprintf("Coin refund for cancelled booking %d", bookingID)
	if reversalType == models.CoinTxRevoke {
		net = -magnitude
		spend = magnitude
		description = fmt.Sprintf("Coins revoked for cancelled booking %d", bookingID)
	}

	entries := []models.CoinTransaction{{
		UserID:      userID,
		BookingID:   &bookingID,
		Type:        reversalType,
		Amount:      magnitude,
		Description: description,
		Status:      models.CoinTxStatusSuccess,
	}}

	if _, err := s.applyWithRetry(userID, spend, net, entries); err != nil {
		return 0, err
	}
	return magnitude, nil
}

// applyWithRetry runs the conditional balance update protocol: read
// balance B, attempt the guarded update pinned to B, and on a lost race
// re-read and retry exactly once. Both failing surfaces as
// ErrConcurrentModification with no mutation.
func (s *CoinLedgerService) applyWithRetry(
	userID uuid.UUID,
	spendAmount int64,
	netChange int64,
	entries []models.CoinTransaction,
) (int64, error) {
	for attempt := 0; attempt < balanceAttempts; attempt++ {
		balance, err := s.coinRepo.GetBalance(userID)
		if err != nil {
			return 0, err
		}

		if spendAmount > 0 && balance < spendAmount {
			return 0, fmt.Errorf("balance %d cannot cover %d: %w", balance, spendAmount, models.ErrInsufficientCoins)
		}

		applied, err := s.coinRepo.AppendWithBalance(userID, balance, netChange, entries)
		if err != nil {
			return 0, err
		}
		if applied {
			return balance + netChange, nil
		}

		metrics.CoinCASRetries.Inc()
		s.logger.WithFields(logrus.Fields{
			"user_id": userID,
			"attempt": attempt + 1,
		}).Warn("Coin balance changed concurrently, retrying")
	}

	metrics.CoinCASConflicts.Inc()
	return 0, fmt.Errorf("coin balance for user %s: %w", userID, models.ErrConcurrentModification)
}
