package database

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/gotrip/booking-backend/internal/models"
)

// uniqueViolation is the Postgres error code raised by the partial
// unique index on coin_transactions(booking_id, type).
const uniqueViolation = pq.ErrorCode("23505")

// CoinRepository handles the append-only coin ledger and the per-user
// balance it controls. Nothing else writes users.coin_balance.
type CoinRepository struct {
	db *sqlx.DB
}

// NewCoinRepository creates a new CoinRepository
func NewCoinRepository(db *sqlx.DB) *CoinRepository {
	return &CoinRepository{db: db}
}

// GetBalance reads the user's current coin balance
func (r *CoinRepository) GetBalance(userID uuid.UUID) (int64, error) {
	var balance int64
	err := r.db.Get(&balance, `SELECT coin_balance FROM users WHERE id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to read coin balance: %w", err)
	}
	return balance, nil
}

// AppendWithBalance atomically appends ledger entries and applies their
// net coin delta to the user's balance, guarded by the balance the
// caller read beforehand. The WHERE clause pins coin_balance to that
// value, so a concurrent mutation makes the update match zero rows and
// the whole transaction rolls back. Returns false (without error) when
// the guard failed, true when everything committed.
func (r *CoinRepository) AppendWithBalance(
	userID uuid.UUID,
	expectedBalance int64,
	netChange int64,
	entries []models.CoinTransaction,
) (bool, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE users
		SET coin_balance = coin_balance + $1,
		    updated_at = NOW()
		WHERE id = $2 AND coin_balance = $3 AND coin_balance + $1 >= 0`,
		netChange, userID, expectedBalance)
	if err != nil {
		return false, fmt.Errorf("failed to update coin balance: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	for i := range entries {
		if err := insertTransaction(tx, &entries[i]); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return true, nil
}

// InsertMonetary appends a monetary ledger entry (fee or refund record).
// These carry zero coin weight and do not touch the balance.
func (r *CoinRepository) InsertMonetary(entry *models.CoinTransaction) error {
	return insertTransaction(r.db, entry)
}

// insertTransaction appends one ledger row. Coin-weighted entries are
// at most one per (booking_id, type): the partial unique index turns a
// concurrent duplicate into ErrConflict, rolling back the surrounding
// balance update with it.
func insertTransaction(ext sqlx.Ext, entry *models.CoinTransaction) error {
	query := `
		INSERT INTO coin_transactions (user_id, booking_id, type, amount, description, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := sqlx.Get(ext, entry, query,
		entry.UserID, entry.BookingID, entry.Type, entry.Amount,
		entry.Description, entry.Status,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("ledger already holds a %s entry for this booking: %w", entry.Type, models.ErrConflict)
		}
		return fmt.Errorf("failed to insert coin transaction: %w", err)
	}
	return nil
}

// SumByBookingAndType sums the magnitude of ledger entries of one type
// for a booking. Duplicates are summed, matching the reversal contract.
func (r *CoinRepository) SumByBookingAndType(bookingID int64, txType models.CoinTransactionType) (int64, error) {
	var total int64
	err := r.db.Get(&total, `
		SELECT COALESCE(SUM(amount), 0) FROM coin_transactions
		WHERE booking_id = $1 AND type = $2`,
		bookingID, txType)
	if err != nil {
		return 0, fmt.Errorf("failed to sum coin transactions: %w", err)
	}
	return total, nil
}

// ReversalExists checks whether a reversal entry of the given type has
// already been appended for the booking.
func (r *CoinRepository) ReversalExists(bookingID int64, reversalType models.CoinTransactionType) (bool, error) {
	var count int
	err := r.db.Get(&count, `
		SELECT COUNT(*) FROM coin_transactions
		WHERE booking_id = $1 AND type = $2`,
		bookingID, reversalType)
	if err != nil {
		return false, fmt.Errorf("failed to check reversal existence: %w", err)
	}
	return count > 0, nil
}

// ListByUser retrieves a user's ledger entries, newest first
func (r *CoinRepository) ListByUser(userID uuid.UUID) ([]models.CoinTransaction, error) {
	var entries []models.CoinTransaction
	err := r.db.Select(&entries, `
		SELECT id, user_id, booking_id, type, amount, description, status, created_at
		FROM coin_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list coin transactions: %w", err)
	}
	return entries, nil
}

// SumSignedForUser computes the ledger-side balance for a user. Used by
// the offline reconciliation check: it must always equal
// users.coin_balance.
func (r *CoinRepository) SumSignedForUser(userID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.Get(&total, `
		SELECT COALESCE(SUM(CASE
			WHEN type IN ('earn', 'coin_refund') THEN amount
			WHEN type IN ('spend', 'coin_revoke') THEN -amount
			ELSE 0
		END), 0)
		FROM coin_transactions WHERE user_id = $1`,
		userID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum signed coin amounts: %w", err)
	}
	return total, nil
}
