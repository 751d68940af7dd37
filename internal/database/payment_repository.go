package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gotrip/booking-backend/internal/models"
)

// PaymentRepository handles payment fact database operations
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Upsert writes a payment fact for a booking. booking_id is effectively
// unique: a second write for the same booking updates the existing row
// instead of appending a duplicate.
func (r *PaymentRepository) Upsert(payment *models.Payment) error {
	query := `
		INSERT INTO payments (booking_id, method, payment_reference, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (booking_id) DO UPDATE
		SET method = EXCLUDED.method,
		    payment_reference = EXCLUDED.payment_reference,
		    amount = EXCLUDED.amount,
		    status = EXCLUDED.status,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowx(query,
		payment.BookingID, payment.Method, payment.PaymentReference,
		payment.Amount, payment.Status,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert payment: %w", err)
	}

	return nil
}

// GetByBookingID retrieves the payment fact for a booking. Returns
// (nil, nil) when no payment row exists yet.
func (r *PaymentRepository) GetByBookingID(bookingID int64) (*models.Payment, error) {
	payment := &models.Payment{}
	query := `
		SELECT id, booking_id, method, payment_reference, amount, status,
		       created_at, updated_at
		FROM payments WHERE booking_id = $1`

	err := r.db.Get(payment, query, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return payment, nil
}

// ExistsForBooking checks whether a payment row exists for the booking
func (r *PaymentRepository) ExistsForBooking(bookingID int64) (bool, error) {
	var count int
	err := r.db.Get(&count, `SELECT COUNT(*) FROM payments WHERE booking_id = $1`, bookingID)
	if err != nil {
		return false, fmt.Errorf("failed to check payment existence: %w", err)
	}
	return count > 0, nil
}
