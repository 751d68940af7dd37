package database

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/gotrip/booking-backend/internal/models"
)

// externalIDPrefix is the human-facing booking identifier prefix.
const externalIDPrefix = "GT"

// externalIDAttempts bounds the collision retry loop.
const externalIDAttempts = 5

// BookingRepository handles booking database operations
type BookingRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB, logger *logrus.Logger) *BookingRepository {
	return &BookingRepository{db: db, logger: logger}
}

const bookingColumns = `
	id, external_id, user_id, from_city, to_city, travel_mode, operator,
	travel_date, price, passengers, coins_used, status,
	payment_method, payment_reference, cancelled_at, cancel_reason,
	created_at, updated_at`

// GenerateExternalID generates a booking identifier of the form
// GT-<timestampBase36>-<RANDOM6> and verifies it against the store.
// On collision it retries with a fresh suffix up to 5 attempts, then
// accepts the last candidate; the unique index on external_id is the
// backstop at insert time.
func (r *BookingRepository) GenerateExternalID(seed time.Time) (string, error) {
	tsPart := strings.ToUpper(strconv.FormatInt(seed.Unix(), 36))

	var candidate string
	for attempt := 0; attempt < externalIDAttempts; attempt++ {
		randomBytes := make([]byte, 3)
		if _, err := rand.Read(randomBytes); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		randomStr := strings.ToUpper(hex.EncodeToString(randomBytes))

		candidate = fmt.Sprintf("%s-%s-%s", externalIDPrefix, tsPart, randomStr)

		var count int
		err := r.db.Get(&count, `SELECT COUNT(*) FROM bookings WHERE external_id = $1`, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check external id uniqueness: %w", err)
		}

		if count == 0 {
			return candidate, nil
		}
	}

	r.logger.WithField("external_id", candidate).
		Warn("External ID still colliding after max attempts, accepting last candidate")
	return candidate, nil
}

// Create inserts a pending booking from a validated draft
func (r *BookingRepository) Create(userID uuid.UUID, draft *models.BookingDraft, externalID string) (*models.Booking, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	travelMode := draft.TravelMode
	if travelMode == "" {
		travelMode = "bus"
	}

	booking := &models.Booking{
		ExternalID:       externalID,
		UserID:           userID,
		FromCity:         draft.FromCity,
		ToCity:           draft.ToCity,
		TravelMode:       travelMode,
		Operator:         draft.Operator,
		TravelDate:       draft.TravelDate,
		Price:            draft.Price,
		Passengers:       draft.Passengers,
		CoinsUsed:        draft.CoinsUsed,
		Status:           models.BookingStatusPending,
		PaymentMethod:    draft.PaymentMethod,
		PaymentReference: draft.PaymentReference,
	}

	query := `
		INSERT INTO bookings (
			external_id, user_id, from_city, to_city, travel_mode, operator,
			travel_date, price, passengers, coins_used, status,
			payment_method, payment_reference
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		) RETURNING id, created_at, updated_at`

	err := r.db.QueryRowx(query,
		booking.ExternalID, booking.UserID, booking.FromCity, booking.ToCity,
		booking.TravelMode, booking.Operator, booking.TravelDate, booking.Price,
		booking.Passengers, booking.CoinsUsed, booking.Status,
		booking.PaymentMethod, booking.PaymentReference,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	return booking, nil
}

// GetByID retrieves a booking by its store-assigned id
func (r *BookingRepository) GetByID(bookingID int64) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `SELECT` + bookingColumns + ` FROM bookings WHERE id = $1`

	err := r.db.Get(booking, query, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking %d: %w", bookingID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return booking, nil
}

// GetByExternalID retrieves a booking by its external identifier
func (r *BookingRepository) GetByExternalID(externalID string) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `SELECT` + bookingColumns + ` FROM bookings WHERE external_id = $1`

	err := r.db.Get(booking, query, externalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking %s: %w", externalID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return booking, nil
}

// ListByUser retrieves all bookings for a user, newest first
func (r *BookingRepository) ListByUser(userID uuid.UUID) ([]models.Booking, error) {
	query := `SELECT` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC`

	var bookings []models.Booking
	if err := r.db.Select(&bookings, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// ConfirmPayment transitions a pending booking to confirmed and copies
// the payment summary onto the row. It is idempotent: a repeated call
// with the same summary is a no-op, a repeated call with a different
// summary fails with ErrConflict. The returned bool reports whether
// this call performed the transition.
func (r *BookingRepository) ConfirmPayment(bookingID int64, summary models.PaymentSummary) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $1,
		    payment_method = $2,
		    payment_reference = $3,
		    updated_at = NOW()
		WHERE id = $4 AND status = $5`

	result, err := r.db.Exec(query,
		models.BookingStatusConfirmed, summary.Method, summary.Reference,
		bookingID, models.BookingStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to confirm booking: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows > 0 {
		return true, nil
	}

	// The guarded update matched nothing: decide between idempotent
	// replay, conflicting replay and an illegal transition.
	booking, err := r.GetByID(bookingID)
	if err != nil {
		return false, err
	}

	if booking.Status == models.BookingStatusConfirmed {
		if booking.PaymentMethod != nil && *booking.PaymentMethod == summary.Method &&
			booking.PaymentReference != nil && *booking.PaymentReference == summary.Reference {
			return false, nil
		}
		return false, fmt.Errorf("booking %d already confirmed with different summary: %w", bookingID, models.ErrConflict)
	}

	return false, fmt.Errorf("cannot confirm booking %d in status %s: %w", bookingID, booking.Status, models.ErrInvalidState)
}

// MarkCancelled transitions a confirmed booking to cancelled. Only legal
// from status confirmed; re-cancellation is rejected.
func (r *BookingRepository) MarkCancelled(bookingID int64, reason *string) error {
	query := `
		UPDATE bookings
		SET status = $1,
		    cancelled_at = NOW(),
		    cancel_reason = $2,
		    updated_at = NOW()
		WHERE id = $3 AND status = $4`

	result, err := r.db.Exec(query,
		models.BookingStatusCancelled, reason, bookingID, models.BookingStatusConfirmed,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		booking, err := r.GetByID(bookingID)
		if err != nil {
			return err
		}
		return fmt.Errorf("cannot cancel booking %d in status %s: %w", bookingID, booking.Status, models.ErrInvalidState)
	}

	return nil
}
