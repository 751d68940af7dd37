package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gotrip/booking-backend/internal/models"
)

// CancellationStateRepository persists the per-booking saga marker for
// the cancellation workflow.
type CancellationStateRepository struct {
	db *sqlx.DB
}

// NewCancellationStateRepository creates a new CancellationStateRepository
func NewCancellationStateRepository(db *sqlx.DB) *CancellationStateRepository {
	return &CancellationStateRepository{db: db}
}

// Get retrieves the saga marker for a booking. Returns (nil, nil) when
// no cancellation has been started.
func (r *CancellationStateRepository) Get(bookingID int64) (*models.CancellationState, error) {
	state := &models.CancellationState{}
	query := `
		SELECT booking_id, fee, refund, status_updated, fee_recorded,
		       refund_recorded, spend_reversed, earn_reversed,
		       completed_at, created_at, updated_at
		FROM cancellation_states WHERE booking_id = $1`

	err := r.db.Get(state, query, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cancellation state: %w", err)
	}

	return state, nil
}

// Start records the beginning of a cancellation saga with its computed
// amounts. Idempotent: a marker that already exists is left untouched
// so a resumed workflow keeps the originally computed fee.
func (r *CancellationStateRepository) Start(bookingID, fee, refund int64) error {
	_, err := r.db.Exec(`
		INSERT INTO cancellation_states (booking_id, fee, refund)
		VALUES ($1, $2, $3)
		ON CONFLICT (booking_id) DO NOTHING`,
		bookingID, fee, refund)
	if err != nil {
		return fmt.Errorf("failed to start cancellation state: %w", err)
	}
	return nil
}

// MarkStep sets one saga step flag. Column names are fixed constants at
// every call site; no caller-supplied SQL reaches this.
func (r *CancellationStateRepository) MarkStep(bookingID int64, step string) error {
	switch step {
	case "status_updated", "fee_recorded", "refund_recorded", "spend_reversed", "earn_reversed":
	default:
		return fmt.Errorf("unknown cancellation step %q", step)
	}

	query := fmt.Sprintf(`
		UPDATE cancellation_states
		SET %s = TRUE, updated_at = NOW()
		WHERE booking_id = $1`, step)

	_, err := r.db.Exec(query, bookingID)
	if err != nil {
		return fmt.Errorf("failed to mark cancellation step %s: %w", step, err)
	}
	return nil
}

// MarkCompleted stamps the saga as fully finished
func (r *CancellationStateRepository) MarkCompleted(bookingID int64) error {
	_, err := r.db.Exec(`
		UPDATE cancellation_states
		SET completed_at = NOW(), updated_at = NOW()
		WHERE booking_id = $1`,
		bookingID)
	if err != nil {
		return fmt.Errorf("failed to complete cancellation state: %w", err)
	}
	return nil
}
