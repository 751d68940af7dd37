package database

import (
	"fmt"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrip/booking-backend/internal/models"
)

func newBookingRepoTest(t *testing.T) (*BookingRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewBookingRepository(sqlxDB, logger)

	return repo, mock, func() { db.Close() }
}

func bookingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "external_id", "user_id", "from_city", "to_city", "travel_mode",
		"operator", "travel_date", "price", "passengers", "coins_used", "status",
		"payment_method", "payment_reference", "cancelled_at", "cancel_reason",
		"created_at", "updated_at",
	})
}

func TestGenerateExternalID(t *testing.T) {
	repo, mock, closeFn := newBookingRepoTest(t)
	defer closeFn()

	seed := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	format := regexp.MustCompile(`^GT-[0-9A-Z]+-[0-9A-F]{6}$`)

	t.Run("Unique On First Attempt", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings WHERE external_id`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		id, err := repo.GenerateExternalID(seed)
		require.NoError(t, err)
		assert.Regexp(t, format, id)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Collision Then Unique", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings WHERE external_id`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings WHERE external_id`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		id, err := repo.GenerateExternalID(seed)
		require.NoError(t, err)
		assert.Regexp(t, format, id)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("All Attempts Collide Accepts Last Candidate", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings WHERE external_id`).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		}

		id, err := repo.GenerateExternalID(seed)
		require.NoError(t, err)
		assert.Regexp(t, format, id)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings WHERE external_id`).
			WillReturnError(fmt.Errorf("database error"))

		_, err := repo.GenerateExternalID(seed)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to check external id uniqueness")

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCreateBooking(t *testing.T) {
	repo, mock, closeFn := newBookingRepoTest(t)
	defer closeFn()

	userID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		now := time.Now()
		draft := &models.BookingDraft{
			FromCity:  "Colombo",
			ToCity:    "Kandy",
			Price:     4000,
			CoinsUsed: 20,
			Passengers: models.PassengerList{
				{Name: "Amal Perera", Age: 34},
			},
		}

		mock.ExpectQuery(`INSERT INTO bookings`).
			WithArgs(
				"GT-ABC123-0A1B2C", userID, "Colombo", "Kandy", "bus", nil,
				nil, int64(4000), sqlmock.AnyArg(), int64(20),
				models.BookingStatusPending, nil, nil,
			).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(7), now, now))

		booking, err := repo.Create(userID, draft, "GT-ABC123-0A1B2C")
		require.NoError(t, err)
		assert.Equal(t, int64(7), booking.ID)
		assert.Equal(t, "GT-ABC123-0A1B2C", booking.ExternalID)
		assert.Equal(t, models.BookingStatusPending, booking.Status)
		assert.Equal(t, "bus", booking.TravelMode)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Validation Failure", func(t *testing.T) {
		draft := &models.BookingDraft{FromCity: "Colombo", ToCity: "", Price: 4000}

		booking, err := repo.Create(userID, draft, "GT-ABC123-0A1B2C")
		assert.ErrorIs(t, err, models.ErrValidation)
		assert.Nil(t, booking)
	})

	t.Run("Coins Exceed Price", func(t *testing.T) {
		draft := &models.BookingDraft{FromCity: "Colombo", ToCity: "Kandy", Price: 100, CoinsUsed: 101}

		booking, err := repo.Create(userID, draft, "GT-ABC123-0A1B2C")
		assert.ErrorIs(t, err, models.ErrValidation)
		assert.Nil(t, booking)
	})
}

func TestGetByID(t *testing.T) {
	repo, mock, closeFn := newBookingRepoTest(t)
	defer closeFn()

	t.Run("Success", func(t *testing.T) {
		userID := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
			WithArgs(int64(7)).
			WillReturnRows(bookingRows().AddRow(
				int64(7), "GT-ABC123-0A1B2C", userID, "Colombo", "Kandy", "bus",
				nil, nil, int64(4000), []byte(`[]`), int64(20), "confirmed",
				"card", "PAY-991", nil, nil, now, now,
			))

		booking, err := repo.GetByID(7)
		require.NoError(t, err)
		assert.Equal(t, "GT-ABC123-0A1B2C", booking.ExternalID)
		assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
		require.NotNil(t, booking.PaymentMethod)
		assert.Equal(t, "card", *booking.PaymentMethod)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
			WithArgs(int64(42)).
			WillReturnRows(bookingRows())

		booking, err := repo.GetByID(42)
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.Nil(t, booking)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestConfirmPayment(t *testing.T) {
	repo, mock, closeFn := newBookingRepoTest(t)
	defer closeFn()

	summary := models.PaymentSummary{Method: "card", Reference: "PAY-991"}

	t.Run("Transitions Pending Booking", func(t *testing.T) {
		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(models.BookingStatusConfirmed, "card", "PAY-991", int64(7), models.BookingStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 1))

		transitioned, err := repo.ConfirmPayment(7, summary)
		require.NoError(t, err)
		assert.True(t, transitioned)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Replay With Same Summary Is NoOp", func(t *testing.T) {
		userID := uuid.New()
		now := time.Now()

		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(models.BookingStatusConfirmed, "card", "PAY-991", int64(7), models.BookingStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
			WithArgs(int64(7)).
			WillReturnRows(bookingRows().AddRow(
				int64(7), "GT-ABC123-0A1B2C", userID, "Colombo", "Kandy", "bus",
				nil, nil, int64(4000), []byte(`[]`), int64(20), "confirmed",
				"card", "PAY-991", nil, nil, now, now,
			))

		transitioned, err := repo.ConfirmPayment(7, summary)
		require.NoError(t, err)
		assert.False(t, transitioned)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Replay With Different Summary Conflicts", func(t *testing.T) {
		userID := uuid.New()
		now := time.Now()

		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(models.BookingStatusConfirmed, "card", "PAY-991", int64(7), models.BookingStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
			WithArgs(int64(7)).
			WillReturnRows(bookingRows().AddRow(
				int64(7), "GT-ABC123-0A1B2C", userID, "Colombo", "Kandy", "bus",
				nil, nil, int64(4000), []byte(`[]`), int64(20), "confirmed",
				"wallet", "PAY-777", nil, nil, now, now,
			))

		transitioned, err := repo.ConfirmPayment(7, summary)
		assert.ErrorIs(t, err, models.ErrConflict)
		assert.False(t, transitioned)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Cancelled Booking Rejected", func(t *testing.T) {
		userID := uuid.New()
		now := time.Now()

		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(models.BookingStatusConfirmed, "card", "PAY-991", int64(7), models.BookingStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
			WithArgs(int64(7)).
			WillReturnRows(bookingRows().AddRow(
				int64(7), "GT-ABC123-0A1B2C", userID, "Colombo", "Kandy", "bus",
				nil, nil, int64(4000), []byte(`[]`), int64(20), "cancelled",
				nil, nil, now, nil, now, now,
			))

		transitioned, err := repo.ConfirmPayment(7, summary)
		assert.ErrorIs(t, err, models.ErrInvalidState)
		assert.False(t, transitioned)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMarkCancelled(t *testing.T) {
	repo, mock, closeFn := newBookingRepoTest(t)
	defer closeFn()

	reason := "change of plans"

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(models.BookingStatusCancelled, &reason, int64(7), models.BookingStatusConfirmed).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.MarkCancelled(7, &reason)
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Cancelled", func(t *testing.T) {
		userID := uuid.New()
		now := time.Now()

		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(models.BookingStatusCancelled, &reason, int64(7), models.BookingStatusConfirmed).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
			WithArgs(int64(7)).
			WillReturnRows(bookingRows().AddRow(
				int64(7), "GT-ABC123-0A1B2C", userID, "Colombo", "Kandy", "bus",
				nil, nil, int64(4000), []byte(`[]`), int64(20), "cancelled",
				nil, nil, now, nil, now, now,
			))

		err := repo.MarkCancelled(7, &reason)
		assert.ErrorIs(t, err, models.ErrInvalidState)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
