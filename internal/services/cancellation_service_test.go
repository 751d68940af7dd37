package services

import (
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrip/booking-backend/internal/config"
	"github.com/gotrip/booking-backend/internal/database"
	"github.com/gotrip/booking-backend/internal/models"
	"github.com/gotrip/booking-backend/pkg/notify"
)

func newCancellationTest(t *testing.T) (*CancellationService, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	bookingRepo := database.NewBookingRepository(sqlxDB, logger)
	stateRepo := database.NewCancellationStateRepository(sqlxDB)
	userRepo := database.NewUserRepository(sqlxDB)
	coinRepo := database.NewCoinRepository(sqlxDB)

	coins := NewCoinLedgerService(coinRepo, config.CoinsConfig{EarnRate: 0.02, EarnCap: 50}, logger)
	svc := NewCancellationService(
		bookingRepo, stateRepo, userRepo, coins,
		notify.NewLogNotifier(logger),
		config.CancellationConfig{FeeRate: 0.10, FeeCap: 500},
		logger,
	)

	return svc, mock, func() { db.Close() }
}

func stateColumns() []string {
	return []string{
		"booking_id", "fee", "refund", "status_updated", "fee_recorded",
		"refund_recorded", "spend_reversed", "earn_reversed",
		"completed_at", "created_at", "updated_at",
	}
}

func expectBookingFetch(mock sqlmock.Sqlmock, userID uuid.UUID, status models.BookingStatus) {
	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "external_id", "user_id", "from_city", "to_city", "travel_mode",
			"operator", "travel_date", "price", "passengers", "coins_used", "status",
			"payment_method", "payment_reference", "cancelled_at", "cancel_reason",
			"created_at", "updated_at",
		}).AddRow(
			int64(7), "GT-ABC123-0A1B2C", userID, "Colombo", "Kandy", "bus",
			nil, nil, int64(4000), []byte(`[]`), int64(20), status,
			"card", "PAY-991", nil, nil, now, now,
		))
}

func expectReversal(mock sqlmock.Sqlmock, userID uuid.UUID, reversalType models.CoinTransactionType, sourceType models.CoinTransactionType, magnitude, balance, net int64) {
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM coin_transactions`).
		WithArgs(int64(7), reversalType).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT COALESCE`).
		WithArgs(int64(7), sourceType).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(magnitude))
	expectBalanceRead(mock, userID, balance)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users`).
		WithArgs(net, userID, balance).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectLedgerInsert(mock)
	mock.ExpectCommit()
}

func TestCancellationFee(t *testing.T) {
	svc, _, closeFn := newCancellationTest(t)
	defer closeFn()

	tests := []struct {
		name     string
		price    int64
		expected int64
	}{
		{"Ten Percent Of Price", 4000, 400},
		{"Rounds Half Up", 1005, 101},
		{"Exactly At Cap", 5000, 500},
		{"Capped Above Threshold", 10000, 500},
		{"Cap Holds For Large Prices", 100000, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, svc.Fee(tt.price))
		})
	}
}

func TestCancel(t *testing.T) {
	userID := uuid.New()

	t.Run("Runs The Full Workflow", func(t *testing.T) {
		svc, mock, closeFn := newCancellationTest(t)
		defer closeFn()

		expectBookingFetch(mock, userID, models.BookingStatusConfirmed)

		mock.ExpectExec(`INSERT INTO cancellation_states`).
			WithArgs(int64(7), int64(400), int64(3600)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT (.+) FROM cancellation_states WHERE booking_id`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows(stateColumns()).AddRow(
				int64(7), int64(400), int64(3600), false, false, false, false, false,
				nil, time.Now(), time.Now(),
			))

		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(models.BookingStatusCancelled, nil, int64(7), models.BookingStatusConfirmed).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE cancellation_states`).
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// fee record
		expectLedgerInsert(mock)
		mock.ExpectExec(`UPDATE cancellation_states`).
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// refund intent
		expectLedgerInsert(mock)
		mock.ExpectExec(`UPDATE cancellation_states`).
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// spend reversal refunds the 20 coins used
		expectReversal(mock, userID, models.CoinTxRefund, models.CoinTxSpend, 20, 100, 20)
		mock.ExpectExec(`UPDATE cancellation_states`).
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// earn reversal revokes the 50 coins granted on confirmation
		expectReversal(mock, userID, models.CoinTxRevoke, models.CoinTxEarn, 50, 120, -50)
		mock.ExpectExec(`UPDATE cancellation_states`).
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec(`UPDATE cancellation_states`).
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// notification lookup
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE id`).
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "phone", "first_name", "last_name", "email", "coin_balance",
				"created_at", "updated_at",
			}).AddRow(userID, "+94712345678", "Amal", "Perera", "amal@example.com", int64(70), time.Now(), time.Now()))

		outcome, err := svc.Cancel(userID, 7, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(400), outcome.Fee)
		assert.Equal(t, int64(3600), outcome.Refund)
		assert.Equal(t, models.BookingStatusCancelled, outcome.Status)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Existing Marker Amounts Win", func(t *testing.T) {
		svc, mock, closeFn := newCancellationTest(t)
		defer closeFn()

		expectBookingFetch(mock, userID, models.BookingStatusConfirmed)

		// a previous attempt already wrote the marker and every step but
		// the completion stamp
		mock.ExpectExec(`INSERT INTO cancellation_states`).
			WithArgs(int64(7), int64(400), int64(3600)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT (.+) FROM cancellation_states WHERE booking_id`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows(stateColumns()).AddRow(
				int64(7), int64(350), int64(3650), true, true, true, true, true,
				nil, time.Now(), time.Now(),
			))
		mock.ExpectExec(`UPDATE cancellation_states`).
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectQuery(`SELECT (.+) FROM users WHERE id`).
			WithArgs(userID).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "phone", "first_name", "last_name", "email", "coin_balance",
				"created_at", "updated_at",
			}).AddRow(userID, "+94712345678", "Amal", "Perera", "amal@example.com", int64(70), time.Now(), time.Now()))

		outcome, err := svc.Cancel(userID, 7, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(350), outcome.Fee)
		assert.Equal(t, int64(3650), outcome.Refund)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rejects Foreign Booking", func(t *testing.T) {
		svc, mock, closeFn := newCancellationTest(t)
		defer closeFn()

		expectBookingFetch(mock, uuid.New(), models.BookingStatusConfirmed)

		_, err := svc.Cancel(userID, 7, nil)
		assert.ErrorIs(t, err, models.ErrForbidden)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rejects Pending Booking", func(t *testing.T) {
		svc, mock, closeFn := newCancellationTest(t)
		defer closeFn()

		expectBookingFetch(mock, userID, models.BookingStatusPending)

		_, err := svc.Cancel(userID, 7, nil)
		assert.ErrorIs(t, err, models.ErrInvalidState)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rejects Already Cancelled Booking", func(t *testing.T) {
		svc, mock, closeFn := newCancellationTest(t)
		defer closeFn()

		expectBookingFetch(mock, userID, models.BookingStatusCancelled)

		_, err := svc.Cancel(userID, 7, nil)
		assert.ErrorIs(t, err, models.ErrInvalidState)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepair(t *testing.T) {
	userID := uuid.New()

	t.Run("Resumes Missing Reversal Steps", func(t *testing.T) {
		svc, mock, closeFn := newCancellationTest(t)
		defer closeFn()

		expectBookingFetch(mock, userID, models.BookingStatusCancelled)

		// marker shows the crash happened after recording the refund
		mock.ExpectQuery(`SELECT (.+) FROM cancellation_states WHERE booking_id`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows(stateColumns()).AddRow(
				int64(7), int64(400), int64(3600), true, true, true, false, false,
				nil, time.Now(), time.Now(),
			))

		// spend reversal already present in the ledger, only the marker
		// update was lost
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM coin_transactions`).
			WithArgs(int64(7), models.CoinTxRefund).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectExec(`UPDATE cancellation_states`).
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		expectReversal(mock, userID, models.CoinTxRevoke, models.CoinTxEarn, 50, 120, -50)
		mock.ExpectExec(`UPDATE cancellation_states`).
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec(`UPDATE cancellation_states`).
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		outcome, err := svc.Repair(userID, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(400), outcome.Fee)
		assert.Equal(t, int64(3600), outcome.Refund)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rebuilds Marker For Legacy Cancellation", func(t *testing.T) {
		svc, mock, closeFn := newCancellationTest(t)
		defer closeFn()

		expectBookingFetch(mock, userID, models.BookingStatusCancelled)

		mock.ExpectQuery(`SELECT (.+) FROM cancellation_states WHERE booking_id`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows(stateColumns()))
		mock.ExpectExec(`INSERT INTO cancellation_states`).
			WithArgs(int64(7), int64(400), int64(3600)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE cancellation_states`).
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT (.+) FROM cancellation_states WHERE booking_id`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows(stateColumns()).AddRow(
				int64(7), int64(400), int64(3600), true, false, false, false, false,
				nil, time.Now(), time.Now(),
			))

		// fee record
		expectLedgerInsert(mock)
		mock.ExpectExec(`UPDATE cancellation_states`).
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// refund intent
		expectLedgerInsert(mock)
		mock.ExpectExec(`UPDATE cancellation_states`).
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// both reversals already settled in the ledger
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM coin_transactions`).
			WithArgs(int64(7), models.CoinTxRefund).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectExec(`UPDATE cancellation_states`).
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM coin_transactions`).
			WithArgs(int64(7), models.CoinTxRevoke).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectExec(`UPDATE cancellation_states`).
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec(`UPDATE cancellation_states`).
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		outcome, err := svc.Repair(userID, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(400), outcome.Fee)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rejects Confirmed Booking", func(t *testing.T) {
		svc, mock, closeFn := newCancellationTest(t)
		defer closeFn()

		expectBookingFetch(mock, userID, models.BookingStatusConfirmed)

		_, err := svc.Repair(userID, 7)
		assert.ErrorIs(t, err, models.ErrInvalidState)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rejects Foreign Booking", func(t *testing.T) {
		svc, mock, closeFn := newCancellationTest(t)
		defer closeFn()

		expectBookingFetch(mock, uuid.New(), models.BookingStatusCancelled)

		_, err := svc.Repair(userID, 7)
		assert.ErrorIs(t, err, models.ErrForbidden)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
