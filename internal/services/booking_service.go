package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gotrip/booking-backend/internal/database"
	"github.com/gotrip/booking-backend/internal/metrics"
	"github.com/gotrip/booking-backend/internal/models"
	"github.com/gotrip/booking-backend/pkg/notify"
	"github.com/gotrip/booking-backend/pkg/signature"
)

// BookingService orchestrates booking creation and the payment
// confirmation flow.
type BookingService struct {
	bookingRepo *database.BookingRepository
	paymentRepo *database.PaymentRepository
	userRepo    *database.UserRepository
	reconciler  *ReconcilerService
	coins       *CoinLedgerService
	verifier    *signature.Verifier
	notifier    notify.Notifier
	gatewayName string
	logger      *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(
	bookingRepo *database.BookingRepository,
	paymentRepo *database.PaymentRepository,
	userRepo *database.UserRepository,
	reconciler *ReconcilerService,
	coins *CoinLedgerService,
	verifier *signature.Verifier,
	notifier notify.Notifier,
	gatewayName string,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		bookingRepo: bookingRepo,
		paymentRepo: paymentRepo,
		userRepo:    userRepo,
		reconciler:  reconciler,
		coins:       coins,
		verifier:    verifier,
		notifier:    notifier,
		gatewayName: gatewayName,
		logger:      logger,
	}
}

// CreateBooking validates a draft, issues an external identifier and
// inserts a pending booking.
func (s *BookingService) CreateBooking(userID uuid.UUID, draft *models.BookingDraft) (*models.Booking, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	externalID, err := s.bookingRepo.GenerateExternalID(time.Now())
	if err != nil {
		return nil, err
	}

	booking, err := s.bookingRepo.Create(userID, draft, externalID)
	if err != nil {
		return nil, err
	}

	metrics.BookingsCreated.Inc()
	s.logger.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"external_id": booking.ExternalID,
		"user_id":     userID,
		"price":       booking.Price,
	}).Info("Booking created")

	return booking, nil
}

// ListBookings returns the caller's bookings with payment fields
// reconciled under the priority rule.
func (s *BookingService) ListBookings(userID uuid.UUID) ([]models.Booking, error) {
	return s.reconciler.ListForUser(s.bookingRepo, userID)
}

// ConfirmationResult is the outcome of a verified payment callback
type ConfirmationResult struct {
	Booking     *models.Booking `json:"booking"`
	CoinsEarned int64           `json:"coins_earned"`
	CoinBalance int64           `json:"coin_balance"`
}

// HandlePaymentCallback verifies the gateway signature, confirms the
// booking, upserts the payment fact and credits reward coins. The
// response balance is re-read after the mutation so it is always
// consistent with the just-applied ledger change.
func (s *BookingService) HandlePaymentCallback(req *models.PaymentCallbackRequest) (*ConfirmationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var booking *models.Booking
	var err error
	if req.BookingID != nil {
		booking, err = s.bookingRepo.GetByID(*req.BookingID)
	} else {
		booking, err = s.bookingRepo.GetByExternalID(req.ExternalID)
	}
	if err != nil {
		return nil, err
	}

	if !s.verifier.Verify(req.GatewayOrderID, req.GatewayPayID, req.Signature) {
		s.logger.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"order_id":   req.GatewayOrderID,
		}).Warn("Payment callback signature mismatch")
		return nil, fmt.Errorf("payment callback signature mismatch: %w", models.ErrForbidden)
	}

	method := req.Method
	if method == "" {
		method = s.gatewayName
	}
	summary := models.PaymentSummary{Method: method, Reference: req.GatewayPayID}

	transitioned, err := s.bookingRepo.ConfirmPayment(booking.ID, summary)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		BookingID:        booking.ID,
		Method:           method,
		PaymentReference: req.GatewayPayID,
		Amount:           booking.Price,
		Status:           models.PaymentStatusSuccess,
	}
	if err := s.paymentRepo.Upsert(payment); err != nil {
		return nil, err
	}

	earn := s.coins.EarnAmount(booking.Price)
	coinsEarned := int64(0)

	// The ledger existence check makes the coin step idempotent under
	// callback replays and crash-resumed confirmations. Two concurrent
	// duplicates can both pass it; the unique ledger index then fails
	// the loser's insert inside the balance transaction, which surfaces
	// here as ErrConflict with nothing applied.
	applied, err := s.coins.AppliedForBooking(booking.ID)
	if err != nil {
		return nil, err
	}
	if !applied && (earn > 0 || booking.CoinsUsed > 0) {
		_, err := s.coins.ApplyNet(booking.UserID, earn, booking.CoinsUsed, booking.ID)
		switch {
		case err == nil:
			coinsEarned = earn
		case errors.Is(err, models.ErrConflict):
			s.logger.WithField("booking_id", booking.ID).
				Info("Coin entries already applied by concurrent callback")
		default:
			return nil, err
		}
	}

	balance, err := s.coins.Balance(booking.UserID)
	if err != nil {
		return nil, err
	}

	if transitioned {
		metrics.BookingsConfirmed.Inc()
		s.logger.WithFields(logrus.Fields{
			"booking_id":  booking.ID,
			"external_id": booking.ExternalID,
			"method":      method,
		}).Info("Booking confirmed")
		s.dispatchConfirmation(booking)
	}

	confirmed, err := s.bookingRepo.GetByID(booking.ID)
	if err != nil {
		return nil, err
	}

	return &ConfirmationResult{
		Booking:     confirmed,
		CoinsEarned: coinsEarned,
		CoinBalance: balance,
	}, nil
}

// dispatchConfirmation is best-effort: a notification failure must not
// undo a confirmation that already committed.
func (s *BookingService) dispatchConfirmation(booking *models.Booking) {
	user, err := s.userRepo.GetByID(booking.UserID)
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).
			Warn("Failed to load user for confirmation notification")
		return
	}
	if err := s.notifier.SendConfirmation(user, booking); err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).
			Warn("Failed to dispatch confirmation notification")
	}
}
