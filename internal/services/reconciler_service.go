package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gotrip/booking-backend/internal/database"
	"github.com/gotrip/booking-backend/internal/metrics"
	"github.com/gotrip/booking-backend/internal/models"
)

// ReconcilerService produces one consistent payment view from the two
// independently-writable stores. Priority: the payments table wins,
// the denormalized booking columns are the fallback, nil otherwise.
// It is a read-side projection: it never writes booking payment fields.
type ReconcilerService struct {
	paymentRepo *database.PaymentRepository
	gatewayName string
	logger      *logrus.Logger
}

// NewReconcilerService creates a new ReconcilerService
func NewReconcilerService(paymentRepo *database.PaymentRepository, gatewayName string, logger *logrus.Logger) *ReconcilerService {
	return &ReconcilerService{
		paymentRepo: paymentRepo,
		gatewayName: gatewayName,
		logger:      logger,
	}
}

// Reconcile merges a booking's denormalized payment columns with its
// payment fact under the fixed priority rule. Either argument's payment
// data may be absent; the result is nil-valued when neither side holds
// a value. Never errors.
func (s *ReconcilerService) Reconcile(booking *models.Booking, payment *models.Payment) models.EffectiveView {
	view := models.EffectiveView{}

	if payment != nil && payment.Method != "" {
		method := payment.Method
		view.PaymentMethod = &method
	} else if booking.PaymentMethod != nil && *booking.PaymentMethod != "" {
		view.PaymentMethod = booking.PaymentMethod
	}

	if payment != nil && payment.PaymentReference != "" {
		reference := payment.PaymentReference
		view.PaymentReference = &reference
	} else if booking.PaymentReference != nil && *booking.PaymentReference != "" {
		view.PaymentReference = booking.PaymentReference
	}

	return view
}

// ReconcileBooking loads the booking's payment fact, applies the
// priority rule onto the in-memory row, and back-fills a placeholder
// payment fact for legacy confirmed bookings that have none. The
// back-fill is best-effort: failures are logged and swallowed because
// the effective view already carries the correct answer.
func (s *ReconcilerService) ReconcileBooking(booking *models.Booking) models.EffectiveView {
	payment, err := s.paymentRepo.GetByBookingID(booking.ID)
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).
			Warn("Failed to load payment fact, serving booking columns only")
		payment = nil
	}

	if payment == nil && booking.Status == models.BookingStatusConfirmed {
		payment = s.synthesizePlaceholder(booking)
	}

	view := s.Reconcile(booking, payment)
	booking.PaymentMethod = view.PaymentMethod
	booking.PaymentReference = view.PaymentReference
	return view
}

// ListForUser returns a user's bookings with reconciled payment fields
func (s *ReconcilerService) ListForUser(bookingRepo *database.BookingRepository, userID uuid.UUID) ([]models.Booking, error) {
	bookings, err := bookingRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	for i := range bookings {
		s.ReconcileBooking(&bookings[i])
	}

	return bookings, nil
}

// synthesizePlaceholder persists a deterministic payment fact for a
// confirmed booking that predates the payments table and returns it so
// the caller can feed it into the priority rule. Idempotent via
// existence check before insert; exactly-once per booking. Returns nil
// when nothing was synthesized.
func (s *ReconcilerService) synthesizePlaceholder(booking *models.Booking) *models.Payment {
	exists, err := s.paymentRepo.ExistsForBooking(booking.ID)
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).
			Warn("Failed to check for existing payment fact, skipping back-fill")
		return nil
	}
	if exists {
		return nil
	}

	method := s.gatewayName
	if booking.PaymentMethod != nil && *booking.PaymentMethod != "" {
		method = *booking.PaymentMethod
	}

	reference := fmt.Sprintf("LEGACY-%d-%d", booking.ID, booking.CreatedAt.Unix())
	if booking.PaymentReference != nil && *booking.PaymentReference != "" {
		reference = *booking.PaymentReference
	}

	payment := &models.Payment{
		BookingID:        booking.ID,
		Method:           method,
		PaymentReference: reference,
		Amount:           booking.Price,
		Status:           models.PaymentStatusSuccess,
	}

	if err := s.paymentRepo.Upsert(payment); err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).
			Warn("Failed to back-fill placeholder payment fact")
		return nil
	}

	metrics.ReconcilerBackfills.Inc()
	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"reference":  reference,
	}).Info("Synthesized placeholder payment fact for legacy booking")
	return payment
}
