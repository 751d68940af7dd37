// Package notify defines the outbound notification collaborator. The
// engine calls it fire-and-forget: dispatch failures are logged and
// never undo the write that triggered them.
package notify

import (
	"github.com/sirupsen/logrus"

	"github.com/gotrip/booking-backend/internal/models"
)

// Notifier dispatches booking lifecycle notifications
type Notifier interface {
	SendConfirmation(user *models.User, booking *models.Booking) error
	SendCancellation(user *models.User, booking *models.Booking, fee, refund int64) error
}

// LogNotifier is the default Notifier. It records the dispatch intent
// in the structured log; a delivery backend (email/SMS/push) plugs in
// behind the same interface.
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendConfirmation logs a booking confirmation notification
func (n *LogNotifier) SendConfirmation(user *models.User, booking *models.Booking) error {
	n.logger.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"booking_id":  booking.ID,
		"external_id": booking.ExternalID,
	}).Info("Dispatching booking confirmation notification")
	return nil
}

// SendCancellation logs a booking cancellation notification
func (n *LogNotifier) SendCancellation(user *models.User, booking *models.Booking, fee, refund int64) error {
	n.logger.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"booking_id":  booking.ID,
		"external_id": booking.ExternalID,
		"fee":         fee,
		"refund":      refund,
	}).Info("Dispatching booking cancellation notification")
	return nil
}
