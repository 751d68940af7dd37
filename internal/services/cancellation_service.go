package services

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gotrip/booking-backend/internal/config"
	"github.com/gotrip/booking-backend/internal/database"
	"github.com/gotrip/booking-backend/internal/metrics"
	"github.com/gotrip/booking-backend/internal/models"
	"github.com/gotrip/booking-backend/pkg/notify"
)

// CancellationService drives the cancellation saga: fee computation,
// refund intent, coin reversal. Every step commits independently and is
// recorded on a per-booking workflow marker, so a crash mid-workflow is
// resumable through Repair.
type CancellationService struct {
	bookingRepo *database.BookingRepository
	stateRepo   *database.CancellationStateRepository
	userRepo    *database.UserRepository
	coins       *CoinLedgerService
	notifier    notify.Notifier
	config      config.CancellationConfig
	logger      *logrus.Logger
}

// NewCancellationService creates a new CancellationService
func NewCancellationService(
	bookingRepo *database.BookingRepository,
	stateRepo *database.CancellationStateRepository,
	userRepo *database.UserRepository,
	coins *CoinLedgerService,
	notifier notify.Notifier,
	cfg config.CancellationConfig,
	logger *logrus.Logger,
) *CancellationService {
	return &CancellationService{
		bookingRepo: bookingRepo,
		stateRepo:   stateRepo,
		userRepo:    userRepo,
		coins:       coins,
		notifier:    notifier,
		config:      cfg,
		logger:      logger,
	}
}

// Fee computes the cancellation fee: min(round(price * FeeRate), FeeCap)
func (s *CancellationService) Fee(price int64) int64 {
	fee := int64(math.Round(float64(price) * s.config.FeeRate))
	if fee > s.config.FeeCap {
		return s.config.FeeCap
	}
	return fee
}

// Cancel runs the full cancellation workflow for a confirmed booking
// owned by the caller. The outcome is returned even when the trailing
// notification dispatch fails.
func (s *CancellationService) Cancel(userID uuid.UUID, bookingID int64, reason *string) (*models.CancellationOutcome, error) {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}

	if booking.UserID != userID {
		return nil, fmt.Errorf("booking %d is not owned by caller: %w", bookingID, models.ErrForbidden)
	}
	if !booking.CanBeCancelled() {
		return nil, fmt.Errorf("cannot cancel booking %d in status %s: %w", bookingID, booking.Status, models.ErrInvalidState)
	}

	fee := s.Fee(booking.Price)
	refund := booking.Price - fee
	if refund < 0 {
		refund = 0
	}

	// The marker is written before the status flips so a crash at any
	// later point leaves a resumable trail. If a marker already exists
	// (crash between marker and status update), its amounts win.
	if err := s.stateRepo.Start(bookingID, fee, refund); err != nil {
		return nil, err
	}
	state, err := s.stateRepo.Get(bookingID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("cancellation state for booking %d missing after start", bookingID)
	}

	if !state.StatusUpdated {
		if err := s.bookingRepo.MarkCancelled(bookingID, reason); err != nil {
			return nil, err
		}
		if err := s.stateRepo.MarkStep(bookingID, "status_updated"); err != nil {
			return nil, err
		}
		state.StatusUpdated = true
	}

	if err := s.runLedgerSteps(booking, state); err != nil {
		return nil, err
	}

	metrics.BookingsCancelled.Inc()
	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"fee":        state.Fee,
		"refund":     state.Refund,
	}).Info("Booking cancelled")

	s.dispatchCancellation(booking, state.Fee, state.Refund)

	return &models.CancellationOutcome{
		Fee:    state.Fee,
		Refund: state.Refund,
		Status: models.BookingStatusCancelled,
	}, nil
}

// Repair resumes a cancellation that crashed mid-workflow. Unlike
// Cancel it requires the booking to already be cancelled and re-runs
// only the idempotent ledger and reversal steps the marker shows
// incomplete.
func (s *CancellationService) Repair(userID uuid.UUID, bookingID int64) (*models.CancellationOutcome, error) {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}

	if booking.UserID != userID {
		return nil, fmt.Errorf("booking %d is not owned by caller: %w", bookingID, models.ErrForbidden)
	}
	if booking.Status != models.BookingStatusCancelled {
		return nil, fmt.Errorf("cannot repair booking %d in status %s: %w", bookingID, booking.Status, models.ErrInvalidState)
	}

	state, err := s.stateRepo.Get(bookingID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		// Cancelled before the marker existed (legacy data): rebuild it
		// from the stored price and let the idempotent steps sort out
		// what already happened.
		fee := s.Fee(booking.Price)
		refund := booking.Price - fee
		if refund < 0 {
			refund = 0
		}
		if err := s.stateRepo.Start(bookingID, fee, refund); err != nil {
			return nil, err
		}
		if err := s.stateRepo.MarkStep(bookingID, "status_updated"); err != nil {
			return nil, err
		}
		state, err = s.stateRepo.Get(bookingID)
		if err != nil {
			return nil, err
		}
		if state == nil {
			return nil, fmt.Errorf("cancellation state for booking %d missing after start", bookingID)
		}
	}

	if err := s.runLedgerSteps(booking, state); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"fee":        state.Fee,
		"refund":     state.Refund,
	}).Info("Cancellation repaired")

	return &models.CancellationOutcome{
		Fee:    state.Fee,
		Refund: state.Refund,
		Status: models.BookingStatusCancelled,
	}, nil
}

// runLedgerSteps executes the independently-committed ledger steps of
// the saga, skipping the ones the marker already shows done. The coin
// reversals carry their own existence checks, so re-running a step is
// safe even when the marker update itself was the write that crashed.
func (s *CancellationService) runLedgerSteps(booking *models.Booking, state *models.CancellationState) error {
	bookingID := booking.ID

	if !state.FeeRecorded {
		err := s.coins.RecordMonetary(
			booking.UserID, bookingID, models.CoinTxFee, state.Fee,
			fmt.Sprintf("Cancellation fee for booking %s", booking.ExternalID),
			models.CoinTxStatusSuccess,
		)
		if err != nil {
			return err
		}
		if err := s.stateRepo.MarkStep(bookingID, "fee_recorded"); err != nil {
			return err
		}
		state.FeeRecorded = true
	}

	if !state.RefundRecorded {
		if state.Refund > 0 {
			// Refund settlement is asynchronous downstream; this system
			// only records the intent.
			err := s.coins.RecordMonetary(
				booking.UserID, bookingID, models.CoinTxMoneyRefund, state.Refund,
				fmt.Sprintf("Refund due for cancelled booking %s", booking.ExternalID),
				models.CoinTxStatusPending,
			)
			if err != nil {
				return err
			}
		}
		if err := s.stateRepo.MarkStep(bookingID, "refund_recorded"); err != nil {
			return err
		}
		state.RefundRecorded = true
	}

	if !state.SpendReversed {
		if _, err := s.coins.Reverse(booking.UserID, bookingID, models.CoinTxSpend); err != nil {
			return err
		}
		if err := s.stateRepo.MarkStep(bookingID, "spend_reversed"); err != nil {
			return err
		}
		state.SpendReversed = true
	}

	if !state.EarnReversed {
		if _, err := s.coins.Reverse(booking.UserID, bookingID, models.CoinTxEarn); err != nil {
			return err
		}
		if err := s.stateRepo.MarkStep(bookingID, "earn_reversed"); err != nil {
			return err
		}
		state.EarnReversed = true
	}

	if state.Complete() && state.CompletedAt == nil {
		if err := s.stateRepo.MarkCompleted(bookingID); err != nil {
			return err
		}
	}

	return nil
}

// dispatchCancellation is best-effort: the cancellation already
// committed, so a notification failure is logged and dropped.
func (s *CancellationService) dispatchCancellation(booking *models.Booking, fee, refund int64) {
	user, err := s.userRepo.GetByID(booking.UserID)
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).
			Warn("Failed to load user for cancellation notification")
		return
	}
	if err := s.notifier.SendCancellation(user, booking, fee, refund); err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).
			Warn("Failed to dispatch cancellation notification")
	}
}
