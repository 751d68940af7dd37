package models

import (
	"fmt"
	"strings"
	"time"
)

// PaymentStatus represents the status of a payment fact
type PaymentStatus string

const (
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Payment represents a completed payment event, decoupled from the
// booking record so the gateway callback can write it independently.
// booking_id is unique: a second write for the same booking updates
// the existing row.
type Payment struct {
	ID               int64         `json:"id" db:"id"`
	BookingID        int64         `json:"booking_id" db:"booking_id"`
	Method           string        `json:"method" db:"method"`
	PaymentReference string        `json:"payment_reference" db:"payment_reference"`
	Amount           int64         `json:"amount" db:"amount"`
	Status           PaymentStatus `json:"status" db:"status"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// PaymentCallbackRequest is the gateway confirmation callback payload.
// Either booking_id or external_id identifies the booking.
type PaymentCallbackRequest struct {
	BookingID      *int64 `json:"booking_id,omitempty"`
	ExternalID     string `json:"external_id,omitempty"`
	GatewayOrderID string `json:"gateway_order_id" binding:"required"`
	GatewayPayID   string `json:"gateway_payment_id" binding:"required"`
	Method         string `json:"method,omitempty"`
	Signature      string `json:"signature" binding:"required"`
}

// Validate validates the payment callback request
func (r *PaymentCallbackRequest) Validate() error {
	if r.BookingID == nil && strings.TrimSpace(r.ExternalID) == "" {
		return fmt.Errorf("%w: booking_id or external_id is required", ErrValidation)
	}
	if strings.TrimSpace(r.GatewayOrderID) == "" {
		return fmt.Errorf("%w: gateway_order_id is required", ErrValidation)
	}
	if strings.TrimSpace(r.GatewayPayID) == "" {
		return fmt.Errorf("%w: gateway_payment_id is required", ErrValidation)
	}
	if strings.TrimSpace(r.Signature) == "" {
		return fmt.Errorf("%w: signature is required", ErrValidation)
	}
	return nil
}

// EffectiveView is the reconciled payment view for a booking. Fields are
// nil when neither store holds a value.
type EffectiveView struct {
	PaymentMethod    *string `json:"payment_method"`
	PaymentReference *string `json:"payment_reference"`
}
