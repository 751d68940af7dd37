package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the lifecycle status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusFailed    BookingStatus = "failed"
)

// Passenger represents a single traveller on a booking
type Passenger struct {
	Name   string `json:"name"`
	Age    int    `json:"age,omitempty"`
	Gender string `json:"gender,omitempty"`
}

// PassengerList is stored as a JSONB column on the bookings table
type PassengerList []Passenger

// Value implements the driver.Valuer interface
func (p PassengerList) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// Scan implements the sql.Scanner interface
func (p *PassengerList) Scan(src interface{}) error {
	if src == nil {
		*p = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into PassengerList", src)
	}
	return json.Unmarshal(data, p)
}

// Booking represents a trip reservation
type Booking struct {
	ID               int64         `json:"id" db:"id"`
	ExternalID       string        `json:"external_id" db:"external_id"`
	UserID           uuid.UUID     `json:"user_id" db:"user_id"`
	FromCity         string        `json:"from_city" db:"from_city"`
	ToCity           string        `json:"to_city" db:"to_city"`
	TravelMode       string        `json:"travel_mode" db:"travel_mode"`
	Operator         *string       `json:"operator,omitempty" db:"operator"`
	TravelDate       *time.Time    `json:"travel_date,omitempty" db:"travel_date"`
	Price            int64         `json:"price" db:"price"`
	Passengers       PassengerList `json:"passengers,omitempty" db:"passengers"`
	CoinsUsed        int64         `json:"coins_used" db:"coins_used"`
	Status           BookingStatus `json:"status" db:"status"`
	PaymentMethod    *string       `json:"payment_method,omitempty" db:"payment_method"`
	PaymentReference *string       `json:"payment_reference,omitempty" db:"payment_reference"`
	CancelledAt      *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancelReason     *string       `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// CanBeCancelled checks if the booking can be cancelled
func (b *Booking) CanBeCancelled() bool {
	return b.Status == BookingStatusConfirmed
}

// BookingDraft represents the request to create a booking
type BookingDraft struct {
	FromCity         string        `json:"from_city" binding:"required"`
	ToCity           string        `json:"to_city" binding:"required"`
	TravelMode       string        `json:"travel_mode,omitempty"`
	Operator         *string       `json:"operator,omitempty"`
	TravelDate       *time.Time    `json:"travel_date,omitempty"`
	Price            int64         `json:"price" binding:"required"`
	Passengers       PassengerList `json:"passengers,omitempty"`
	CoinsUsed        int64         `json:"coins_used,omitempty"`
	PaymentMethod    *string       `json:"payment_method,omitempty"`
	PaymentReference *string       `json:"payment_reference,omitempty"`
}

// Validate validates the booking draft
func (d *BookingDraft) Validate() error {
	if strings.TrimSpace(d.FromCity) == "" {
		return fmt.Errorf("%w: from_city is required", ErrValidation)
	}
	if strings.TrimSpace(d.ToCity) == "" {
		return fmt.Errorf("%w: to_city is required", ErrValidation)
	}
	if d.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrValidation)
	}
	if d.CoinsUsed < 0 {
		return fmt.Errorf("%w: coins_used cannot be negative", ErrValidation)
	}
	if d.CoinsUsed > d.Price {
		return fmt.Errorf("%w: coins_used cannot exceed price", ErrValidation)
	}
	return nil
}

// PaymentSummary is the denormalized payment view copied onto a booking
// when the payment callback confirms it.
type PaymentSummary struct {
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

// CancelBookingRequest represents the request to cancel a booking
type CancelBookingRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// CancellationOutcome is returned to the caller after a cancellation,
// even when downstream notification fails.
type CancellationOutcome struct {
	Fee    int64         `json:"fee"`
	Refund int64         `json:"refund"`
	Status BookingStatus `json:"status"`
}
