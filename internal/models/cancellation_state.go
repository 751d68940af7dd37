package models

import "time"

// CancellationState is the per-booking workflow marker for the
// cancellation saga. Each step commits independently; the marker lets a
// crashed workflow be detected and resumed from the right step instead
// of re-running every idempotency check from scratch.
type CancellationState struct {
	BookingID      int64      `json:"booking_id" db:"booking_id"`
	Fee            int64      `json:"fee" db:"fee"`
	Refund         int64      `json:"refund" db:"refund"`
	StatusUpdated  bool       `json:"status_updated" db:"status_updated"`
	FeeRecorded    bool       `json:"fee_recorded" db:"fee_recorded"`
	RefundRecorded bool       `json:"refund_recorded" db:"refund_recorded"`
	SpendReversed  bool       `json:"spend_reversed" db:"spend_reversed"`
	EarnReversed   bool       `json:"earn_reversed" db:"earn_reversed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// Complete reports whether every saga step has committed.
func (s *CancellationState) Complete() bool {
	return s.StatusUpdated && s.FeeRecorded && s.RefundRecorded &&
		s.SpendReversed && s.EarnReversed
}
