package models

import (
	"time"

	"github.com/google/uuid"
)

// User carries the per-user reward-coin balance. The balance is mutated
// only through the coin ledger's conditional update and never goes
// negative.
type User struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Phone       string    `json:"phone" db:"phone"`
	FirstName   string    `json:"first_name" db:"first_name"`
	LastName    string    `json:"last_name" db:"last_name"`
	Email       string    `json:"email" db:"email"`
	CoinBalance int64     `json:"coin_balance" db:"coin_balance"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
