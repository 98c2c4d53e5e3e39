package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SpendingLimit caps what a single payer may record per day. At most one
// exists system-wide.
type SpendingLimit struct {
	ID        int             `json:"id,omitempty" db:"id,omitempty"`
	Amount    decimal.Decimal `json:"amount,omitempty" db:"amount,omitempty"`
	UpdatedAt time.Time       `json:"updated_at,omitempty" db:"updated_at,omitempty"`
}
