package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is one ledger entry: PayerID fronted Amount on Date and every
// user in Beneficiaries owes PayerID an equal Share of it.
type Expense struct {
	ID            int64           `json:"id,omitempty" db:"id,omitempty"`
	PayerID       int64           `json:"payer_id,omitempty" db:"payer_id,omitempty"`
	Amount        decimal.Decimal `json:"amount,omitempty" db:"amount,omitempty"`
	Date          time.Time       `json:"date,omitempty" db:"expense_date,omitempty"`
	Beneficiaries []int64         `json:"beneficiaries,omitempty" db:"-"`
	Description   string          `json:"description,omitempty" db:"description,omitempty"`
	Reference     string          `json:"reference,omitempty" db:"reference,omitempty"`
	Settled       bool            `json:"settled,omitempty" db:"settled,omitempty"`
	Modified      time.Time       `json:"modified,omitempty" db:"modified,omitempty"`
}

// Share is the rounded portion of Amount owed by each beneficiary.
// decimal.Round rounds half away from zero.
func (e Expense) Share() decimal.Decimal {
	if len(e.Beneficiaries) == 0 {
		return decimal.Zero
	}
	return e.Amount.Div(decimal.NewFromInt(int64(len(e.Beneficiaries)))).Round(2)
}

func (e Expense) HasBeneficiary(userID int64) bool {
	for _, id := range e.Beneficiaries {
		if id == userID {
			return true
		}
	}
	return false
}

// BeneficiariesWithout returns a copy of Beneficiaries with userID removed.
func (e Expense) BeneficiariesWithout(userID int64) []int64 {
	out := make([]int64, 0, len(e.Beneficiaries))
	for _, id := range e.Beneficiaries {
		if id != userID {
			out = append(out, id)
		}
	}
	return out
}

// Clone returns a deep copy so callers never share the beneficiary slice.
func (e Expense) Clone() Expense {
	c := e
	c.Beneficiaries = append([]int64(nil), e.Beneficiaries...)
	return c
}

// Day truncates t to its calendar date. All grouping in the ledger is by day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
