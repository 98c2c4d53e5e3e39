package models

import "github.com/shopspring/decimal"

// DebtSummary says PayerID owes PayeeID Balance. It is computed from the
// ledger on demand and never stored.
type DebtSummary struct {
	PayerID int64           `json:"payer_id"`
	PayeeID int64           `json:"payee_id"`
	Balance decimal.Decimal `json:"balance"`
}
