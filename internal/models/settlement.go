package models

import "github.com/shopspring/decimal"

type SettlementResult struct {
	Reference string          `json:"reference"`
	PayerID   int64           `json:"payer_id"`
	PayeeID   int64           `json:"payee_id"`
	Requested decimal.Decimal `json:"requested"`
	Applied   decimal.Decimal `json:"applied"`
	Consumed  []int64         `json:"consumed"`
	Created   []Expense       `json:"created"`
}

// Transfer is one settling payment produced by netting: DebtorID owes
// CreditorID Amount.
type Transfer struct {
	DebtorID   int64           `json:"debtor_id"`
	CreditorID int64           `json:"creditor_id"`
	Amount     decimal.Decimal `json:"amount"`
}

type NettingResult struct {
	Reference string     `json:"reference"`
	Removed   []int64    `json:"removed"`
	Transfers []Transfer `json:"transfers"`
	Created   []Expense  `json:"created"`
}
