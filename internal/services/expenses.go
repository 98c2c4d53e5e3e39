package services

import (
	"context"
	"time"

	"qiyana_splitledger/internal/events"
	"qiyana_splitledger/internal/locks"
	"qiyana_splitledger/internal/metrics"
	"qiyana_splitledger/internal/models"
	"qiyana_splitledger/internal/repositories/ledgerstore"
	"qiyana_splitledger/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type ExpenseRequest struct {
	PayerID       int64           `json:"payer_id"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	Beneficiaries []int64         `json:"beneficiaries"`
	GroupID       *int64          `json:"group_id,omitempty"`
	Description   string          `json:"description"`
}

// RecordExpense validates req, resolves its group into beneficiaries, runs
// the daily limit check and stores the expense.
func (l *Ledger) RecordExpense(ctx context.Context, req ExpenseRequest) (models.Expense, error) {
	ctx, done := l.begin(ctx, "record_expense")
	defer done()

	if !req.Amount.IsPositive() {
		return models.Expense{}, ErrNonPositiveAmount
	}
	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return models.Expense{}, ErrNonPositiveAmount
	}

	if err := l.requireUser(ctx, req.PayerID, ErrUnknownPayer); err != nil {
		return models.Expense{}, err
	}
	for _, id := range req.Beneficiaries {
		if err := l.requireUser(ctx, id, ErrUnknownUser); err != nil {
			return models.Expense{}, err
		}
	}

	beneficiaries := unionIDs(req.Beneficiaries)
	if req.GroupID != nil {
		members, ok, err := l.groups.GroupMembers(ctx, *req.GroupID)
		if err != nil {
			return models.Expense{}, storageError(err, "failed to fetch group members")
		}
		if !ok {
			return models.Expense{}, ErrUnknownGroup
		}
		beneficiaries = unionIDs(beneficiaries, members)
	}
	if len(beneficiaries) == 0 {
		return models.Expense{}, ErrNoBeneficiaries
	}

	date := models.Day(req.Date)
	if req.Date.IsZero() {
		date = l.today()
	}

	unlock, err := l.lock(ctx, locks.PayerKey(req.PayerID))
	if err != nil {
		return models.Expense{}, err
	}
	defer unlock()

	admitted, leave, err := l.gate.Admit(ctx, date)
	if err != nil {
		return models.Expense{}, storageError(err, "failed to check netting state")
	}
	if !admitted {
		return models.Expense{}, ErrNettingInProgress
	}
	defer leave()

	expense := models.Expense{
		PayerID:       req.PayerID,
		Amount:        amount,
		Date:          date,
		Beneficiaries: beneficiaries,
		Description:   req.Description,
		Reference:     GenerateReference("EXP", l.now()),
	}

	err = l.store.WithTx(ctx, func(tx ledgerstore.Tx) error {
		if err := l.checkDailyLimit(ctx, tx, req.PayerID, date, amount); err != nil {
			return err
		}
		id, err := tx.Insert(ctx, expense)
		if err != nil {
			return err
		}
		expense.ID = id
		return nil
	})
	if err != nil {
		return models.Expense{}, storageError(err, "failed to create expense")
	}

	metrics.ExpensesRecorded.Inc()
	utils.Logger.WithFields(logrus.Fields{
		"expense_id":    expense.ID,
		"payer_id":      expense.PayerID,
		"amount":        expense.Amount.StringFixed(2),
		"beneficiaries": len(expense.Beneficiaries),
		"reference":     expense.Reference,
	}).Info("expense recorded")

	l.publish(ctx, events.NewEvent(
		events.WithType(events.ExpenseRecorded),
		events.WithReference(expense.Reference),
		events.WithData(expense),
	))
	return expense, nil
}

// unionIDs concatenates the lists, keeping the first occurrence of each id.
func unionIDs(lists ...[]int64) []int64 {
	seen := make(map[int64]bool)
	out := make([]int64, 0)
	for _, list := range lists {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
