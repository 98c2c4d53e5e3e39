package services

import (
	"context"

	"qiyana_splitledger/internal/models"
	"qiyana_splitledger/internal/repositories/ledgerstore"

	"github.com/shopspring/decimal"
)

// ComputeDues lists every open balance between userID and another user.
// Rows for opposite directions between the same pair are kept apart; see
// DESIGN.md. Row order carries no meaning.
func (l *Ledger) ComputeDues(ctx context.Context, userID int64) ([]models.DebtSummary, error) {
	ctx, done := l.begin(ctx, "compute_dues")
	defer done()

	entries, err := l.store.QueryUnsettled(ctx, ledgerstore.ByParticipant(userID))
	if err != nil {
		return nil, storageError(err, "failed to calculate dues")
	}
	return computeDues(userID, entries), nil
}

// ComputeDuesByEmail resolves email to a user and computes their dues.
func (l *Ledger) ComputeDuesByEmail(ctx context.Context, email string) ([]models.DebtSummary, error) {
	id, ok, err := l.users.ResolveUserByEmail(ctx, email)
	if err != nil {
		return nil, storageError(err, "failed to resolve user email")
	}
	if !ok {
		return nil, ErrUnknownEmail
	}
	return l.ComputeDues(ctx, id)
}

func computeDues(userID int64, entries []models.Expense) []models.DebtSummary {
	result := make([]models.DebtSummary, 0)
	owedTo := make(map[int64]int)   // payee -> row where userID pays
	owedFrom := make(map[int64]int) // payer -> row where userID is paid

	add := func(index map[int64]int, key int64, row models.DebtSummary, share decimal.Decimal) {
		if i, ok := index[key]; ok {
			result[i].Balance = result[i].Balance.Add(share)
			return
		}
		index[key] = len(result)
		row.Balance = share
		result = append(result, row)
	}

	for _, e := range entries {
		share := e.Share()
		if e.PayerID != userID {
			if e.HasBeneficiary(userID) {
				add(owedTo, e.PayerID, models.DebtSummary{PayerID: userID, PayeeID: e.PayerID}, share)
			}
			continue
		}
		for _, b := range e.Beneficiaries {
			if b == userID {
				continue
			}
			add(owedFrom, b, models.DebtSummary{PayerID: b, PayeeID: userID}, share)
		}
	}

	// shares of tiny amounts can round to nothing
	open := result[:0]
	for _, row := range result {
		if row.Balance.IsPositive() {
			open = append(open, row)
		}
	}
	return open
}
