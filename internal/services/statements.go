package services

import (
	"context"
	"sort"

	"qiyana_splitledger/internal/models"
	"qiyana_splitledger/internal/repositories/ledgerstore"

	"github.com/shopspring/decimal"
)

// DebtorStatement is everything one user still owes, per creditor.
type DebtorStatement struct {
	DebtorID int64                `json:"debtor_id"`
	Total    decimal.Decimal      `json:"total"`
	Lines    []models.DebtSummary `json:"lines"`
}

// DebtorStatements lists every user with an open debt, ordered by user id,
// each with their debts ordered by creditor id.
func (l *Ledger) DebtorStatements(ctx context.Context) ([]DebtorStatement, error) {
	ctx, done := l.begin(ctx, "debtor_statements")
	defer done()

	entries, err := l.store.QueryUnsettled(ctx, ledgerstore.AllUnsettled())
	if err != nil {
		return nil, storageError(err, "failed to list open debts")
	}
	return debtorStatements(entries), nil
}

func debtorStatements(entries []models.Expense) []DebtorStatement {
	owed := make(map[int64]map[int64]decimal.Decimal)
	for _, e := range entries {
		share := e.Share()
		for _, b := range e.Beneficiaries {
			if b == e.PayerID {
				continue
			}
			if owed[b] == nil {
				owed[b] = make(map[int64]decimal.Decimal)
			}
			owed[b][e.PayerID] = owed[b][e.PayerID].Add(share)
		}
	}

	statements := make([]DebtorStatement, 0, len(owed))
	for debtor, creditors := range owed {
		st := DebtorStatement{DebtorID: debtor}
		for creditor, balance := range creditors {
			if !balance.IsPositive() {
				continue
			}
			st.Total = st.Total.Add(balance)
			st.Lines = append(st.Lines, models.DebtSummary{PayerID: debtor, PayeeID: creditor, Balance: balance})
		}
		if len(st.Lines) == 0 {
			continue
		}
		sort.Slice(st.Lines, func(i, j int) bool { return st.Lines[i].PayeeID < st.Lines[j].PayeeID })
		statements = append(statements, st)
	}
	sort.Slice(statements, func(i, j int) bool { return statements[i].DebtorID < statements[j].DebtorID })
	return statements
}
