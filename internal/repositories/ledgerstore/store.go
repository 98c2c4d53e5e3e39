// Package ledgerstore persists Expense records and exposes the few queries
// the ledger services run against them. Every mutation happens inside a
// transaction controlled by the caller.
package ledgerstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qiyana_splitledger/internal/models"
)

// ErrConflict is returned by DeleteByID when the row is gone or was
// rewritten after it was read.
var ErrConflict = errors.New("expense missing or modified since read")

type filterKind int

const (
	filterAll filterKind = iota
	filterPayerOnDate
	filterParticipant
	filterUpToDate
	filterPayerAndBeneficiary
)

// Filter selects ledger entries. Build one with the constructors below.
type Filter struct {
	kind  filterKind
	userA int64
	userB int64
	date  time.Time
}

// AllUnsettled matches every open entry.
func AllUnsettled() Filter { return Filter{kind: filterAll} }

// ByPayerOnDate matches entries fronted by payerID on the given day.
func ByPayerOnDate(payerID int64, date time.Time) Filter {
	return Filter{kind: filterPayerOnDate, userA: payerID, date: models.Day(date)}
}

// ByParticipant matches entries where userID is the payer or a beneficiary.
func ByParticipant(userID int64) Filter {
	return Filter{kind: filterParticipant, userA: userID}
}

// UpToDate matches entries dated on or before cutoff.
func UpToDate(cutoff time.Time) Filter {
	return Filter{kind: filterUpToDate, date: models.Day(cutoff)}
}

// ByPayerAndBeneficiary matches entries fronted by payerID that list
// beneficiaryID among the users sharing them.
func ByPayerAndBeneficiary(payerID, beneficiaryID int64) Filter {
	return Filter{kind: filterPayerAndBeneficiary, userA: payerID, userB: beneficiaryID}
}

// Match reports whether e satisfies the filter. The settled flag is a
// historical marker and plays no part in matching.
func (f Filter) Match(e models.Expense) bool {
	switch f.kind {
	case filterPayerOnDate:
		return e.PayerID == f.userA && models.Day(e.Date).Equal(f.date)
	case filterParticipant:
		return e.PayerID == f.userA || e.HasBeneficiary(f.userA)
	case filterUpToDate:
		return !models.Day(e.Date).After(f.date)
	case filterPayerAndBeneficiary:
		return e.PayerID == f.userA && e.HasBeneficiary(f.userB)
	default:
		return true
	}
}

func (f Filter) String() string {
	switch f.kind {
	case filterPayerOnDate:
		return fmt.Sprintf("payer=%d date=%s", f.userA, f.date.Format(time.DateOnly))
	case filterParticipant:
		return fmt.Sprintf("participant=%d", f.userA)
	case filterUpToDate:
		return fmt.Sprintf("date<=%s", f.date.Format(time.DateOnly))
	case filterPayerAndBeneficiary:
		return fmt.Sprintf("payer=%d beneficiary=%d", f.userA, f.userB)
	default:
		return "all"
	}
}

// Reader returns the open ledger entries matching a filter in ascending id
// order. Every stored entry is open: settling replaces entries rather than
// flagging them.
type Reader interface {
	QueryUnsettled(ctx context.Context, f Filter) ([]models.Expense, error)
}

// Tx is the transaction scope handed to Store.WithTx callbacks.
type Tx interface {
	Reader
	Insert(ctx context.Context, e models.Expense) (int64, error)
	DeleteByID(ctx context.Context, id int64, modified time.Time) error
}

type Store interface {
	Reader
	// WithTx runs fn in one transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// ReplaceBatch deletes the given entries and inserts their successors in the
// same transaction. It returns the inserted records with ids assigned.
func ReplaceBatch(ctx context.Context, tx Tx, remove []models.Expense, insert []models.Expense) ([]models.Expense, error) {
	for _, e := range remove {
		if err := tx.DeleteByID(ctx, e.ID, e.Modified); err != nil {
			return nil, fmt.Errorf("delete expense %d: %w", e.ID, err)
		}
	}

	created := make([]models.Expense, 0, len(insert))
	for _, e := range insert {
		id, err := tx.Insert(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("insert successor of payer %d: %w", e.PayerID, err)
		}
		e.ID = id
		created = append(created, e)
	}
	return created, nil
}
