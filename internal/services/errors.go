package services

import (
	"errors"
	"fmt"

	"qiyana_splitledger/internal/repositories/ledgerstore"
	"qiyana_splitledger/pkg/utils"

	"github.com/shopspring/decimal"
)

// Error kinds. Every error returned by Ledger matches exactly one of them
// with errors.Is, except ErrNothingToDo which is an outcome, not a failure.
var (
	ErrValidation       = errors.New("validation error")
	ErrUnknownReference = errors.New("unknown reference")
	ErrPrecondition     = errors.New("precondition failed")
	ErrConcurrency      = errors.New("concurrent modification")
	ErrStorage          = errors.New("storage error")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string        { return e.msg }
func (e *kindError) Is(target error) bool { return target == e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

var (
	ErrNonPositiveAmount = newError(ErrValidation, "amount must be greater than 0")
	ErrNoBeneficiaries   = newError(ErrValidation, "expense must be shared with at least one user")

	ErrUnknownUser  = newError(ErrUnknownReference, "given user id does not exist")
	ErrUnknownPayer = newError(ErrUnknownReference, "user with given payer id does not exist")
	ErrUnknownPayee = newError(ErrUnknownReference, "user with given payee id does not exist")
	ErrUnknownGroup = newError(ErrUnknownReference, "given group id does not exist")
	ErrUnknownEmail = newError(ErrUnknownReference, "no user with given email")

	ErrNoDebtFound   = newError(ErrPrecondition, "there is no debt existing with given payee")
	ErrLimitExists   = newError(ErrPrecondition, "a spending limit already exists")
	ErrLimitNotFound = newError(ErrPrecondition, "spending limit not found")

	ErrNettingInProgress = newError(ErrConcurrency, "netting in progress, retry")
	ErrEntryChanged      = newError(ErrConcurrency, "expense changed or removed during operation, retry")
	ErrBusy              = newError(ErrConcurrency, "ledger is busy, retry")

	ErrNothingToDo = errors.New("no unsettled expenses up to cutoff")
)

// LimitExceededError rejects an expense that would take the payer past the
// daily spending limit.
type LimitExceededError struct {
	Limit decimal.Decimal
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("you have reached your daily limit of %s", e.Limit.StringFixed(2))
}

func (e *LimitExceededError) Is(target error) bool { return target == ErrPrecondition }

// IsRetryable reports whether the operation may succeed if simply retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrency)
}

// kindOf names the error kind for metric labels.
func kindOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNothingToDo):
		return "nothing_to_do"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrUnknownReference):
		return "unknown_reference"
	case errors.Is(err, ErrPrecondition):
		return "precondition"
	case errors.Is(err, ErrConcurrency):
		return "concurrency"
	default:
		return "storage"
	}
}

// storageError logs a collaborator or database failure and tags it as
// ErrStorage. Errors that already carry a kind pass through, and a
// conflicting delete becomes ErrEntryChanged.
func storageError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ledgerstore.ErrConflict) {
		return fmt.Errorf("%w: %v", ErrEntryChanged, err)
	}
	for _, kind := range []error{ErrValidation, ErrUnknownReference, ErrPrecondition, ErrConcurrency, ErrStorage, ErrNothingToDo} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrStorage, utils.ErrorHandler(err, msg))
}
