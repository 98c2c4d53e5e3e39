package services

import (
	"context"
	"errors"
	"time"

	"qiyana_splitledger/internal/metrics"
	"qiyana_splitledger/internal/repositories/directory"
	"qiyana_splitledger/internal/repositories/ledgerstore"
	"qiyana_splitledger/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CheckDailyLimit fails with *LimitExceededError when payerID's unsettled
// spend on date plus amount would exceed the configured limit. Reaching the
// limit exactly is allowed. Without a limit every amount passes.
func (l *Ledger) CheckDailyLimit(ctx context.Context, payerID int64, date time.Time, amount decimal.Decimal) error {
	ctx, done := l.begin(ctx, "check_daily_limit")
	defer done()
	return l.checkDailyLimit(ctx, l.store, payerID, date, amount)
}

func (l *Ledger) checkDailyLimit(ctx context.Context, r ledgerstore.Reader, payerID int64, date time.Time, amount decimal.Decimal) error {
	limit, ok, err := l.limits.GetLimit(ctx)
	if err != nil {
		return storageError(err, "failed to get spending limit")
	}
	if !ok {
		return nil
	}

	spent, err := r.QueryUnsettled(ctx, ledgerstore.ByPayerOnDate(payerID, date))
	if err != nil {
		return storageError(err, "failed to get expenses of the day")
	}

	sum := decimal.Zero
	for _, e := range spent {
		sum = sum.Add(e.Amount)
	}

	if sum.Add(amount).GreaterThan(limit) {
		metrics.LimitRejections.Inc()
		utils.Logger.WithFields(logrus.Fields{
			"payer_id": payerID,
			"date":     date.Format(time.DateOnly),
			"spent":    sum.StringFixed(2),
			"amount":   amount.StringFixed(2),
			"limit":    limit.StringFixed(2),
		}).Info("daily spending limit reached")
		return &LimitExceededError{Limit: limit}
	}
	return nil
}

// SpendingLimit returns the configured limit, if any.
func (l *Ledger) SpendingLimit(ctx context.Context) (decimal.Decimal, bool, error) {
	ctx, done := l.begin(ctx, "get_spending_limit")
	defer done()

	limit, ok, err := l.limits.GetLimit(ctx)
	if err != nil {
		return decimal.Zero, false, storageError(err, "failed to get spending limit")
	}
	return limit, ok, nil
}

// CreateSpendingLimit sets the limit when none exists yet.
func (l *Ledger) CreateSpendingLimit(ctx context.Context, amount decimal.Decimal) error {
	ctx, done := l.begin(ctx, "create_spending_limit")
	defer done()

	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	err := l.limits.CreateLimit(ctx, amount.Round(2))
	if errors.Is(err, directory.ErrLimitExists) {
		return ErrLimitExists
	}
	if err != nil {
		return storageError(err, "failed to add spending limit")
	}
	utils.Logger.WithField("limit", amount.StringFixed(2)).Info("spending limit created")
	return nil
}

// UpsertSpendingLimit replaces the limit, creating it if needed.
func (l *Ledger) UpsertSpendingLimit(ctx context.Context, amount decimal.Decimal) error {
	ctx, done := l.begin(ctx, "upsert_spending_limit")
	defer done()

	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if err := l.limits.UpsertLimit(ctx, amount.Round(2)); err != nil {
		return storageError(err, "failed to update spending limit")
	}
	utils.Logger.WithField("limit", amount.StringFixed(2)).Info("spending limit updated")
	return nil
}

// RemoveSpendingLimit lifts the limit.
func (l *Ledger) RemoveSpendingLimit(ctx context.Context) error {
	ctx, done := l.begin(ctx, "remove_spending_limit")
	defer done()

	err := l.limits.DeleteLimit(ctx)
	if errors.Is(err, directory.ErrLimitNotFound) {
		return ErrLimitNotFound
	}
	if err != nil {
		return storageError(err, "failed to delete spending limit")
	}
	utils.Logger.Info("spending limit removed")
	return nil
}
