package services

import (
	"context"
	"errors"
	"time"

	"qiyana_splitledger/internal/events"
	"qiyana_splitledger/internal/locks"
	"qiyana_splitledger/internal/metrics"
	"qiyana_splitledger/internal/models"
	"qiyana_splitledger/internal/repositories/ledgerstore"
	"qiyana_splitledger/pkg/utils"

	"github.com/sirupsen/logrus"
)

// MinimizeTransactions replaces every unsettled entry dated on or before
// cutoff with the smallest set of transfers that preserves each user's net
// balance. Expenses dated on or before cutoff are refused while it runs.
// It returns ErrNothingToDo when there is nothing to net.
func (l *Ledger) MinimizeTransactions(ctx context.Context, cutoff time.Time) (models.NettingResult, error) {
	ctx, done := l.begin(ctx, "minimize_transactions")
	defer done()

	result, err := l.minimizeTransactions(ctx, models.Day(cutoff))
	metrics.NettingRuns.WithLabelValues(kindOf(err)).Inc()
	return result, err
}

func (l *Ledger) minimizeTransactions(ctx context.Context, cutoff time.Time) (models.NettingResult, error) {
	unlock, err := l.lock(ctx, locks.NettingKey)
	if err != nil {
		return models.NettingResult{}, err
	}
	defer unlock()

	closeGate, err := l.gate.Open(ctx, cutoff)
	if err != nil {
		return models.NettingResult{}, storageError(err, "failed to publish netting cutoff")
	}
	defer closeGate()

	result := models.NettingResult{Reference: GenerateReference("NET", l.now())}
	today := l.today()

	err = l.store.WithTx(ctx, func(tx ledgerstore.Tx) error {
		batch, err := tx.QueryUnsettled(ctx, ledgerstore.UpToDate(cutoff))
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return ErrNothingToDo
		}

		result.Transfers = PlanTransfers(batch)
		inserts := make([]models.Expense, 0, len(result.Transfers))
		for _, t := range result.Transfers {
			inserts = append(inserts, models.Expense{
				PayerID:       t.CreditorID,
				Amount:        t.Amount,
				Date:          today,
				Beneficiaries: []int64{t.DebtorID},
				Description:   "net settlement up to " + cutoff.Format(time.DateOnly),
				Reference:     result.Reference,
			})
		}

		created, err := ledgerstore.ReplaceBatch(ctx, tx, batch, inserts)
		if err != nil {
			return err
		}
		result.Created = created
		for _, e := range batch {
			result.Removed = append(result.Removed, e.ID)
		}
		return nil
	})
	if errors.Is(err, ErrNothingToDo) {
		utils.Logger.WithField("cutoff", cutoff.Format(time.DateOnly)).Info("nothing to net")
		return models.NettingResult{}, ErrNothingToDo
	}
	if err != nil {
		return models.NettingResult{}, storageError(err, "failed to minimize transactions")
	}

	metrics.NettingTransfers.Add(float64(len(result.Transfers)))
	utils.Logger.WithFields(logrus.Fields{
		"cutoff":    cutoff.Format(time.DateOnly),
		"removed":   len(result.Removed),
		"transfers": len(result.Transfers),
		"reference": result.Reference,
	}).Info("transactions minimized")

	l.publish(ctx, events.NewEvent(
		events.WithType(events.TransactionsMinimized),
		events.WithReference(result.Reference),
		events.WithData(result),
	))
	return result, nil
}
