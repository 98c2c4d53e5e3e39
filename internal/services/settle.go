package services

import (
	"context"
	"fmt"

	"qiyana_splitledger/internal/events"
	"qiyana_splitledger/internal/locks"
	"qiyana_splitledger/internal/metrics"
	"qiyana_splitledger/internal/models"
	"qiyana_splitledger/internal/repositories/ledgerstore"
	"qiyana_splitledger/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// SettleBalance records that payerID paid payeeID amount in cash. The
// payment consumes, in storage order, the entries on which payeeID fronted
// money that payerID shares. Each consumed entry is deleted and replaced by
// a residual for its other beneficiaries and, when the payment runs out
// part-way through a share, a micro-debt for what payerID still owes.
// The whole payment commits or rolls back as one transaction.
func (l *Ledger) SettleBalance(ctx context.Context, payerID, payeeID int64, amount decimal.Decimal) (models.SettlementResult, error) {
	ctx, done := l.begin(ctx, "settle_balance")
	defer done()

	result, err := l.settleBalance(ctx, payerID, payeeID, amount)
	metrics.Settlements.WithLabelValues(kindOf(err)).Inc()
	return result, err
}

func (l *Ledger) settleBalance(ctx context.Context, payerID, payeeID int64, amount decimal.Decimal) (models.SettlementResult, error) {
	if !amount.IsPositive() {
		return models.SettlementResult{}, ErrNonPositiveAmount
	}
	if err := l.requireUser(ctx, payeeID, ErrUnknownPayee); err != nil {
		return models.SettlementResult{}, err
	}
	if err := l.requireUser(ctx, payerID, ErrUnknownPayer); err != nil {
		return models.SettlementResult{}, err
	}

	unlock, err := l.lock(ctx, locks.PairKey(payerID, payeeID))
	if err != nil {
		return models.SettlementResult{}, err
	}
	defer unlock()

	result := models.SettlementResult{
		Reference: GenerateReference("STL", l.now()),
		PayerID:   payerID,
		PayeeID:   payeeID,
		Requested: amount.Round(2),
	}
	today := l.today()

	err = l.store.WithTx(ctx, func(tx ledgerstore.Tx) error {
		entries, err := tx.QueryUnsettled(ctx, ledgerstore.ByPayerAndBeneficiary(payeeID, payerID))
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return ErrNoDebtFound
		}

		steps := planSettlement(entries, payerID, payeeID, result.Requested)
		for _, step := range steps {
			for i := range step.successors {
				step.successors[i].Date = today
				step.successors[i].Reference = result.Reference
				step.successors[i].Description = fmt.Sprintf("settlement residual of expense %d", step.entry.ID)
			}
			created, err := ledgerstore.ReplaceBatch(ctx, tx, []models.Expense{step.entry}, step.successors)
			if err != nil {
				return err
			}
			result.Consumed = append(result.Consumed, step.entry.ID)
			result.Created = append(result.Created, created...)
			result.Applied = result.Applied.Add(step.applied)
		}
		return nil
	})
	if err != nil {
		return models.SettlementResult{}, storageError(err, "failed to settle balance")
	}

	utils.Logger.WithFields(logrus.Fields{
		"payer_id":  payerID,
		"payee_id":  payeeID,
		"requested": result.Requested.StringFixed(2),
		"applied":   result.Applied.StringFixed(2),
		"consumed":  len(result.Consumed),
		"created":   len(result.Created),
		"reference": result.Reference,
	}).Info("balance settled")

	l.publish(ctx, events.NewEvent(
		events.WithType(events.BalanceSettled),
		events.WithReference(result.Reference),
		events.WithData(result),
	))
	return result, nil
}

type settlementStep struct {
	entry      models.Expense
	successors []models.Expense
	applied    decimal.Decimal
}

// planSettlement walks entries in order and decides, for each one the
// payment reaches, which records replace it.
func planSettlement(entries []models.Expense, payerID, payeeID int64, amount decimal.Decimal) []settlementStep {
	var steps []settlementStep
	remaining := amount

	for _, entry := range entries {
		if remaining.LessThan(epsilon) {
			break
		}

		share := entry.Share()
		others := entry.BeneficiariesWithout(payerID)
		residual := entry.Amount.Sub(share)
		step := settlementStep{entry: entry}

		if len(others) > 0 && residual.GreaterThan(epsilon) {
			step.successors = append(step.successors, models.Expense{
				PayerID:       payeeID,
				Amount:        residual,
				Beneficiaries: others,
			})
		}

		if remaining.Sub(share).GreaterThan(epsilon) {
			step.applied = share
			remaining = remaining.Sub(share)
		} else {
			leftover := share.Sub(remaining)
			step.applied = remaining
			remaining = decimal.Zero
			if leftover.GreaterThan(epsilon) {
				step.successors = append(step.successors, models.Expense{
					PayerID:       payeeID,
					Amount:        leftover,
					Beneficiaries: []int64{payerID},
				})
			}
		}
		steps = append(steps, step)
	}
	return steps
}
