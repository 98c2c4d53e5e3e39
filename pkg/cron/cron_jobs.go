package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"qiyana_splitledger/internal/models"
	"qiyana_splitledger/internal/services"
	"qiyana_splitledger/pkg/utils"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type Ledger interface {
	MinimizeTransactions(ctx context.Context, cutoff time.Time) (models.NettingResult, error)
	DebtorStatements(ctx context.Context) ([]services.DebtorStatement, error)
}

type Contacts interface {
	Contact(ctx context.Context, id int64) (models.User, bool, error)
}

type Mailer interface {
	SendDebtorReminderEmail(to, firstName, total string, lines []utils.ReminderLine, asOf time.Time) error
}

// Jobs are the ledger's scheduled tasks. Mailer may be nil, in which case
// no reminders are scheduled.
type Jobs struct {
	Ledger   Ledger
	Contacts Contacts
	Mailer   Mailer
	Now      func() time.Time
	Timeout  time.Duration
}

// StartCronJobs schedules nightly netting and, when a mailer is set, daily
// debtor reminders.
func StartCronJobs(j *Jobs, nettingSpec, reminderSpec string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	if _, err := c.AddFunc(nettingSpec, func() {
		if err := j.NetUpToYesterday(); err != nil {
			utils.Logger.Errorf("Cron job failed to minimize transactions: %v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule netting job %q: %w", nettingSpec, err)
	}

	if j.Mailer != nil {
		if _, err := c.AddFunc(reminderSpec, func() {
			if err := j.SendReminderEmailsToDebtors(); err != nil {
				utils.Logger.Errorf("Cron job failed to send reminder emails: %v", err)
			}
		}); err != nil {
			return nil, fmt.Errorf("schedule reminder job %q: %w", reminderSpec, err)
		}
	}

	c.Start()
	utils.Logger.WithFields(logrus.Fields{
		"netting":   nettingSpec,
		"reminders": j.Mailer != nil,
	}).Info("Cron jobs started")
	return c, nil
}

func (j *Jobs) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

func (j *Jobs) timeout() time.Duration {
	if j.Timeout > 0 {
		return j.Timeout
	}
	return 45 * time.Second
}

// NetUpToYesterday nets every entry dated before today. An empty ledger
// is not an error.
func (j *Jobs) NetUpToYesterday() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout())
	defer cancel()

	cutoff := models.Day(j.now().UTC()).AddDate(0, 0, -1)
	res, err := j.Ledger.MinimizeTransactions(ctx, cutoff)
	if errors.Is(err, services.ErrNothingToDo) {
		return nil
	}
	if err != nil {
		return err
	}

	utils.Logger.Infof("Netted %d entries into %d transfers up to %s", len(res.Removed), len(res.Transfers), cutoff.Format(time.DateOnly))
	return nil
}

// SendReminderEmailsToDebtors mails every user with an open debt a summary
// of what they owe. Sends run concurrently; a failed send is logged and
// does not stop the others.
func (j *Jobs) SendReminderEmailsToDebtors() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout())
	defer cancel()

	statements, err := j.Ledger.DebtorStatements(ctx)
	if err != nil {
		return err
	}

	names := make(map[int64]string)
	name := func(id int64) (models.User, bool) {
		u, ok, err := j.Contacts.Contact(ctx, id)
		if err != nil {
			utils.Logger.Errorf("Failed to look up user %d: %v", id, err)
			return models.User{}, false
		}
		if ok {
			names[id] = displayName(u)
		}
		return u, ok
	}

	asOf := j.now()
	var wg sync.WaitGroup
	errChan := make(chan error, len(statements))

	for _, st := range statements {
		debtor, ok := name(st.DebtorID)
		if !ok || debtor.Email == "" {
			utils.Logger.Warnf("Skipping reminder for user %d: no email on record", st.DebtorID)
			continue
		}

		lines := make([]utils.ReminderLine, 0, len(st.Lines))
		for _, l := range st.Lines {
			if _, seen := names[l.PayeeID]; !seen {
				if _, ok := name(l.PayeeID); !ok {
					names[l.PayeeID] = fmt.Sprintf("user %d", l.PayeeID)
				}
			}
			lines = append(lines, utils.ReminderLine{Creditor: names[l.PayeeID], Amount: l.Balance.StringFixed(2)})
		}

		wg.Add(1)
		go func(to, firstName, total string, lines []utils.ReminderLine) {
			defer wg.Done()

			if err := j.Mailer.SendDebtorReminderEmail(to, firstName, total, lines, asOf); err != nil {
				errChan <- fmt.Errorf("failed to send reminder email to %s: %v", to, err)
				return
			}
			utils.Logger.Infof("📧 Sent reminder to %s (%s) owing ₦%s across %d creditors", firstName, to, total, len(lines))
		}(debtor.Email, debtor.FirstName, st.Total.StringFixed(2), lines)
	}

	wg.Wait()
	close(errChan)

	failed := 0
	for e := range errChan {
		failed++
		utils.Logger.Error(e)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d reminder emails failed", failed, len(statements))
	}

	utils.Logger.Info("✅ Finished sending all debtor reminder emails.")
	return nil
}

func displayName(u models.User) string {
	switch {
	case u.FirstName != "":
		return u.FirstName
	case u.Email != "":
		return u.Email
	default:
		return fmt.Sprintf("user %d", u.ID)
	}
}
