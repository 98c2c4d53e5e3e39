package services

import (
	"context"
	"fmt"
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

// epsilon is the tolerance below which a balance counts as settled.
var epsilon = decimal.New(10, -2)

type UserDirectory interface {
	UserExists(ctx context.Context, id int64) (bool, error)
	ResolveUserByEmail(ctx context.Context, email string) (int64, bool, error)
}

type GroupDirectory interface {
	GroupMembers(ctx context.Context, groupID int64) ([]int64, bool, error)
}

type LimitStore interface {
	GetLimit(ctx context.Context) (decimal.Decimal, bool, error)
	CreateLimit(ctx context.Context, amount decimal.Decimal) error
	UpsertLimit(ctx context.Context, amount decimal.Decimal) error
	DeleteLimit(ctx context.Context) error
}

// Ledger is the shared-expense ledger: it records expenses, reports dues,
// settles balances and nets outstanding entries.
type Ledger struct {
	store     ledgerstore.Store
	users     UserDirectory
	groups    GroupDirectory
	limits    LimitStore
	locker    locks.Locker
	gate      locks.Gate
	publisher events.Publisher
	now       func() time.Time
	timeout   time.Duration
}

type Option func(*Ledger)

func WithLocker(l locks.Locker) Option { return func(s *Ledger) { s.locker = l } }

func WithGate(g locks.Gate) Option { return func(s *Ledger) { s.gate = g } }

func WithPublisher(p events.Publisher) Option { return func(s *Ledger) { s.publisher = p } }

func WithClock(now func() time.Time) Option { return func(s *Ledger) { s.now = now } }

// WithTimeout bounds every public operation, lock waits included.
func WithTimeout(d time.Duration) Option { return func(s *Ledger) { s.timeout = d } }

func NewLedger(store ledgerstore.Store, users UserDirectory, groups GroupDirectory, limits LimitStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:     store,
		users:     users,
		groups:    groups,
		limits:    limits,
		locker:    locks.NewLocal(),
		gate:      locks.NewLocalGate(),
		publisher: events.Nop{},
		now:       time.Now,
		timeout:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// begin applies the operation timeout and starts the duration timer.
func (l *Ledger) begin(ctx context.Context, op string) (context.Context, func()) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	start := time.Now()
	return ctx, func() {
		cancel()
		metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func (l *Ledger) lock(ctx context.Context, key string) (func(), error) {
	unlock, err := l.locker.Lock(ctx, key)
	if err != nil {
		utils.Logger.WithFields(logrus.Fields{"lock": key}).WithError(err).Warn("could not acquire lock")
		return nil, fmt.Errorf("%w: %v", ErrBusy, err)
	}
	return unlock, nil
}

// publish sends events after commit. The ledger is already written, so a
// failure is logged and not returned.
func (l *Ledger) publish(ctx context.Context, evs ...events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()
	if err := l.publisher.Publish(ctx, evs...); err != nil {
		utils.Logger.WithError(err).WithField("events", len(evs)).Error("failed to publish ledger events")
	}
}

func (l *Ledger) today() time.Time {
	return models.Day(l.now().UTC())
}

func (l *Ledger) requireUser(ctx context.Context, id int64, missing error) error {
	ok, err := l.users.UserExists(ctx, id)
	if err != nil {
		return storageError(err, "failed to look up user")
	}
	if !ok {
		return missing
	}
	return nil
}
