package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"qiyana_splitledger/internal/events"
	"qiyana_splitledger/internal/models"
	"qiyana_splitledger/internal/repositories/directory"
	"qiyana_splitledger/internal/repositories/ledgerstore"

	"github.com/shopspring/decimal"
)

var (
	now       = time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC)
	today     = models.Day(now)
	yesterday = today.AddDate(0, 0, -1)
)

type fixture struct {
	ledger    *Ledger
	store     *ledgerstore.MemoryStore
	dir       *directory.Memory
	published *events.Recorder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:     ledgerstore.NewMemoryStore(),
		dir:       directory.NewMemory().AddUsers(1, 2, 3, 4),
		published: &events.Recorder{},
	}
	opts = append([]Option{WithClock(func() time.Time { return now }), WithPublisher(f.published)}, opts...)
	f.ledger = NewLedger(f.store, f.dir, f.dir, f.dir, opts...)
	return f
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// seed writes entries straight to the store, bypassing validation.
func (f *fixture) seed(t *testing.T, entries ...models.Expense) []models.Expense {
	t.Helper()
	var stored []models.Expense
	err := f.store.WithTx(context.Background(), func(tx ledgerstore.Tx) error {
		for _, e := range entries {
			id, err := tx.Insert(context.Background(), e)
			if err != nil {
				return err
			}
			e.ID = id
			stored = append(stored, e)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return stored
}

func (f *fixture) entries(t *testing.T) []models.Expense {
	t.Helper()
	all, err := f.store.QueryUnsettled(context.Background(), ledgerstore.AllUnsettled())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	return all
}

func entry(payer int64, amount string, date time.Time, beneficiaries ...int64) models.Expense {
	return models.Expense{PayerID: payer, Amount: d(amount), Date: date, Beneficiaries: beneficiaries}
}

// balances is what each user is owed minus what they owe.
func balances(entries []models.Expense) map[int64]decimal.Decimal {
	bal := make(map[int64]decimal.Decimal)
	for _, e := range entries {
		share := e.Share()
		for _, b := range e.Beneficiaries {
			if b == e.PayerID {
				continue
			}
			bal[e.PayerID] = bal[e.PayerID].Add(share)
			bal[b] = bal[b].Sub(share)
		}
	}
	return bal
}

func TestRecordExpenseValidation(t *testing.T) {
	group := int64(7)
	empty := int64(8)
	missing := int64(99)

	tests := []struct {
		name string
		req  ExpenseRequest
		want error
	}{
		{"zero amount", ExpenseRequest{PayerID: 1, Amount: d("0"), Beneficiaries: []int64{2}}, ErrNonPositiveAmount},
		{"negative amount", ExpenseRequest{PayerID: 1, Amount: d("-3"), Beneficiaries: []int64{2}}, ErrNonPositiveAmount},
		{"rounds to zero", ExpenseRequest{PayerID: 1, Amount: d("0.004"), Beneficiaries: []int64{2}}, ErrNonPositiveAmount},
		{"unknown payer", ExpenseRequest{PayerID: 42, Amount: d("10"), Beneficiaries: []int64{2}}, ErrUnknownPayer},
		{"unknown beneficiary", ExpenseRequest{PayerID: 1, Amount: d("10"), Beneficiaries: []int64{2, 42}}, ErrUnknownUser},
		{"unknown group", ExpenseRequest{PayerID: 1, Amount: d("10"), GroupID: &missing}, ErrUnknownGroup},
		{"no beneficiaries", ExpenseRequest{PayerID: 1, Amount: d("10")}, ErrNoBeneficiaries},
		{"empty group only", ExpenseRequest{PayerID: 1, Amount: d("10"), GroupID: &empty}, ErrNoBeneficiaries},
		{"group ok", ExpenseRequest{PayerID: 1, Amount: d("10"), GroupID: &group}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.dir.AddGroup(models.Group{ID: group, Members: []int64{2, 3}}).AddGroup(models.Group{ID: empty})

			_, err := f.ledger.RecordExpense(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if tt.want != nil && f.store.Len() != 0 {
				t.Errorf("rejected expense left %d entries", f.store.Len())
			}
		})
	}
}

func TestRecordExpenseKinds(t *testing.T) {
	if !errors.Is(ErrNoBeneficiaries, ErrValidation) || !errors.Is(ErrUnknownGroup, ErrUnknownReference) {
		t.Fatal("sentinels must carry their kind")
	}
	if errors.Is(ErrUnknownPayer, ErrValidation) {
		t.Fatal("a sentinel must match only its own kind")
	}
}

func TestRecordExpenseGroupUnion(t *testing.T) {
	f := newFixture(t)
	f.dir.AddGroup(models.Group{ID: 7, Members: []int64{2, 3}})
	group := int64(7)

	got, err := f.ledger.RecordExpense(context.Background(), ExpenseRequest{
		PayerID:       1,
		Amount:        d("30"),
		Beneficiaries: []int64{1, 2},
		GroupID:       &group,
		Description:   "dinner",
	})
	if err != nil {
		t.Fatalf("RecordExpense: %v", err)
	}

	want := []int64{1, 2, 3}
	if len(got.Beneficiaries) != len(want) {
		t.Fatalf("beneficiaries: got %v, want %v", got.Beneficiaries, want)
	}
	for i := range want {
		if got.Beneficiaries[i] != want[i] {
			t.Fatalf("beneficiaries: got %v, want %v", got.Beneficiaries, want)
		}
	}
	if !got.Date.Equal(today) {
		t.Errorf("date defaulted to %v, want %v", got.Date, today)
	}
	if got.ID == 0 || got.Reference == "" {
		t.Errorf("expense not stamped: %+v", got)
	}
	if n := len(f.published.OfType(events.ExpenseRecorded)); n != 1 {
		t.Errorf("published %d expense events, want 1", n)
	}
}

func TestDailyLimitBoundary(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		date    time.Time
		wantErr bool
	}{
		{"reaches limit exactly", "5.00", today, false},
		{"one cent over", "5.01", today, true},
		{"other day is separate", "19.00", yesterday, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if err := f.ledger.CreateSpendingLimit(context.Background(), d("20")); err != nil {
				t.Fatalf("CreateSpendingLimit: %v", err)
			}
			f.seed(t, entry(1, "15.00", today, 2))

			_, err := f.ledger.RecordExpense(context.Background(), ExpenseRequest{
				PayerID: 1, Amount: d(tt.amount), Date: tt.date, Beneficiaries: []int64{2},
			})
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("RecordExpense: %v", err)
				}
				return
			}

			var limitErr *LimitExceededError
			if !errors.As(err, &limitErr) || !errors.Is(err, ErrPrecondition) {
				t.Fatalf("got %v, want LimitExceededError", err)
			}
			if limitErr.Error() != "you have reached your daily limit of 20.00" {
				t.Errorf("message: %q", limitErr.Error())
			}
			if f.store.Len() != 1 {
				t.Errorf("rejected expense was written")
			}
		})
	}
}

func TestDailyLimitOnlyCountsPayer(t *testing.T) {
	f := newFixture(t)
	if err := f.ledger.CreateSpendingLimit(context.Background(), d("10")); err != nil {
		t.Fatal(err)
	}
	f.seed(t, entry(2, "10.00", today, 1))

	if err := f.ledger.CheckDailyLimit(context.Background(), 1, today, d("10")); err != nil {
		t.Fatalf("spend by another payer counted: %v", err)
	}
	if err := f.ledger.CheckDailyLimit(context.Background(), 2, today, d("0.01")); err == nil {
		t.Fatal("expected limit error")
	}
}

func TestSpendingLimitAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, ok, _ := f.ledger.SpendingLimit(ctx); ok {
		t.Fatal("fresh ledger has a limit")
	}
	if err := f.ledger.CreateSpendingLimit(ctx, d("50")); err != nil {
		t.Fatal(err)
	}
	if err := f.ledger.CreateSpendingLimit(ctx, d("60")); !errors.Is(err, ErrLimitExists) {
		t.Fatalf("second create: got %v, want ErrLimitExists", err)
	}
	if err := f.ledger.UpsertSpendingLimit(ctx, d("75.555")); err != nil {
		t.Fatal(err)
	}
	limit, _, _ := f.ledger.SpendingLimit(ctx)
	if !limit.Equal(d("75.56")) {
		t.Errorf("limit: got %s, want 75.56", limit)
	}
	if err := f.ledger.UpsertSpendingLimit(ctx, d("0")); !errors.Is(err, ErrNonPositiveAmount) {
		t.Errorf("zero limit: got %v", err)
	}
	if err := f.ledger.RemoveSpendingLimit(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.ledger.RemoveSpendingLimit(ctx); !errors.Is(err, ErrLimitNotFound) {
		t.Fatalf("second remove: got %v, want ErrLimitNotFound", err)
	}
}

func TestComputeDuesKeepsDirectionsApart(t *testing.T) {
	f := newFixture(t)
	f.seed(t,
		entry(1, "10", today, 1, 2),
		entry(2, "10", today, 1, 2),
	)

	dues, err := f.ledger.ComputeDues(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(dues) != 2 {
		t.Fatalf("got %d rows, want 2: %+v", len(dues), dues)
	}

	want := map[[2]int64]string{{1, 2}: "5", {2, 1}: "5"}
	for _, row := range dues {
		amount, ok := want[[2]int64{row.PayerID, row.PayeeID}]
		if !ok || !row.Balance.Equal(d(amount)) {
			t.Errorf("unexpected row %+v", row)
		}
	}
}

func TestComputeDuesAggregates(t *testing.T) {
	f := newFixture(t)
	f.seed(t,
		entry(1, "30", today, 1, 2, 3),
		entry(1, "8", yesterday, 2),
		entry(3, "6", today, 1, 3),
		entry(4, "12", today, 2, 3),
	)

	dues, err := f.ledger.ComputeDues(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}

	got := make(map[[2]int64]decimal.Decimal)
	for _, row := range dues {
		got[[2]int64{row.PayerID, row.PayeeID}] = row.Balance
	}
	want := map[[2]int64]string{{2, 1}: "18", {3, 1}: "10", {1, 3}: "3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if !got[k].Equal(d(v)) {
			t.Errorf("%v: got %s, want %s", k, got[k], v)
		}
	}
}

func TestComputeDuesByEmail(t *testing.T) {
	f := newFixture(t)
	f.dir.AddUser(models.User{ID: 5, Email: "Ada@Example.com", FirstName: "Ada"})
	f.seed(t, entry(1, "10", today, 5))

	dues, err := f.ledger.ComputeDuesByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(dues) != 1 || dues[0].PayerID != 5 || !dues[0].Balance.Equal(d("10")) {
		t.Fatalf("got %+v", dues)
	}

	if _, err := f.ledger.ComputeDuesByEmail(context.Background(), "nobody@example.com"); !errors.Is(err, ErrUnknownEmail) {
		t.Fatalf("got %v, want ErrUnknownEmail", err)
	}
}

func TestStorageErrorMapping(t *testing.T) {
	err := storageError(ledgerstore.ErrConflict, "delete")
	if !errors.Is(err, ErrEntryChanged) || !IsRetryable(err) {
		t.Errorf("conflict mapped to %v", err)
	}

	err = storageError(errors.New("disk full"), "insert")
	if !errors.Is(err, ErrStorage) || IsRetryable(err) {
		t.Errorf("plain failure mapped to %v", err)
	}

	if err := storageError(ErrNoDebtFound, "settle"); err != ErrNoDebtFound {
		t.Errorf("kinded error rewrapped: %v", err)
	}
}
