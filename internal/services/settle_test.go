package services

import (
	"context"
	"errors"
	"testing"

	"qiyana_splitledger/internal/events"
	"qiyana_splitledger/internal/models"

	"github.com/shopspring/decimal"
)

func TestSettleBalanceExactShare(t *testing.T) {
	f := newFixture(t)
	original := f.seed(t, entry(1, "30.00", yesterday, 1, 2))[0]

	res, err := f.ledger.SettleBalance(context.Background(), 2, 1, d("15.00"))
	if err != nil {
		t.Fatalf("SettleBalance: %v", err)
	}

	if len(res.Consumed) != 1 || res.Consumed[0] != original.ID {
		t.Fatalf("consumed %v, want [%d]", res.Consumed, original.ID)
	}
	if !res.Applied.Equal(d("15")) {
		t.Errorf("applied %s, want 15", res.Applied)
	}

	left := f.entries(t)
	if len(left) != 1 {
		t.Fatalf("got %d entries, want only the residual: %+v", len(left), left)
	}
	residual := left[0]
	if residual.PayerID != 1 || !residual.Amount.Equal(d("15")) || len(residual.Beneficiaries) != 1 || residual.Beneficiaries[0] != 1 {
		t.Errorf("residual %+v", residual)
	}
	if !residual.Date.Equal(today) || residual.Reference != res.Reference {
		t.Errorf("residual not stamped by settlement: %+v", residual)
	}

	dues, _ := f.ledger.ComputeDues(context.Background(), 2)
	if len(dues) != 0 {
		t.Errorf("B still owes after exact settlement: %+v", dues)
	}
	if n := len(f.published.OfType(events.BalanceSettled)); n != 1 {
		t.Errorf("published %d settlement events, want 1", n)
	}
}

func TestSettleBalancePartial(t *testing.T) {
	f := newFixture(t)
	f.seed(t, entry(1, "30.00", yesterday, 1, 2))

	res, err := f.ledger.SettleBalance(context.Background(), 2, 1, d("10.00"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Applied.Equal(d("10")) || len(res.Created) != 2 {
		t.Fatalf("result %+v", res)
	}

	dues, _ := f.ledger.ComputeDues(context.Background(), 2)
	if len(dues) != 1 || dues[0].PayeeID != 1 || !dues[0].Balance.Equal(d("5")) {
		t.Fatalf("dues after partial payment: %+v", dues)
	}
}

func TestSettleBalanceAcrossEntries(t *testing.T) {
	f := newFixture(t)
	f.seed(t,
		entry(1, "20.00", yesterday, 1, 2),
		entry(1, "9.00", yesterday, 1, 2),
		entry(1, "6.00", today, 2, 3),
	)

	res, err := f.ledger.SettleBalance(context.Background(), 2, 1, d("14.50"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Consumed) != 2 || !res.Applied.Equal(d("14.5")) {
		t.Fatalf("result %+v", res)
	}

	dues, _ := f.ledger.ComputeDues(context.Background(), 2)
	if len(dues) != 1 || !dues[0].Balance.Equal(d("3")) {
		t.Fatalf("untouched third entry should remain: %+v", dues)
	}
	dues, _ = f.ledger.ComputeDues(context.Background(), 3)
	if len(dues) != 1 || !dues[0].Balance.Equal(d("3")) {
		t.Fatalf("other beneficiary affected: %+v", dues)
	}
}

func TestSettleBalanceErrors(t *testing.T) {
	tests := []struct {
		name         string
		payer, payee int64
		amount       string
		want         error
	}{
		{"non-positive amount", 2, 1, "0", ErrNonPositiveAmount},
		{"unknown payee", 2, 42, "5", ErrUnknownPayee},
		{"unknown payer", 42, 1, "5", ErrUnknownPayer},
		{"no debt in that direction", 1, 2, "5", ErrNoDebtFound},
		{"no debt at all", 3, 4, "5", ErrNoDebtFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, entry(1, "30.00", yesterday, 1, 2))

			_, err := f.ledger.SettleBalance(context.Background(), tt.payer, tt.payee, d(tt.amount))
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if f.store.Len() != 1 {
				t.Errorf("failed settlement changed the ledger")
			}
		})
	}
}

func TestSettleBalanceRollsBack(t *testing.T) {
	f := newFixture(t)
	before := f.seed(t,
		entry(1, "20.00", yesterday, 1, 2),
		entry(1, "30.00", yesterday, 1, 2, 3),
	)

	// fail on the second entry's residual, after the first was replaced
	inserts := 0
	f.store.OnInsert = func(models.Expense) error {
		inserts++
		if inserts == 2 {
			return errors.New("disk full")
		}
		return nil
	}

	_, err := f.ledger.SettleBalance(context.Background(), 2, 1, d("15.00"))
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("got %v, want ErrStorage", err)
	}

	after := f.entries(t)
	if len(after) != len(before) {
		t.Fatalf("got %d entries, want %d", len(after), len(before))
	}
	for i := range before {
		if after[i].ID != before[i].ID || !after[i].Amount.Equal(before[i].Amount) {
			t.Errorf("entry %d changed: %+v", i, after[i])
		}
	}
}

func TestPlanSettlement(t *testing.T) {
	const payer, payee = 2, 1

	tests := []struct {
		name       string
		entries    []models.Expense
		amount     string
		wantSteps  int
		wantApply  string
		successors [][]models.Expense
	}{
		{
			name:      "exact share leaves residual for payee",
			entries:   []models.Expense{{ID: 1, PayerID: payee, Amount: d("30"), Beneficiaries: []int64{1, 2}}},
			amount:    "15",
			wantSteps: 1,
			wantApply: "15",
			successors: [][]models.Expense{{
				{PayerID: payee, Amount: d("15"), Beneficiaries: []int64{1}},
			}},
		},
		{
			name:      "sole beneficiary has no residual",
			entries:   []models.Expense{{ID: 1, PayerID: payee, Amount: d("12"), Beneficiaries: []int64{2}}},
			amount:    "12",
			wantSteps: 1,
			wantApply: "12",
			successors: [][]models.Expense{nil},
		},
		{
			name:      "short payment leaves micro-debt",
			entries:   []models.Expense{{ID: 1, PayerID: payee, Amount: d("12"), Beneficiaries: []int64{2}}},
			amount:    "5",
			wantSteps: 1,
			wantApply: "5",
			successors: [][]models.Expense{{
				{PayerID: payee, Amount: d("7"), Beneficiaries: []int64{payer}},
			}},
		},
		{
			name:      "leftover within tolerance is forgiven",
			entries:   []models.Expense{{ID: 1, PayerID: payee, Amount: d("12"), Beneficiaries: []int64{2}}},
			amount:    "11.95",
			wantSteps: 1,
			wantApply: "11.95",
			successors: [][]models.Expense{nil},
		},
		{
			name: "stops once payment is used up",
			entries: []models.Expense{
				{ID: 1, PayerID: payee, Amount: d("10"), Beneficiaries: []int64{2}},
				{ID: 2, PayerID: payee, Amount: d("10"), Beneficiaries: []int64{2}},
			},
			amount:     "10",
			wantSteps:  1,
			wantApply:  "10",
			successors: [][]models.Expense{nil},
		},
		{
			name: "overpayment stops at last entry",
			entries: []models.Expense{
				{ID: 1, PayerID: payee, Amount: d("10"), Beneficiaries: []int64{2}},
				{ID: 2, PayerID: payee, Amount: d("9"), Beneficiaries: []int64{2, 3, 1}},
			},
			amount:    "50",
			wantSteps: 2,
			wantApply: "13",
			successors: [][]models.Expense{nil, {
				{PayerID: payee, Amount: d("6"), Beneficiaries: []int64{3, 1}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps := planSettlement(tt.entries, payer, payee, d(tt.amount))
			if len(steps) != tt.wantSteps {
				t.Fatalf("got %d steps, want %d", len(steps), tt.wantSteps)
			}

			applied := decimal.Zero
			for i, step := range steps {
				applied = applied.Add(step.applied)
				want := tt.successors[i]
				if len(step.successors) != len(want) {
					t.Fatalf("step %d: got successors %+v, want %+v", i, step.successors, want)
				}
				for j := range want {
					got := step.successors[j]
					if got.PayerID != want[j].PayerID || !got.Amount.Equal(want[j].Amount) || !sameIDs(got.Beneficiaries, want[j].Beneficiaries) {
						t.Errorf("step %d successor %d: got %+v, want %+v", i, j, got, want[j])
					}
				}
			}
			if !applied.Equal(d(tt.wantApply)) {
				t.Errorf("applied %s, want %s", applied, tt.wantApply)
			}
		})
	}
}

func sameIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
