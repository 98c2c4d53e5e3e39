package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestExpenseShare(t *testing.T) {
	tests := []struct {
		name          string
		amount        string
		beneficiaries []int64
		want          string
	}{
		{"even split", "30.00", []int64{1, 2}, "15"},
		{"thirds round down", "10.00", []int64{1, 2, 3}, "3.33"},
		{"thirds round up", "20.00", []int64{1, 2, 3}, "6.67"},
		{"half cent rounds away from zero", "0.05", []int64{1, 2}, "0.03"},
		{"single beneficiary", "12.34", []int64{7}, "12.34"},
		{"no beneficiaries", "12.34", nil, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Expense{Amount: decimal.RequireFromString(tt.amount), Beneficiaries: tt.beneficiaries}
			if got := e.Share(); !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Share: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestShareRoundingBound(t *testing.T) {
	half := decimal.RequireFromString("0.005")
	for cents := int64(1); cents <= 5000; cents += 37 {
		for n := 1; n <= 9; n++ {
			e := Expense{Amount: decimal.New(cents, -2), Beneficiaries: make([]int64, n)}
			drift := e.Share().Mul(decimal.NewFromInt(int64(n))).Sub(e.Amount).Abs()
			bound := half.Mul(decimal.NewFromInt(int64(n)))
			if drift.GreaterThan(bound) {
				t.Fatalf("amount %s split %d: drift %s exceeds %s", e.Amount, n, drift, bound)
			}
		}
	}
}

func TestBeneficiariesWithout(t *testing.T) {
	e := Expense{Beneficiaries: []int64{4, 2, 9}}
	got := e.BeneficiariesWithout(2)
	if len(got) != 2 || got[0] != 4 || got[1] != 9 {
		t.Errorf("got %v, want [4 9]", got)
	}
	if len(e.Beneficiaries) != 3 {
		t.Errorf("original mutated: %v", e.Beneficiaries)
	}
	if e.HasBeneficiary(3) || !e.HasBeneficiary(9) {
		t.Errorf("HasBeneficiary mismatch for %v", e.Beneficiaries)
	}
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	in := time.Date(2024, 3, 9, 23, 45, 0, 0, loc)
	want := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	if got := Day(in); !got.Equal(want) {
		t.Errorf("Day: got %s, want %s", got, want)
	}
}
