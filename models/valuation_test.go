package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNextWeightedAverage_EqualLots(t *testing.T) {
	qty, cost := NextWeightedAverage(dec("50"), dec("2.00"), dec("50"), dec("4.00"))
	if qty.Cmp(dec("100")) != 0 {
		t.Fatalf("expected qty=100; got %s", qty.String())
	}
	if cost.Cmp(dec("3.00")) != 0 {
		t.Fatalf("expected avg cost=3.00; got %s", cost.String())
	}
}

func TestNextWeightedAverage_ZeroStartingStock(t *testing.T) {
	qty, cost := NextWeightedAverage(decimal.Zero, decimal.Zero, dec("20"), dec("5.00"))
	if qty.Cmp(dec("20")) != 0 {
		t.Fatalf("expected qty=20; got %s", qty.String())
	}
	// First receipt into empty stock must take the incoming cost as-is.
	if cost.Cmp(dec("5.00")) != 0 {
		t.Fatalf("expected avg cost=5.00; got %s", cost.String())
	}
}

func TestNextWeightedAverage_FlourRestock(t *testing.T) {
	// 50kg on hand at 2.50, receive 30kg at 3.00: (125 + 90) / 80 = 2.6875.
	qty, cost := NextWeightedAverage(dec("50"), dec("2.50"), dec("30"), dec("3.00"))
	if qty.Cmp(dec("80")) != 0 {
		t.Fatalf("expected qty=80; got %s", qty.String())
	}
	if cost.Cmp(dec("2.6875")) != 0 {
		t.Fatalf("expected avg cost=2.6875; got %s", cost.String())
	}
}

func TestNextWeightedAverage_SequentialReceiptsAccumulate(t *testing.T) {
	qty, cost := decimal.Zero, decimal.Zero
	receipts := []struct{ q, c string }{
		{"10", "1.00"},
		{"10", "2.00"},
		{"20", "3.50"},
	}
	for _, r := range receipts {
		qty, cost = NextWeightedAverage(qty, cost, dec(r.q), dec(r.c))
	}
	if qty.Cmp(dec("40")) != 0 {
		t.Fatalf("expected qty=40; got %s", qty.String())
	}
	// (10 + 20 + 70) / 40 = 2.5
	if cost.Cmp(dec("2.5")) != 0 {
		t.Fatalf("expected avg cost=2.5; got %s", cost.String())
	}
}

func TestNextWeightedAverage_NonPositiveTotalTakesIncomingCost(t *testing.T) {
	// Degenerate ledger state (negative on-hand) must not divide by zero or
	// produce a negative average.
	qty, cost := NextWeightedAverage(dec("-5"), dec("2.00"), dec("5"), dec("3.00"))
	if !qty.IsZero() {
		t.Fatalf("expected qty=0; got %s", qty.String())
	}
	if cost.Cmp(dec("3.00")) != 0 {
		t.Fatalf("expected avg cost=3.00; got %s", cost.String())
	}
}

func TestNextWeightedAverage_ValueConservation(t *testing.T) {
	// total value before + receipt value == qty * new average.
	currentQty, currentCost := dec("33"), dec("1.37")
	addedQty, addedCost := dec("7.25"), dec("4.19")

	newQty, newCost := NextWeightedAverage(currentQty, currentCost, addedQty, addedCost)

	wantValue := currentQty.Mul(currentCost).Add(addedQty.Mul(addedCost))
	gotValue := newQty.Mul(newCost)
	if !wantValue.Sub(gotValue).Abs().LessThan(dec("0.0000000001")) {
		t.Fatalf("value not conserved: want %s; got %s", wantValue.String(), gotValue.String())
	}
}
