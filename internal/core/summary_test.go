package core

import "testing"

// Items are listed most recently created first, matching ListItems order.
func sessionItems() []BillItem {
	return []BillItem{
		{ID: "i3", Merchant: "C", Amount: Money{Cents: 5000}, CategoryID: "food", Date: date(2025, 3, 3)},
		{ID: "i2", Merchant: "B", Amount: Money{Cents: 25000}, CategoryID: "transport", Date: date(2025, 3, 2)},
		{ID: "i1", Merchant: "A", Amount: Money{Cents: 10000}, CategoryID: "food", Date: date(2025, 3, 1)},
	}
}

func TestComputeSummary(t *testing.T) {
	sum := ComputeSummary(sessionItems())

	if sum.Total.Cents != 40000 {
		t.Fatalf("total = %d, want 40000", sum.Total.Cents)
	}
	if sum.Count != 3 {
		t.Fatalf("count = %d, want 3", sum.Count)
	}
	if sum.Biggest == nil || sum.Biggest.Merchant != "B" || sum.Biggest.Amount.Cents != 25000 {
		t.Fatalf("biggest = %+v, want B/25000", sum.Biggest)
	}

	want := []CategoryTotal{
		{CategoryID: "transport", Total: Money{Cents: 25000}},
		{CategoryID: "food", Total: Money{Cents: 15000}},
	}
	if len(sum.ByCategory) != len(want) {
		t.Fatalf("byCategory = %+v, want %+v", sum.ByCategory, want)
	}
	for i := range want {
		if sum.ByCategory[i] != want[i] {
			t.Fatalf("byCategory[%d] = %+v, want %+v", i, sum.ByCategory[i], want[i])
		}
	}
}

func TestComputeSummaryEmpty(t *testing.T) {
	sum := ComputeSummary(nil)
	if sum.Total.Cents != 0 || sum.Count != 0 {
		t.Fatalf("expected zeroed summary, got %+v", sum)
	}
	if sum.Biggest != nil {
		t.Fatalf("biggest should be nil for empty session")
	}
	if sum.ByCategory == nil || len(sum.ByCategory) != 0 {
		t.Fatalf("byCategory should be an empty, non-nil list")
	}
}

// Among items tied for the maximum amount, the most recently created one
// (first in listing order) must win.
func TestComputeSummaryBiggestTie(t *testing.T) {
	items := []BillItem{
		{ID: "newer", Merchant: "Newer", Amount: Money{Cents: 500}, CategoryID: "food"},
		{ID: "older", Merchant: "Older", Amount: Money{Cents: 500}, CategoryID: "food"},
	}
	sum := ComputeSummary(items)
	if sum.Biggest.Merchant != "Newer" {
		t.Fatalf("tie should keep most recent item, got %q", sum.Biggest.Merchant)
	}
}

func TestComputeSummarySortsByTotalDescending(t *testing.T) {
	items := []BillItem{
		{Merchant: "a", Amount: Money{Cents: 100}, CategoryID: "small"},
		{Merchant: "b", Amount: Money{Cents: 900}, CategoryID: "big"},
		{Merchant: "c", Amount: Money{Cents: 500}, CategoryID: "mid"},
	}
	sum := ComputeSummary(items)
	for i := 1; i < len(sum.ByCategory); i++ {
		if sum.ByCategory[i-1].Total.Cents < sum.ByCategory[i].Total.Cents {
			t.Fatalf("byCategory not sorted descending: %+v", sum.ByCategory)
		}
	}
}
