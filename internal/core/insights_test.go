package core

import "testing"

func monthTxs() []Transaction {
	return []Transaction{
		{Type: Expense, Amount: Money{Cents: 10000}, CategoryID: "food"},
		{Type: Expense, Amount: Money{Cents: 5000}, CategoryID: "food"},
		{Type: Expense, Amount: Money{Cents: 25000}, CategoryID: "transport"},
		{Type: Income, Amount: Money{Cents: 100000}, CategoryID: "other"},
	}
}

func TestSpentByCategory(t *testing.T) {
	spent := SpentByCategory(monthTxs())
	if len(spent) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(spent))
	}
	if spent["food"].Cents != 15000 {
		t.Fatalf("food = %d, want 15000", spent["food"].Cents)
	}
	if spent["transport"].Cents != 25000 {
		t.Fatalf("transport = %d, want 25000", spent["transport"].Cents)
	}
	if _, ok := spent["other"]; ok {
		t.Fatalf("income must not appear in spend map")
	}
}

func TestTotalIncomeExpense(t *testing.T) {
	tot := TotalIncomeExpense(monthTxs())
	if tot.Income.Cents != 100000 {
		t.Fatalf("income = %d", tot.Income.Cents)
	}
	if tot.Expense.Cents != 40000 {
		t.Fatalf("expense = %d", tot.Expense.Cents)
	}
	if tot.Net.Cents != 60000 {
		t.Fatalf("net = %d", tot.Net.Cents)
	}
}
