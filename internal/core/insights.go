package core

type (
	// MonthTotals is the income/expense/net breakdown for one month.
	MonthTotals struct {
		Income  Money `json:"income"`
		Expense Money `json:"expense"`
		Net     Money `json:"net"`
	}
)

// SpentByCategory sums expense transactions per category. Income is ignored.
func SpentByCategory(txs []Transaction) map[string]Money {
	out := make(map[string]Money)
	for _, t := range txs {
		if t.Type != Expense {
			continue
		}
		m := out[t.CategoryID]
		m.Cents += t.Amount.Cents
		out[t.CategoryID] = m
	}
	return out
}

// TotalIncomeExpense computes month totals over a transaction list.
// Anything that is not income counts as expense.
func TotalIncomeExpense(txs []Transaction) MonthTotals {
	var tot MonthTotals
	for _, t := range txs {
		if t.Type == Income {
			tot.Income.Cents += t.Amount.Cents
		} else {
			tot.Expense.Cents += t.Amount.Cents
		}
	}
	tot.Net.Cents = tot.Income.Cents - tot.Expense.Cents
	return tot
}
