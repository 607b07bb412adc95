package core

import "sort"

type (
	// CategoryTotal is one byCategory entry in a session summary.
	CategoryTotal struct {
		CategoryID string `json:"categoryId"`
		Total      Money  `json:"total"`
	}

	// BiggestItem is the single largest line in a session.
	BiggestItem struct {
		Merchant string `json:"merchant"`
		Amount   Money  `json:"amount"`
	}

	// Summary is the derived aggregate of a session's current items. It is a
	// snapshot, not authoritative: recomputed on demand from a fresh item scan.
	Summary struct {
		Total      Money           `json:"total"`
		Count      int             `json:"count"`
		Biggest    *BiggestItem    `json:"biggest"`
		ByCategory []CategoryTotal `json:"byCategory"`
	}
)

// ComputeSummary aggregates items into a summary. Items are expected in the
// store's listing order (most recently created first); among items tied for
// the maximum amount, the first encountered wins, so the most recently
// created item becomes the biggest.
func ComputeSummary(items []BillItem) Summary {
	sum := Summary{
		Count:      len(items),
		ByCategory: []CategoryTotal{},
	}

	byCat := make(map[string]int64)
	var catOrder []string
	for _, it := range items {
		sum.Total.Cents += it.Amount.Cents

		if sum.Biggest == nil || it.Amount.Cents > sum.Biggest.Amount.Cents {
			sum.Biggest = &BiggestItem{Merchant: it.Merchant, Amount: it.Amount}
		}

		if _, seen := byCat[it.CategoryID]; !seen {
			catOrder = append(catOrder, it.CategoryID)
		}
		byCat[it.CategoryID] += it.Amount.Cents
	}

	for _, id := range catOrder {
		sum.ByCategory = append(sum.ByCategory, CategoryTotal{
			CategoryID: id,
			Total:      Money{Cents: byCat[id]},
		})
	}
	sort.SliceStable(sum.ByCategory, func(i, j int) bool {
		return sum.ByCategory[i].Total.Cents > sum.ByCategory[j].Total.Cents
	})

	return sum
}
