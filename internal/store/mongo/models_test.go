package mongo

import (
	"reflect"
	"testing"

	"finanze/internal/core"
)

func TestSummaryModelRoundTrip(t *testing.T) {
	sum := core.Summary{
		Total: core.Money{Cents: 5750},
		Count: 2,
		Biggest: &core.BiggestItem{
			Merchant: "Keells",
			Amount:   core.Money{Cents: 4550},
		},
		ByCategory: []core.CategoryTotal{
			{CategoryID: "food", Total: core.Money{Cents: 4550}},
			{CategoryID: "transport", Total: core.Money{Cents: 1200}},
		},
	}

	got := fromSummaryModel(toSummaryModel(sum))
	if !reflect.DeepEqual(got, sum) {
		t.Errorf("round trip = %+v, want %+v", got, sum)
	}
}

func TestSummaryModelNoBiggest(t *testing.T) {
	sum := core.Summary{ByCategory: []core.CategoryTotal{}}

	got := fromSummaryModel(toSummaryModel(sum))
	if got.Biggest != nil {
		t.Errorf("biggest = %+v, want nil", got.Biggest)
	}
	if got.Count != 0 || got.Total.Cents != 0 {
		t.Errorf("round trip = %+v", got)
	}
}
