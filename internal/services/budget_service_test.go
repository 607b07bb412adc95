package services

import (
	"context"
	"errors"
	"testing"

	"finanze/internal/core"
	"finanze/internal/store/memory"
)

func TestBudgetUpsert(t *testing.T) {
	svc := NewBudgetService(memory.New())
	ctx := context.Background()

	if _, err := svc.Upsert(ctx, "u1", "2026-2", "food", core.Money{Cents: 100}); !errors.Is(err, core.ErrInvalidMonthKey) {
		t.Errorf("bad monthKey: got %v", err)
	}
	if _, err := svc.Upsert(ctx, "u1", "2026-02", " ", core.Money{Cents: 100}); !errors.Is(err, core.ErrEmptyCategory) {
		t.Errorf("blank category: got %v", err)
	}
	if _, err := svc.Upsert(ctx, "u1", "2026-02", "food", core.Money{Cents: -1}); !errors.Is(err, core.ErrInvalidLimit) {
		t.Errorf("negative limit: got %v", err)
	}

	b, err := svc.Upsert(ctx, "u1", "2026-02", "food", core.Money{Cents: 50000})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if b.ID != "2026-02_food" {
		t.Errorf("id = %q, want deterministic 2026-02_food", b.ID)
	}

	// Same month+category updates in place.
	if _, err := svc.Upsert(ctx, "u1", "2026-02", "food", core.Money{Cents: 75000}); err != nil {
		t.Fatalf("Upsert update: %v", err)
	}

	budgets, err := svc.ListForMonth(ctx, "u1", "2026-02")
	if err != nil {
		t.Fatalf("ListForMonth: %v", err)
	}
	if len(budgets) != 1 {
		t.Fatalf("upsert duplicated the budget: %d rows", len(budgets))
	}
	if budgets[0].Limit.Cents != 75000 {
		t.Errorf("limit = %d, want 75000", budgets[0].Limit.Cents)
	}
	if budgets[0].CreatedAt.IsZero() {
		t.Error("createdAt lost on update")
	}

	// A zero limit is a valid "spend nothing" budget.
	if _, err := svc.Upsert(ctx, "u1", "2026-02", "entertainment", core.Money{}); err != nil {
		t.Errorf("zero limit rejected: %v", err)
	}
}
