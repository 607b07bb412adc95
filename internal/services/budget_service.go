package services

import (
	"context"
	"fmt"

	"finanze/internal/core"
	"finanze/internal/store"
)

// BudgetService manages per-month, per-category spending limits. A budget's
// id is deterministic (monthKey_categoryID), so setting the same pair twice
// updates in place.
type BudgetService struct {
	store store.Store
}

func NewBudgetService(st store.Store) *BudgetService {
	return &BudgetService{store: st}
}

func (s *BudgetService) Upsert(ctx context.Context, userID, monthKey, categoryID string, limit core.Money) (*core.Budget, error) {
	b := core.Budget{
		MonthKey:   monthKey,
		CategoryID: categoryID,
		Limit:      limit,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.UpsertBudget(ctx, userID, &b); err != nil {
		return nil, fmt.Errorf("upsert budget: %w", err)
	}
	return &b, nil
}

func (s *BudgetService) ListForMonth(ctx context.Context, userID, monthKey string) ([]core.Budget, error) {
	if !core.ValidMonthKey(monthKey) {
		return nil, core.ErrInvalidMonthKey
	}
	budgets, err := s.store.ListBudgetsForMonth(ctx, userID, monthKey)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}
