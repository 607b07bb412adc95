package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finanze/internal/core"
	"finanze/internal/store"
)

// GoalService manages savings goals and their running balance.
type GoalService struct {
	store store.Store
}

func NewGoalService(st store.Store) *GoalService {
	return &GoalService{store: st}
}

type CreateGoalInput struct {
	Name         string
	TargetAmount core.Money
	Deadline     *time.Time
}

func (s *GoalService) Create(ctx context.Context, userID string, in CreateGoalInput) (*core.Goal, error) {
	g := core.Goal{
		Name:         strings.TrimSpace(in.Name),
		TargetAmount: in.TargetAmount,
		Deadline:     in.Deadline,
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	id, err := s.store.CreateGoal(ctx, userID, &g)
	if err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}
	g.ID = id
	return &g, nil
}

func (s *GoalService) List(ctx context.Context, userID string) ([]core.Goal, error) {
	goals, err := s.store.ListGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return goals, nil
}

func (s *GoalService) Update(ctx context.Context, userID, goalID string, patch core.GoalPatch) error {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return core.ErrEmptyGoalName
	}
	if patch.TargetAmount != nil && patch.TargetAmount.Cents <= 0 {
		return core.ErrInvalidTarget
	}
	// Normalize here so every backend persists the same value.
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}

	if err := s.store.UpdateGoal(ctx, userID, goalID, patch, time.Now()); err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	return nil
}

func (s *GoalService) Delete(ctx context.Context, userID, goalID string) error {
	if err := s.store.DeleteGoal(ctx, userID, goalID); err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return nil
}

// Deposit adds to the goal's current balance with an atomic increment.
func (s *GoalService) Deposit(ctx context.Context, userID, goalID string, amount core.Money) error {
	if amount.Cents <= 0 {
		return core.ErrInvalidDeposit
	}
	if err := s.store.DepositToGoal(ctx, userID, goalID, amount, time.Now()); err != nil {
		return fmt.Errorf("deposit to goal: %w", err)
	}
	return nil
}
