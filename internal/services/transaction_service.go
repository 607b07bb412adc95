package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finanze/internal/core"
	"finanze/internal/store"
)

// TransactionService manages the permanent ledger of transactions,
// including the ones produced by session conversion.
type TransactionService struct {
	store store.Store
}

func NewTransactionService(st store.Store) *TransactionService {
	return &TransactionService{store: st}
}

type CreateTransactionInput struct {
	Type       core.TxType
	Amount     core.Money
	CategoryID string
	Note       string
	Date       time.Time
}

func (s *TransactionService) Create(ctx context.Context, userID string, in CreateTransactionInput) (*core.Transaction, error) {
	now := time.Now()
	tx := core.Transaction{
		Type:       in.Type,
		Amount:     in.Amount,
		CategoryID: in.CategoryID,
		Note:       strings.TrimSpace(in.Note),
		Date:       in.Date,
		MonthKey:   core.MonthKey(in.Date),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	id, err := s.store.CreateTransaction(ctx, userID, &tx)
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	tx.ID = id
	return &tx, nil
}

func (s *TransactionService) ListForMonth(ctx context.Context, userID, monthKey string) ([]core.Transaction, error) {
	if !core.ValidMonthKey(monthKey) {
		return nil, core.ErrInvalidMonthKey
	}
	txs, err := s.store.ListTransactionsForMonth(ctx, userID, monthKey)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *TransactionService) ListBySession(ctx context.Context, userID, sessionID string) ([]core.Transaction, error) {
	txs, err := s.store.ListTransactionsBySession(ctx, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session transactions: %w", err)
	}
	return txs, nil
}

// Update applies a partial patch. A date change rederives the monthKey, so
// the transaction moves between month buckets.
func (s *TransactionService) Update(ctx context.Context, userID, txID string, patch core.TransactionPatch) error {
	if patch.Type != nil {
		if err := patch.Type.Validate(); err != nil {
			return err
		}
	}
	if patch.Amount != nil {
		if err := patch.Amount.Validate(); err != nil {
			return err
		}
	}
	if patch.CategoryID != nil && strings.TrimSpace(*patch.CategoryID) == "" {
		return core.ErrEmptyCategory
	}
	if patch.Date != nil && patch.Date.IsZero() {
		return core.ErrZeroDate
	}
	// Normalize here so every backend persists the same value.
	if patch.Note != nil {
		note := strings.TrimSpace(*patch.Note)
		patch.Note = &note
	}

	if err := s.store.UpdateTransaction(ctx, userID, txID, patch, time.Now()); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

func (s *TransactionService) Delete(ctx context.Context, userID, txID string) error {
	if err := s.store.DeleteTransaction(ctx, userID, txID); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}
