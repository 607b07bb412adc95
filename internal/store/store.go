// Package store defines the persistence port for the finance tracker.
//
// All state is namespaced per user. Backends must provide per-document
// atomic writes, an atomic numeric increment on a single field, and an
// all-or-nothing batch used by session conversion.
package store

import (
	"context"
	"errors"
	"time"

	"finanze/internal/core"
)

var (
	// ErrNotFound is returned when a referenced document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyConverted is returned by backends when the conversion batch
	// loses the compare-and-swap on convertedToTransactions. Callers treat
	// it as a benign outcome, never as a failure.
	ErrAlreadyConverted = errors.New("session already converted")
)

// Store is the storage interface shared by the memory, sqlite and mongo
// backends. Swapping backends must not change observable semantics.
type Store interface {
	// Profiles
	GetProfile(ctx context.Context, userID string) (*core.Profile, error)
	CreateProfile(ctx context.Context, p *core.Profile) error
	// UpdateCategories replaces the profile's category list in one write.
	UpdateCategories(ctx context.Context, userID string, cats []core.Category) error

	// Bill sessions. InsertItem and DeleteItem perform the item write and
	// the itemCount adjustment as two separate writes; the counter is a
	// cache reconciled by SaveSummary, which persists itemCount from a
	// true item scan.
	CreateSession(ctx context.Context, userID string, s *core.BillSession) (string, error)
	GetSession(ctx context.Context, userID, sessionID string) (*core.BillSession, error)
	ListSessions(ctx context.Context, userID string, limit int) ([]core.BillSession, error)
	InsertItem(ctx context.Context, userID, sessionID string, it *core.BillItem) (string, error)
	DeleteItem(ctx context.Context, userID, sessionID, itemID string) error
	// ListItems returns a full snapshot ordered by creation time
	// descending (most recently added first).
	ListItems(ctx context.Context, userID, sessionID string) ([]core.BillItem, error)
	// SaveSummary persists itemCount=sum.Count and the summary snapshot in
	// a single write. With close=true it also sets closedAt, but only if
	// the session is not closed yet; closedAt is set-once.
	SaveSummary(ctx context.Context, userID, sessionID string, sum core.Summary, close bool, at time.Time) error
	// ConvertSession creates all transactions and marks the session
	// converted in one atomic batch. The converted flag write is
	// conditional on convertedToTransactions still being false; if the
	// precondition fails the batch does nothing and ErrAlreadyConverted
	// is returned. ConvertedAt and, when still open, closedAt are set to at.
	ConvertSession(ctx context.Context, userID, sessionID string, txs []core.Transaction, at time.Time) error

	// Transactions
	CreateTransaction(ctx context.Context, userID string, tx *core.Transaction) (string, error)
	ListTransactionsForMonth(ctx context.Context, userID, monthKey string) ([]core.Transaction, error)
	ListTransactionsBySession(ctx context.Context, userID, sessionID string) ([]core.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, txID string, patch core.TransactionPatch, at time.Time) error
	DeleteTransaction(ctx context.Context, userID, txID string) error

	// Budgets
	UpsertBudget(ctx context.Context, userID string, b *core.Budget) error
	ListBudgetsForMonth(ctx context.Context, userID, monthKey string) ([]core.Budget, error)

	// Goals
	CreateGoal(ctx context.Context, userID string, g *core.Goal) (string, error)
	ListGoals(ctx context.Context, userID string) ([]core.Goal, error)
	UpdateGoal(ctx context.Context, userID, goalID string, patch core.GoalPatch, at time.Time) error
	DeleteGoal(ctx context.Context, userID, goalID string) error
	// DepositToGoal atomically increments currentAmount.
	DepositToGoal(ctx context.Context, userID, goalID string, amount core.Money, at time.Time) error

	Ping(ctx context.Context) error
	Close() error
}
