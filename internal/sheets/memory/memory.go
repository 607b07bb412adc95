// Package memory is an in-memory TransactionAppender used in tests and
// when no spreadsheet is configured.
package memory

import (
	"context"
	"sync"

	"finanze/internal/core"
)

type Mirror struct {
	mu   sync.Mutex
	rows map[string][]core.Transaction
}

func New() *Mirror {
	return &Mirror{rows: make(map[string][]core.Transaction)}
}

func (m *Mirror) AppendTransactions(_ context.Context, userID string, txs []core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[userID] = append(m.rows[userID], txs...)
	return nil
}

// Rows returns a copy of everything appended for the user.
func (m *Mirror) Rows(userID string) []core.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Transaction(nil), m.rows[userID]...)
}
