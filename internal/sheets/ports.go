package sheets

import (
	"context"

	"finanze/internal/core"
)

// TransactionAppender mirrors converted transactions to an external sheet.
// The mirror is write-only and best-effort; the store remains the source of
// truth.
type TransactionAppender interface {
	AppendTransactions(ctx context.Context, userID string, txs []core.Transaction) error
}
