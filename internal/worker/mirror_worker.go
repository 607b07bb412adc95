// Package worker processes session-converted events: it refreshes the
// session's summary snapshot and mirrors the created transactions to an
// external sheet.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"finanze/internal/amqp"
	applog "finanze/internal/log"
	"finanze/internal/services"
	"finanze/internal/sheets"
	"finanze/internal/store"
)

// MirrorWorker consumes SessionConverted messages. Handler errors requeue
// the delivery, so every step here must be safe to repeat: the summary save
// is a recompute and the mirror append tolerates duplicate rows.
type MirrorWorker struct {
	store    store.Store
	sessions *services.SessionService
	mirror   sheets.TransactionAppender
}

func NewMirrorWorker(st store.Store, sessions *services.SessionService, mirror sheets.TransactionAppender) *MirrorWorker {
	return &MirrorWorker{
		store:    st,
		sessions: sessions,
		mirror:   mirror,
	}
}

// HandleSessionConverted processes one event.
func (w *MirrorWorker) HandleSessionConverted(ctx context.Context, msg *amqp.SessionConvertedMessage) error {
	fields := applog.NewFields().WithSession(msg.UserID, msg.SessionID)
	fields[applog.FieldTxCount] = msg.TxCount
	slog.InfoContext(ctx, "Processing session converted message", fields.ToSlice()...)

	// The service already tried this once; running it again covers the
	// case where the conversion committed but the summary save failed.
	if _, err := w.sessions.ComputeAndSaveSummary(ctx, msg.UserID, msg.SessionID, true); err != nil {
		return fmt.Errorf("refresh summary: %w", err)
	}

	if w.mirror == nil {
		slog.WarnContext(ctx, "No sheet mirror configured, skipping append",
			"session_id", msg.SessionID)
		return nil
	}

	txs, err := w.store.ListTransactionsBySession(ctx, msg.UserID, msg.SessionID)
	if err != nil {
		return fmt.Errorf("load session transactions: %w", err)
	}
	if len(txs) != msg.TxCount {
		slog.WarnContext(ctx, "Transaction count differs from message",
			"session_id", msg.SessionID,
			"expected", msg.TxCount,
			"found", len(txs))
	}

	if err := w.mirror.AppendTransactions(ctx, msg.UserID, txs); err != nil {
		return fmt.Errorf("mirror transactions: %w", err)
	}

	slog.InfoContext(ctx, "Mirrored session transactions",
		"user_id", msg.UserID,
		"session_id", msg.SessionID,
		"rows", len(txs))
	return nil
}
