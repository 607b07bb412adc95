package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finanze/internal/core"
	"finanze/internal/store"
)

// EventPublisher is the outbound port for conversion events. Publishing is
// best-effort; a broker failure never fails a conversion.
type EventPublisher interface {
	PublishSessionConverted(ctx context.Context, userID, sessionID string, txCount int) error
}

// SessionService orchestrates the bill-session ledger: sessions, items,
// summaries and the one-tap conversion into transactions.
type SessionService struct {
	store     store.Store
	publisher EventPublisher
}

func NewSessionService(st store.Store, publisher EventPublisher) *SessionService {
	return &SessionService{store: st, publisher: publisher}
}

// CreateSessionInput carries the optional fields of a new session; zero
// values fall back to defaults.
type CreateSessionInput struct {
	Title    string
	Currency string
	Date     time.Time // determines the session's monthKey, default now
}

func (s *SessionService) CreateSession(ctx context.Context, userID string, in CreateSessionInput) (*core.BillSession, error) {
	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}
	mk := core.MonthKey(date)

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "Bills – " + mk
	}

	currency := in.Currency
	if currency == "" {
		currency = core.DefaultCurrency
		if p, err := s.store.GetProfile(ctx, userID); err == nil && p.Currency != "" {
			currency = p.Currency
		}
	}

	sess := &core.BillSession{
		Title:    title,
		MonthKey: mk,
		Currency: currency,
		Summary:  core.ComputeSummary(nil),
	}
	id, err := s.store.CreateSession(ctx, userID, sess)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	sess.ID = id
	sess.OwnerID = userID

	slog.InfoContext(ctx, "Created bill session",
		"user_id", userID, "session_id", id, "month_key", mk)
	return sess, nil
}

func (s *SessionService) GetSession(ctx context.Context, userID, sessionID string) (*core.BillSession, error) {
	return s.store.GetSession(ctx, userID, sessionID)
}

func (s *SessionService) ListSessions(ctx context.Context, userID string, limit int) ([]core.BillSession, error) {
	if limit < 0 {
		return nil, core.ErrInvalidLimit
	}
	if limit == 0 {
		limit = 50
	}
	return s.store.ListSessions(ctx, userID, limit)
}

type AddItemInput struct {
	Merchant   string
	Amount     core.Money
	CategoryID string
	Note       string
	Date       time.Time
}

// AddItem validates the input before any write; an invalid item leaves both
// the item collection and the session counter untouched.
func (s *SessionService) AddItem(ctx context.Context, userID, sessionID string, in AddItemInput) (*core.BillItem, error) {
	item := core.BillItem{
		Merchant:   strings.TrimSpace(in.Merchant),
		Amount:     in.Amount,
		CategoryID: in.CategoryID,
		Note:       strings.TrimSpace(in.Note),
		Date:       in.Date,
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}

	id, err := s.store.InsertItem(ctx, userID, sessionID, &item)
	if err != nil {
		return nil, fmt.Errorf("add item: %w", err)
	}
	item.ID = id
	return &item, nil
}

func (s *SessionService) DeleteItem(ctx context.Context, userID, sessionID, itemID string) error {
	if err := s.store.DeleteItem(ctx, userID, sessionID, itemID); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

func (s *SessionService) ListItems(ctx context.Context, userID, sessionID string) ([]core.BillItem, error) {
	return s.store.ListItems(ctx, userID, sessionID)
}

// ComputeAndSaveSummary recomputes the summary from a fresh item scan and
// persists it together with the reconciled item count. With close=true the
// session gets its closedAt stamp, once.
func (s *SessionService) ComputeAndSaveSummary(ctx context.Context, userID, sessionID string, close bool) (core.Summary, error) {
	items, err := s.store.ListItems(ctx, userID, sessionID)
	if err != nil {
		return core.Summary{}, fmt.Errorf("list items for summary: %w", err)
	}
	sum := core.ComputeSummary(items)
	if err := s.store.SaveSummary(ctx, userID, sessionID, sum, close, time.Now()); err != nil {
		return core.Summary{}, fmt.Errorf("save summary: %w", err)
	}
	return sum, nil
}

// ConversionResult reports what a conversion call did. AlreadyConverted is
// a success, not an error: converting twice is always safe.
type ConversionResult struct {
	Created          int  `json:"created"`
	AlreadyConverted bool `json:"alreadyConverted"`
}

// ConvertToTransactions turns every item of the session into an expense
// transaction and marks the session converted, all in one atomic batch.
// Each transaction gets its monthKey from the item's own date, which may
// differ from the session's monthKey. If the store reports the session as
// already converted (a concurrent call won the swap), the result is the
// benign no-op.
//
// The summary snapshot is refreshed after the batch; an error there is
// returned but the conversion itself is already durable.
func (s *SessionService) ConvertToTransactions(ctx context.Context, userID, sessionID string) (ConversionResult, error) {
	sess, err := s.store.GetSession(ctx, userID, sessionID)
	if err != nil {
		return ConversionResult{}, err
	}
	if sess.Converted {
		return ConversionResult{AlreadyConverted: true}, nil
	}

	items, err := s.store.ListItems(ctx, userID, sessionID)
	if err != nil {
		return ConversionResult{}, fmt.Errorf("list items for conversion: %w", err)
	}

	now := time.Now()
	txs := make([]core.Transaction, len(items))
	for i, it := range items {
		txs[i] = core.Transaction{
			Type:       core.Expense,
			Amount:     it.Amount,
			CategoryID: it.CategoryID,
			Note:       it.Note,
			Date:       it.Date,
			MonthKey:   core.MonthKey(it.Date),
			CreatedAt:  now,
			UpdatedAt:  now,
			Source: &core.TxSource{
				Kind:      "billSession",
				SessionID: sessionID,
				ItemID:    it.ID,
			},
		}
	}

	if err := s.store.ConvertSession(ctx, userID, sessionID, txs, now); err != nil {
		if errors.Is(err, store.ErrAlreadyConverted) {
			return ConversionResult{AlreadyConverted: true}, nil
		}
		return ConversionResult{}, fmt.Errorf("convert session: %w", err)
	}

	slog.InfoContext(ctx, "Converted bill session",
		"user_id", userID, "session_id", sessionID, "tx_count", len(txs))

	if s.publisher != nil {
		if err := s.publisher.PublishSessionConverted(ctx, userID, sessionID, len(txs)); err != nil {
			slog.ErrorContext(ctx, "Failed to publish session converted event",
				"user_id", userID, "session_id", sessionID, "error", err)
		}
	}

	if _, err := s.ComputeAndSaveSummary(ctx, userID, sessionID, true); err != nil {
		return ConversionResult{Created: len(txs)}, err
	}
	return ConversionResult{Created: len(txs)}, nil
}
