package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"finanze/internal/core"
	"finanze/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "finanze.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestProfileRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetProfile(ctx, "u1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetProfile on empty store: got %v, want ErrNotFound", err)
	}

	now := time.Now()
	p := &core.Profile{
		UserID:      "u1",
		Email:       "u1@example.com",
		DisplayName: "User One",
		Currency:    core.DefaultCurrency,
		Categories:  core.DefaultCategories(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}

	got, err := s.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.Currency != core.DefaultCurrency {
		t.Errorf("currency = %q, want %q", got.Currency, core.DefaultCurrency)
	}
	if len(got.Categories) != len(core.DefaultCategories()) {
		t.Errorf("categories = %d, want %d", len(got.Categories), len(core.DefaultCategories()))
	}

	cats := append(got.Categories, core.Category{ID: "c_groceries_ab12", Name: "Groceries"})
	if err := s.UpdateCategories(ctx, "u1", cats); err != nil {
		t.Fatalf("UpdateCategories: %v", err)
	}
	got, err = s.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProfile after update: %v", err)
	}
	if len(got.Categories) != len(cats) {
		t.Errorf("categories after update = %d, want %d", len(got.Categories), len(cats))
	}
}

func TestSessionsAndItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateSession(ctx, "u1", &core.BillSession{
		Title: "Bills – 2026-02", MonthKey: "2026-02", Currency: "LKR",
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	second, err := s.CreateSession(ctx, "u1", &core.BillSession{
		Title: "Bills – 2026-03", MonthKey: "2026-03", Currency: "LKR",
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	sessions, err := s.ListSessions(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("ListSessions returned %d sessions, want 2", len(sessions))
	}
	if sessions[0].ID != second || sessions[1].ID != first {
		t.Errorf("sessions not in most-recent-first order: %q, %q", sessions[0].ID, sessions[1].ID)
	}

	limited, err := s.ListSessions(ctx, "u1", 1)
	if err != nil {
		t.Fatalf("ListSessions limit: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != second {
		t.Errorf("limit=1 returned wrong page")
	}

	if _, err := s.ListSessions(ctx, "other", 0); err != nil {
		t.Fatalf("ListSessions other user: %v", err)
	}

	items := []core.BillItem{
		{Merchant: "Keells", Amount: core.Money{Cents: 10000}, CategoryID: "food", Date: date(2026, 2, 3)},
		{Merchant: "Uber", Amount: core.Money{Cents: 2500}, CategoryID: "transport", Date: date(2026, 2, 4)},
	}
	for i := range items {
		if _, err := s.InsertItem(ctx, "u1", first, &items[i]); err != nil {
			t.Fatalf("InsertItem: %v", err)
		}
	}

	sess, err := s.GetSession(ctx, "u1", first)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.ItemCount != 2 {
		t.Errorf("itemCount = %d, want 2", sess.ItemCount)
	}

	listed, err := s.ListItems(ctx, "u1", first)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("ListItems returned %d items, want 2", len(listed))
	}
	if listed[0].Merchant != "Uber" || listed[1].Merchant != "Keells" {
		t.Errorf("items not in most-recent-first order: %q, %q", listed[0].Merchant, listed[1].Merchant)
	}

	if err := s.DeleteItem(ctx, "u1", first, listed[0].ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	sess, _ = s.GetSession(ctx, "u1", first)
	if sess.ItemCount != 1 {
		t.Errorf("itemCount after delete = %d, want 1", sess.ItemCount)
	}

	if err := s.DeleteItem(ctx, "u1", first, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("DeleteItem missing: got %v, want ErrNotFound", err)
	}
	if _, err := s.GetSession(ctx, "u2", first); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetSession wrong user: got %v, want ErrNotFound", err)
	}
}

func TestSaveSummaryClosesOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateSession(ctx, "u1", &core.BillSession{
		Title: "Bills – 2026-02", MonthKey: "2026-02", Currency: "LKR",
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	sum := core.Summary{Total: core.Money{Cents: 12500}, Count: 3, ByCategory: []core.CategoryTotal{}}
	firstClose := date(2026, 2, 10)
	if err := s.SaveSummary(ctx, "u1", id, sum, true, firstClose); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}

	sess, err := s.GetSession(ctx, "u1", id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.ItemCount != 3 {
		t.Errorf("itemCount = %d, want reconciled 3", sess.ItemCount)
	}
	if sess.Summary.Total.Cents != 12500 {
		t.Errorf("summary total = %d, want 12500", sess.Summary.Total.Cents)
	}
	if sess.ClosedAt == nil || !sess.ClosedAt.Equal(firstClose) {
		t.Fatalf("closedAt = %v, want %v", sess.ClosedAt, firstClose)
	}

	// A later close must not move the original timestamp.
	if err := s.SaveSummary(ctx, "u1", id, sum, true, date(2026, 2, 20)); err != nil {
		t.Fatalf("SaveSummary second close: %v", err)
	}
	sess, _ = s.GetSession(ctx, "u1", id)
	if !sess.ClosedAt.Equal(firstClose) {
		t.Errorf("closedAt moved to %v after second close", sess.ClosedAt)
	}

	if err := s.SaveSummary(ctx, "u1", "missing", sum, false, time.Now()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("SaveSummary missing: got %v, want ErrNotFound", err)
	}
}

func TestConvertSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateSession(ctx, "u1", &core.BillSession{
		Title: "Bills – 2026-02", MonthKey: "2026-02", Currency: "LKR",
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	at := date(2026, 2, 28)
	txs := []core.Transaction{
		{
			Type: core.Expense, Amount: core.Money{Cents: 10000}, CategoryID: "food",
			Date: date(2026, 2, 3), MonthKey: "2026-02", CreatedAt: at, UpdatedAt: at,
			Source: &core.TxSource{Kind: "billSession", SessionID: id, ItemID: "item-1"},
		},
		{
			Type: core.Expense, Amount: core.Money{Cents: 2500}, CategoryID: "transport",
			Date: date(2026, 1, 31), MonthKey: "2026-01", CreatedAt: at, UpdatedAt: at,
			Source: &core.TxSource{Kind: "billSession", SessionID: id, ItemID: "item-2"},
		},
	}

	if err := s.ConvertSession(ctx, "u1", id, txs, at); err != nil {
		t.Fatalf("ConvertSession: %v", err)
	}

	sess, err := s.GetSession(ctx, "u1", id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !sess.Converted {
		t.Error("session not marked converted")
	}
	if sess.ConvertedAt == nil || !sess.ConvertedAt.Equal(at) {
		t.Errorf("convertedAt = %v, want %v", sess.ConvertedAt, at)
	}
	if sess.ClosedAt == nil || !sess.ClosedAt.Equal(at) {
		t.Errorf("closedAt = %v, want coalesced to %v", sess.ClosedAt, at)
	}

	created, err := s.ListTransactionsBySession(ctx, "u1", id)
	if err != nil {
		t.Fatalf("ListTransactionsBySession: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("conversion created %d transactions, want 2", len(created))
	}
	for _, tx := range created {
		if tx.Source == nil || tx.Source.Kind != "billSession" || tx.Source.SessionID != id {
			t.Errorf("transaction %s missing source provenance: %+v", tx.ID, tx.Source)
		}
	}

	// Second conversion loses the compare-and-swap and writes nothing.
	err = s.ConvertSession(ctx, "u1", id, txs, date(2026, 3, 1))
	if !errors.Is(err, store.ErrAlreadyConverted) {
		t.Fatalf("second ConvertSession: got %v, want ErrAlreadyConverted", err)
	}
	after, _ := s.ListTransactionsBySession(ctx, "u1", id)
	if len(after) != 2 {
		t.Errorf("second conversion duplicated transactions: %d", len(after))
	}
	sess, _ = s.GetSession(ctx, "u1", id)
	if !sess.ConvertedAt.Equal(at) {
		t.Errorf("convertedAt moved to %v on lost swap", sess.ConvertedAt)
	}

	if err := s.ConvertSession(ctx, "u1", "missing", nil, at); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ConvertSession missing: got %v, want ErrNotFound", err)
	}
}

func TestConvertSessionPreservesClosedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.CreateSession(ctx, "u1", &core.BillSession{
		Title: "Bills – 2026-02", MonthKey: "2026-02", Currency: "LKR",
	})
	closed := date(2026, 2, 10)
	if err := s.SaveSummary(ctx, "u1", id, core.Summary{ByCategory: []core.CategoryTotal{}}, true, closed); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}

	if err := s.ConvertSession(ctx, "u1", id, nil, date(2026, 2, 28)); err != nil {
		t.Fatalf("ConvertSession: %v", err)
	}
	sess, _ := s.GetSession(ctx, "u1", id)
	if !sess.ClosedAt.Equal(closed) {
		t.Errorf("closedAt = %v, want original %v", sess.ClosedAt, closed)
	}
}

func TestTransactionsCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateTransaction(ctx, "u1", &core.Transaction{
		Type: core.Expense, Amount: core.Money{Cents: 5000}, CategoryID: "food",
		Note: "lunch", Date: date(2026, 2, 5), MonthKey: "2026-02",
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if _, err := s.CreateTransaction(ctx, "u1", &core.Transaction{
		Type: core.Income, Amount: core.Money{Cents: 300000}, CategoryID: "other",
		Date: date(2026, 1, 25), MonthKey: "2026-01",
	}); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	feb, err := s.ListTransactionsForMonth(ctx, "u1", "2026-02")
	if err != nil {
		t.Fatalf("ListTransactionsForMonth: %v", err)
	}
	if len(feb) != 1 || feb[0].ID != id {
		t.Fatalf("february page wrong: %+v", feb)
	}

	// Patching the date moves the transaction across month buckets.
	newDate := date(2026, 3, 2)
	newAmount := core.Money{Cents: 7500}
	err = s.UpdateTransaction(ctx, "u1", id, core.TransactionPatch{
		Amount: &newAmount,
		Date:   &newDate,
	}, time.Now())
	if err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}

	feb, _ = s.ListTransactionsForMonth(ctx, "u1", "2026-02")
	if len(feb) != 0 {
		t.Errorf("transaction still listed under old month")
	}
	mar, _ := s.ListTransactionsForMonth(ctx, "u1", "2026-03")
	if len(mar) != 1 || mar[0].Amount.Cents != 7500 || mar[0].MonthKey != "2026-03" {
		t.Errorf("patched transaction wrong: %+v", mar)
	}

	if err := s.UpdateTransaction(ctx, "u1", "missing", core.TransactionPatch{}, time.Now()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UpdateTransaction missing: got %v, want ErrNotFound", err)
	}

	if err := s.DeleteTransaction(ctx, "u1", id); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if err := s.DeleteTransaction(ctx, "u1", id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("DeleteTransaction twice: got %v, want ErrNotFound", err)
	}
}

func TestBudgetsUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := &core.Budget{MonthKey: "2026-02", CategoryID: "food", Limit: core.Money{Cents: 50000}}
	if err := s.UpsertBudget(ctx, "u1", b); err != nil {
		t.Fatalf("UpsertBudget: %v", err)
	}
	if b.ID != "2026-02_food" {
		t.Errorf("budget id = %q, want deterministic 2026-02_food", b.ID)
	}

	b.Limit = core.Money{Cents: 60000}
	if err := s.UpsertBudget(ctx, "u1", b); err != nil {
		t.Fatalf("UpsertBudget update: %v", err)
	}

	got, err := s.ListBudgetsForMonth(ctx, "u1", "2026-02")
	if err != nil {
		t.Fatalf("ListBudgetsForMonth: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("upsert created duplicate rows: %d", len(got))
	}
	if got[0].Limit.Cents != 60000 {
		t.Errorf("limit = %d, want 60000", got[0].Limit.Cents)
	}
}

func TestGoals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	deadline := date(2026, 12, 31)
	id, err := s.CreateGoal(ctx, "u1", &core.Goal{
		Name: "Emergency fund", TargetAmount: core.Money{Cents: 10000000}, Deadline: &deadline,
	})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}

	if err := s.DepositToGoal(ctx, "u1", id, core.Money{Cents: 250000}, time.Now()); err != nil {
		t.Fatalf("DepositToGoal: %v", err)
	}
	if err := s.DepositToGoal(ctx, "u1", id, core.Money{Cents: 100000}, time.Now()); err != nil {
		t.Fatalf("DepositToGoal: %v", err)
	}

	goals, err := s.ListGoals(ctx, "u1")
	if err != nil {
		t.Fatalf("ListGoals: %v", err)
	}
	if len(goals) != 1 {
		t.Fatalf("ListGoals returned %d, want 1", len(goals))
	}
	if goals[0].CurrentAmount.Cents != 350000 {
		t.Errorf("current = %d, want 350000", goals[0].CurrentAmount.Cents)
	}
	if goals[0].Deadline == nil || !goals[0].Deadline.Equal(deadline) {
		t.Errorf("deadline = %v, want %v", goals[0].Deadline, deadline)
	}

	if err := s.UpdateGoal(ctx, "u1", id, core.GoalPatch{ClearDeadline: true}, time.Now()); err != nil {
		t.Fatalf("UpdateGoal: %v", err)
	}
	goals, _ = s.ListGoals(ctx, "u1")
	if goals[0].Deadline != nil {
		t.Errorf("deadline not cleared: %v", goals[0].Deadline)
	}

	if err := s.DeleteGoal(ctx, "u1", id); err != nil {
		t.Fatalf("DeleteGoal: %v", err)
	}
	if err := s.DepositToGoal(ctx, "u1", id, core.Money{Cents: 1}, time.Now()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("deposit after delete: got %v, want ErrNotFound", err)
	}
}
