// Package memory provides an in-process implementation of store.Store.
// It is the default backend and the test double for the service layer.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"finanze/internal/core"
	"finanze/internal/store"
)

var _ store.Store = (*Store)(nil)

type userData struct {
	profile      *core.Profile
	sessions     map[string]*core.BillSession
	sessionOrder []string
	items        map[string][]core.BillItem // sessionID -> items in insertion order
	transactions []core.Transaction
	budgets      map[string]*core.Budget
	goals        map[string]*core.Goal
	goalOrder    []string
}

type Store struct {
	mu    sync.Mutex
	users map[string]*userData
}

func New() *Store {
	return &Store{users: make(map[string]*userData)}
}

func (s *Store) user(userID string) *userData {
	u, ok := s.users[userID]
	if !ok {
		u = &userData{
			sessions: make(map[string]*core.BillSession),
			items:    make(map[string][]core.BillItem),
			budgets:  make(map[string]*core.Budget),
			goals:    make(map[string]*core.Goal),
		}
		s.users[userID] = u
	}
	return u
}

// Profiles

func (s *Store) GetProfile(_ context.Context, userID string) (*core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(userID)
	if u.profile == nil {
		return nil, store.ErrNotFound
	}
	p := *u.profile
	p.Categories = append([]core.Category(nil), u.profile.Categories...)
	return &p, nil
}

func (s *Store) CreateProfile(_ context.Context, p *core.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	cp.Categories = append([]core.Category(nil), p.Categories...)
	s.user(p.UserID).profile = &cp
	return nil
}

func (s *Store) UpdateCategories(_ context.Context, userID string, cats []core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(userID)
	if u.profile == nil {
		return store.ErrNotFound
	}
	u.profile.Categories = append([]core.Category(nil), cats...)
	u.profile.UpdatedAt = time.Now()
	return nil
}

// Bill sessions

func (s *Store) CreateSession(_ context.Context, userID string, sess *core.BillSession) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	cp := *sess
	u := s.user(userID)
	u.sessions[cp.ID] = &cp
	u.sessionOrder = append(u.sessionOrder, cp.ID)
	return cp.ID, nil
}

func (s *Store) GetSession(_ context.Context, userID, sessionID string) (*core.BillSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.user(userID).sessions[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := cloneSession(sess)
	return &cp, nil
}

func (s *Store) ListSessions(_ context.Context, userID string, limit int) ([]core.BillSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(userID)
	out := make([]core.BillSession, 0, len(u.sessionOrder))
	// Most recently created first.
	for i := len(u.sessionOrder) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, cloneSession(u.sessions[u.sessionOrder[i]]))
	}
	return out, nil
}

// InsertItem appends the item, then adjusts the session counter as a
// second write. The counter is a cache; SaveSummary reconciles it.
func (s *Store) InsertItem(_ context.Context, userID, sessionID string, it *core.BillItem) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(userID)
	sess, ok := u.sessions[sessionID]
	if !ok {
		return "", store.ErrNotFound
	}

	if it.ID == "" {
		it.ID = uuid.New().String()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now()
	}
	u.items[sessionID] = append(u.items[sessionID], *it)
	sess.ItemCount++
	return it.ID, nil
}

func (s *Store) DeleteItem(_ context.Context, userID, sessionID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(userID)
	sess, ok := u.sessions[sessionID]
	if !ok {
		return store.ErrNotFound
	}

	items := u.items[sessionID]
	for i := range items {
		if items[i].ID == itemID {
			u.items[sessionID] = append(items[:i:i], items[i+1:]...)
			sess.ItemCount--
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) ListItems(_ context.Context, userID, sessionID string) ([]core.BillItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(userID)
	if _, ok := u.sessions[sessionID]; !ok {
		return nil, store.ErrNotFound
	}
	items := u.items[sessionID]
	out := make([]core.BillItem, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		out = append(out, items[i])
	}
	return out, nil
}

func (s *Store) SaveSummary(_ context.Context, userID, sessionID string, sum core.Summary, close bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.user(userID).sessions[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	sess.ItemCount = sum.Count
	sess.Summary = cloneSummary(sum)
	if close && sess.ClosedAt == nil {
		t := at
		sess.ClosedAt = &t
	}
	return nil
}

func (s *Store) ConvertSession(_ context.Context, userID, sessionID string, txs []core.Transaction, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(userID)
	sess, ok := u.sessions[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	if sess.Converted {
		return store.ErrAlreadyConverted
	}

	for i := range txs {
		tx := txs[i]
		if tx.ID == "" {
			tx.ID = uuid.New().String()
		}
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = at
			tx.UpdatedAt = at
		}
		u.transactions = append(u.transactions, tx)
	}

	sess.Converted = true
	t := at
	sess.ConvertedAt = &t
	if sess.ClosedAt == nil {
		c := at
		sess.ClosedAt = &c
	}
	return nil
}

// Transactions

func (s *Store) CreateTransaction(_ context.Context, userID string, tx *core.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	now := time.Now()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	if tx.UpdatedAt.IsZero() {
		tx.UpdatedAt = now
	}
	s.user(userID).transactions = append(s.user(userID).transactions, *tx)
	return tx.ID, nil
}

func (s *Store) ListTransactionsForMonth(_ context.Context, userID, monthKey string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Transaction
	for _, tx := range s.user(userID).transactions {
		if tx.MonthKey == monthKey {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *Store) ListTransactionsBySession(_ context.Context, userID, sessionID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Transaction
	for _, tx := range s.user(userID).transactions {
		if tx.Source != nil && tx.Source.SessionID == sessionID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) UpdateTransaction(_ context.Context, userID, txID string, patch core.TransactionPatch, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs := s.user(userID).transactions
	for i := range txs {
		if txs[i].ID != txID {
			continue
		}
		if patch.Type != nil {
			txs[i].Type = *patch.Type
		}
		if patch.Amount != nil {
			txs[i].Amount = *patch.Amount
		}
		if patch.CategoryID != nil {
			txs[i].CategoryID = *patch.CategoryID
		}
		if patch.Note != nil {
			txs[i].Note = *patch.Note
		}
		if patch.Date != nil {
			txs[i].Date = *patch.Date
			txs[i].MonthKey = core.MonthKey(*patch.Date)
		}
		txs[i].UpdatedAt = at
		return nil
	}
	return store.ErrNotFound
}

func (s *Store) DeleteTransaction(_ context.Context, userID, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(userID)
	for i := range u.transactions {
		if u.transactions[i].ID == txID {
			u.transactions = append(u.transactions[:i:i], u.transactions[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

// Budgets

func (s *Store) UpsertBudget(_ context.Context, userID string, b *core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(userID)
	if b.ID == "" {
		b.ID = core.BudgetID(b.MonthKey, b.CategoryID)
	}
	now := time.Now()
	if existing, ok := u.budgets[b.ID]; ok {
		existing.Limit = b.Limit
		existing.UpdatedAt = now
		b.CreatedAt = existing.CreatedAt
		return nil
	}
	cp := *b
	cp.CreatedAt = now
	cp.UpdatedAt = now
	u.budgets[cp.ID] = &cp
	b.CreatedAt = cp.CreatedAt
	return nil
}

func (s *Store) ListBudgetsForMonth(_ context.Context, userID, monthKey string) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Budget
	for _, b := range s.user(userID).budgets {
		if b.MonthKey == monthKey {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

// Goals

func (s *Store) CreateGoal(_ context.Context, userID string, g *core.Goal) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(userID)
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	now := time.Now()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
		g.UpdatedAt = now
	}
	cp := *g
	u.goals[cp.ID] = &cp
	u.goalOrder = append(u.goalOrder, cp.ID)
	return cp.ID, nil
}

func (s *Store) ListGoals(_ context.Context, userID string) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(userID)
	out := make([]core.Goal, 0, len(u.goalOrder))
	for i := len(u.goalOrder) - 1; i >= 0; i-- {
		if g, ok := u.goals[u.goalOrder[i]]; ok {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (s *Store) UpdateGoal(_ context.Context, userID, goalID string, patch core.GoalPatch, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.user(userID).goals[goalID]
	if !ok {
		return store.ErrNotFound
	}
	if patch.Name != nil {
		g.Name = *patch.Name
	}
	if patch.TargetAmount != nil {
		g.TargetAmount = *patch.TargetAmount
	}
	if patch.ClearDeadline {
		g.Deadline = nil
	} else if patch.Deadline != nil {
		d := *patch.Deadline
		g.Deadline = &d
	}
	g.UpdatedAt = at
	return nil
}

func (s *Store) DeleteGoal(_ context.Context, userID, goalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(userID)
	if _, ok := u.goals[goalID]; !ok {
		return store.ErrNotFound
	}
	delete(u.goals, goalID)
	return nil
}

func (s *Store) DepositToGoal(_ context.Context, userID, goalID string, amount core.Money, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.user(userID).goals[goalID]
	if !ok {
		return store.ErrNotFound
	}
	g.CurrentAmount.Cents += amount.Cents
	g.UpdatedAt = at
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func cloneSession(sess *core.BillSession) core.BillSession {
	cp := *sess
	if sess.ClosedAt != nil {
		t := *sess.ClosedAt
		cp.ClosedAt = &t
	}
	if sess.ConvertedAt != nil {
		t := *sess.ConvertedAt
		cp.ConvertedAt = &t
	}
	cp.Summary = cloneSummary(sess.Summary)
	return cp
}

func cloneSummary(sum core.Summary) core.Summary {
	cp := sum
	if sum.Biggest != nil {
		b := *sum.Biggest
		cp.Biggest = &b
	}
	cp.ByCategory = append([]core.CategoryTotal(nil), sum.ByCategory...)
	return cp
}
