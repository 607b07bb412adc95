// Package sqlite provides a SQLite-backed implementation of store.Store
// using the pure Go driver (no CGO).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"finanze/internal/core"
	"finanze/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const timeLayout = time.RFC3339Nano

func fmtTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func fmtNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

// Profiles

func (s *Store) GetProfile(ctx context.Context, userID string) (*core.Profile, error) {
	var (
		p        core.Profile
		catsJSON string
		created  string
		updated  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, email, display_name, currency, categories, created_at, updated_at
		 FROM profiles WHERE user_id = ?`, userID).
		Scan(&p.UserID, &p.Email, &p.DisplayName, &p.Currency, &catsJSON, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if err := json.Unmarshal([]byte(catsJSON), &p.Categories); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

func (s *Store) CreateProfile(ctx context.Context, p *core.Profile) error {
	cats, err := json.Marshal(p.Categories)
	if err != nil {
		return fmt.Errorf("encode categories: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, email, display_name, currency, categories, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Email, p.DisplayName, p.Currency, string(cats), fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *Store) UpdateCategories(ctx context.Context, userID string, cats []core.Category) error {
	b, err := json.Marshal(cats)
	if err != nil {
		return fmt.Errorf("encode categories: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET categories = ?, updated_at = ? WHERE user_id = ?`,
		string(b), fmtTime(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("update categories: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Bill sessions

func (s *Store) CreateSession(ctx context.Context, userID string, sess *core.BillSession) (string, error) {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	sum, err := json.Marshal(sess.Summary)
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bill_sessions
		   (id, user_id, title, month_key, currency, item_count, created_at, closed_at, converted, converted_at, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?, NULL, 0, NULL, ?)`,
		sess.ID, userID, sess.Title, sess.MonthKey, sess.Currency, sess.ItemCount,
		fmtTime(sess.CreatedAt), string(sum))
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return sess.ID, nil
}

const sessionCols = `id, title, month_key, currency, item_count, created_at, closed_at, converted, converted_at, summary`

func scanSession(row interface{ Scan(...any) error }, userID string) (*core.BillSession, error) {
	var (
		sess        core.BillSession
		created     string
		closed      sql.NullString
		convertedAt sql.NullString
		sumJSON     string
	)
	err := row.Scan(&sess.ID, &sess.Title, &sess.MonthKey, &sess.Currency, &sess.ItemCount,
		&created, &closed, &sess.Converted, &convertedAt, &sumJSON)
	if err != nil {
		return nil, err
	}
	sess.OwnerID = userID
	sess.CreatedAt = parseTime(created)
	sess.ClosedAt = parseNullTime(closed)
	sess.ConvertedAt = parseNullTime(convertedAt)
	if err := json.Unmarshal([]byte(sumJSON), &sess.Summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &sess, nil
}

func (s *Store) GetSession(ctx context.Context, userID, sessionID string) (*core.BillSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM bill_sessions WHERE user_id = ? AND id = ?`, userID, sessionID)
	sess, err := scanSession(row, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *Store) ListSessions(ctx context.Context, userID string, limit int) ([]core.BillSession, error) {
	q := `SELECT ` + sessionCols + ` FROM bill_sessions WHERE user_id = ? ORDER BY seq DESC`
	args := []any{userID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []core.BillSession
	for rows.Next() {
		sess, err := scanSession(rows, userID)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

// InsertItem writes the item row, then bumps item_count with a separate
// statement. The counter is reconciled from a true scan by SaveSummary.
func (s *Store) InsertItem(ctx context.Context, userID, sessionID string, it *core.BillItem) (string, error) {
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return "", err
	}

	if it.ID == "" {
		it.ID = uuid.New().String()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bill_items (id, user_id, session_id, merchant, amount_cents, category_id, note, date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, userID, sessionID, it.Merchant, it.Amount.Cents, it.CategoryID, it.Note,
		fmtTime(it.Date), fmtTime(it.CreatedAt))
	if err != nil {
		return "", fmt.Errorf("insert item: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE bill_sessions SET item_count = item_count + 1 WHERE user_id = ? AND id = ?`,
		userID, sessionID)
	if err != nil {
		return "", fmt.Errorf("increment item count: %w", err)
	}
	return it.ID, nil
}

func (s *Store) DeleteItem(ctx context.Context, userID, sessionID, itemID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM bill_items WHERE user_id = ? AND session_id = ? AND id = ?`,
		userID, sessionID, itemID)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE bill_sessions SET item_count = item_count - 1 WHERE user_id = ? AND id = ?`,
		userID, sessionID)
	if err != nil {
		return fmt.Errorf("decrement item count: %w", err)
	}
	return nil
}

func (s *Store) ListItems(ctx context.Context, userID, sessionID string) ([]core.BillItem, error) {
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, merchant, amount_cents, category_id, note, date, created_at
		 FROM bill_items WHERE user_id = ? AND session_id = ? ORDER BY seq DESC`,
		userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var out []core.BillItem
	for rows.Next() {
		var (
			it      core.BillItem
			date    string
			created string
		)
		if err := rows.Scan(&it.ID, &it.Merchant, &it.Amount.Cents, &it.CategoryID, &it.Note, &date, &created); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.Date = parseTime(date)
		it.CreatedAt = parseTime(created)
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) SaveSummary(ctx context.Context, userID, sessionID string, sum core.Summary, close bool, at time.Time) error {
	b, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE bill_sessions
		 SET item_count = ?, summary = ?,
		     closed_at = CASE WHEN ? AND closed_at IS NULL THEN ? ELSE closed_at END
		 WHERE user_id = ? AND id = ?`,
		sum.Count, string(b), close, fmtTime(at), userID, sessionID)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ConvertSession runs the conversion as one SQL transaction. The session
// update carries a converted = 0 guard so only one concurrent conversion
// can commit.
func (s *Store) ConvertSession(ctx context.Context, userID, sessionID string, txs []core.Transaction, at time.Time) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin conversion: %w", err)
	}
	defer dbTx.Rollback()

	res, err := dbTx.ExecContext(ctx,
		`UPDATE bill_sessions
		 SET converted = 1, converted_at = ?, closed_at = COALESCE(closed_at, ?)
		 WHERE user_id = ? AND id = ? AND converted = 0`,
		fmtTime(at), fmtTime(at), userID, sessionID)
	if err != nil {
		return fmt.Errorf("mark converted: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		err := dbTx.QueryRowContext(ctx,
			`SELECT 1 FROM bill_sessions WHERE user_id = ? AND id = ?`, userID, sessionID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check session: %w", err)
		}
		return store.ErrAlreadyConverted
	}

	for i := range txs {
		tx := &txs[i]
		if tx.ID == "" {
			tx.ID = uuid.New().String()
		}
		if err := insertTransaction(ctx, dbTx, userID, tx); err != nil {
			return err
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit conversion: %w", err)
	}
	return nil
}

// Transactions

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTransaction(ctx context.Context, db execer, userID string, tx *core.Transaction) error {
	var srcKind, srcSession, srcItem any
	if tx.Source != nil {
		srcKind, srcSession, srcItem = tx.Source.Kind, tx.Source.SessionID, tx.Source.ItemID
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO transactions
		   (id, user_id, type, amount_cents, category_id, note, date, month_key, created_at, updated_at,
		    source_kind, source_session_id, source_item_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, userID, string(tx.Type), tx.Amount.Cents, tx.CategoryID, tx.Note,
		fmtTime(tx.Date), tx.MonthKey, fmtTime(tx.CreatedAt), fmtTime(tx.UpdatedAt),
		srcKind, srcSession, srcItem)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *Store) CreateTransaction(ctx context.Context, userID string, tx *core.Transaction) (string, error) {
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
	if err := insertTransaction(ctx, s.db, userID, tx); err != nil {
		return "", err
	}
	return tx.ID, nil
}

const txCols = `id, type, amount_cents, category_id, note, date, month_key, created_at, updated_at,
	source_kind, source_session_id, source_item_id`

func scanTransaction(rows *sql.Rows) (core.Transaction, error) {
	var (
		tx         core.Transaction
		typ        string
		date       string
		created    string
		updated    string
		srcKind    sql.NullString
		srcSession sql.NullString
		srcItem    sql.NullString
	)
	err := rows.Scan(&tx.ID, &typ, &tx.Amount.Cents, &tx.CategoryID, &tx.Note, &date, &tx.MonthKey,
		&created, &updated, &srcKind, &srcSession, &srcItem)
	if err != nil {
		return tx, err
	}
	tx.Type = core.TxType(typ)
	tx.Date = parseTime(date)
	tx.CreatedAt = parseTime(created)
	tx.UpdatedAt = parseTime(updated)
	if srcKind.Valid {
		tx.Source = &core.TxSource{Kind: srcKind.String, SessionID: srcSession.String, ItemID: srcItem.String}
	}
	return tx, nil
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Store) ListTransactionsForMonth(ctx context.Context, userID, monthKey string) ([]core.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+txCols+` FROM transactions WHERE user_id = ? AND month_key = ? ORDER BY date DESC, seq DESC`,
		userID, monthKey)
}

func (s *Store) ListTransactionsBySession(ctx context.Context, userID, sessionID string) ([]core.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+txCols+` FROM transactions WHERE user_id = ? AND source_session_id = ? ORDER BY seq`,
		userID, sessionID)
}

func (s *Store) UpdateTransaction(ctx context.Context, userID, txID string, patch core.TransactionPatch, at time.Time) error {
	sets := []string{"updated_at = ?"}
	args := []any{fmtTime(at)}

	if patch.Type != nil {
		sets = append(sets, "type = ?")
		args = append(args, string(*patch.Type))
	}
	if patch.Amount != nil {
		sets = append(sets, "amount_cents = ?")
		args = append(args, patch.Amount.Cents)
	}
	if patch.CategoryID != nil {
		sets = append(sets, "category_id = ?")
		args = append(args, *patch.CategoryID)
	}
	if patch.Note != nil {
		sets = append(sets, "note = ?")
		args = append(args, *patch.Note)
	}
	if patch.Date != nil {
		sets = append(sets, "date = ?", "month_key = ?")
		args = append(args, fmtTime(*patch.Date), core.MonthKey(*patch.Date))
	}
	args = append(args, userID, txID)

	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET `+strings.Join(sets, ", ")+` WHERE user_id = ? AND id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, txID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE user_id = ? AND id = ?`, userID, txID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Budgets

func (s *Store) UpsertBudget(ctx context.Context, userID string, b *core.Budget) error {
	if b.ID == "" {
		b.ID = core.BudgetID(b.MonthKey, b.CategoryID)
	}
	now := fmtTime(time.Now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO budgets (id, user_id, month_key, category_id, limit_cents, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, id) DO UPDATE SET limit_cents = excluded.limit_cents, updated_at = excluded.updated_at`,
		b.ID, userID, b.MonthKey, b.CategoryID, b.Limit.Cents, now, now)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

func (s *Store) ListBudgetsForMonth(ctx context.Context, userID, monthKey string) ([]core.Budget, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, month_key, category_id, limit_cents, created_at, updated_at
		 FROM budgets WHERE user_id = ? AND month_key = ? ORDER BY category_id`,
		userID, monthKey)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var (
			b       core.Budget
			created string
			updated string
		)
		if err := rows.Scan(&b.ID, &b.MonthKey, &b.CategoryID, &b.Limit.Cents, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		b.CreatedAt = parseTime(created)
		b.UpdatedAt = parseTime(updated)
		out = append(out, b)
	}
	return out, rows.Err()
}

// Goals

func (s *Store) CreateGoal(ctx context.Context, userID string, g *core.Goal) (string, error) {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	now := time.Now()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
		g.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO goals (id, user_id, name, target_cents, current_cents, deadline, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, userID, g.Name, g.TargetAmount.Cents, g.CurrentAmount.Cents,
		fmtNullTime(g.Deadline), fmtTime(g.CreatedAt), fmtTime(g.UpdatedAt))
	if err != nil {
		return "", fmt.Errorf("insert goal: %w", err)
	}
	return g.ID, nil
}

func (s *Store) ListGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, target_cents, current_cents, deadline, created_at, updated_at
		 FROM goals WHERE user_id = ? ORDER BY seq DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		var (
			g        core.Goal
			deadline sql.NullString
			created  string
			updated  string
		)
		if err := rows.Scan(&g.ID, &g.Name, &g.TargetAmount.Cents, &g.CurrentAmount.Cents, &deadline, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		g.Deadline = parseNullTime(deadline)
		g.CreatedAt = parseTime(created)
		g.UpdatedAt = parseTime(updated)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) UpdateGoal(ctx context.Context, userID, goalID string, patch core.GoalPatch, at time.Time) error {
	sets := []string{"updated_at = ?"}
	args := []any{fmtTime(at)}

	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.TargetAmount != nil {
		sets = append(sets, "target_cents = ?")
		args = append(args, patch.TargetAmount.Cents)
	}
	if patch.ClearDeadline {
		sets = append(sets, "deadline = NULL")
	} else if patch.Deadline != nil {
		sets = append(sets, "deadline = ?")
		args = append(args, fmtTime(*patch.Deadline))
	}
	args = append(args, userID, goalID)

	res, err := s.db.ExecContext(ctx,
		`UPDATE goals SET `+strings.Join(sets, ", ")+` WHERE user_id = ? AND id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteGoal(ctx context.Context, userID, goalID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM goals WHERE user_id = ? AND id = ?`, userID, goalID)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DepositToGoal(ctx context.Context, userID, goalID string, amount core.Money, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE goals SET current_cents = current_cents + ?, updated_at = ? WHERE user_id = ? AND id = ?`,
		amount.Cents, fmtTime(at), userID, goalID)
	if err != nil {
		return fmt.Errorf("deposit to goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
