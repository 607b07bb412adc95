// Package mongo provides a MongoDB-backed implementation of store.Store.
// Session conversion runs inside a multi-document transaction, so the
// deployment must be a replica set (single-node is fine).
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"finanze/internal/core"
	"finanze/internal/store"
)

const (
	colProfiles     = "profiles"
	colSessions     = "bill_sessions"
	colItems        = "bill_items"
	colTransactions = "transactions"
	colBudgets      = "budgets"
	colGoals        = "goals"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to the given URI and ensures indexes exist.
func New(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName)}
	if err := s.migrate(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colSessions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colItems: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "session_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colTransactions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "month_key", Value: 1}, {Key: "date", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "source.session_id", Value: 1}}},
		},
		colBudgets: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "month_key", Value: 1}}},
		},
		colGoals: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
	for col, models := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("indexes for %s: %w", col, err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// Profiles

func (s *Store) GetProfile(ctx context.Context, userID string) (*core.Profile, error) {
	var m profileModel
	err := s.db.Collection(colProfiles).FindOne(ctx, bson.M{"_id": userID}).Decode(&m)
	if isNoDocuments(err) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return fromProfileModel(&m), nil
}

func (s *Store) CreateProfile(ctx context.Context, p *core.Profile) error {
	if _, err := s.db.Collection(colProfiles).InsertOne(ctx, toProfileModel(p)); err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *Store) UpdateCategories(ctx context.Context, userID string, cats []core.Category) error {
	res, err := s.db.Collection(colProfiles).UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"categories": toCategoryModels(cats), "updated_at": time.Now()}})
	if err != nil {
		return fmt.Errorf("update categories: %w", err)
	}
	if res.MatchedCount == 0 {
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
	m := &sessionModel{
		ID:        sess.ID,
		UserID:    userID,
		Title:     sess.Title,
		MonthKey:  sess.MonthKey,
		Currency:  sess.Currency,
		CreatedAt: sess.CreatedAt,
		Summary:   toSummaryModel(sess.Summary),
	}
	if _, err := s.db.Collection(colSessions).InsertOne(ctx, m); err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return sess.ID, nil
}

func (s *Store) GetSession(ctx context.Context, userID, sessionID string) (*core.BillSession, error) {
	var m sessionModel
	err := s.db.Collection(colSessions).
		FindOne(ctx, bson.M{"_id": sessionID, "user_id": userID}).Decode(&m)
	if isNoDocuments(err) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return fromSessionModel(&m), nil
}

func (s *Store) ListSessions(ctx context.Context, userID string, limit int) ([]core.BillSession, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cur, err := s.db.Collection(colSessions).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var models []sessionModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	out := make([]core.BillSession, len(models))
	for i := range models {
		out[i] = *fromSessionModel(&models[i])
	}
	return out, nil
}

// InsertItem writes the item document, then bumps the session's item_count
// with a separate $inc. SaveSummary reconciles the counter from a full scan.
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
	m := &itemModel{
		ID:          it.ID,
		UserID:      userID,
		SessionID:   sessionID,
		Merchant:    it.Merchant,
		AmountCents: it.Amount.Cents,
		CategoryID:  it.CategoryID,
		Note:        it.Note,
		Date:        it.Date,
		CreatedAt:   it.CreatedAt,
	}
	if _, err := s.db.Collection(colItems).InsertOne(ctx, m); err != nil {
		return "", fmt.Errorf("insert item: %w", err)
	}

	_, err := s.db.Collection(colSessions).UpdateOne(ctx,
		bson.M{"_id": sessionID, "user_id": userID},
		bson.M{"$inc": bson.M{"item_count": 1}})
	if err != nil {
		return "", fmt.Errorf("increment item count: %w", err)
	}
	return it.ID, nil
}

func (s *Store) DeleteItem(ctx context.Context, userID, sessionID, itemID string) error {
	res, err := s.db.Collection(colItems).DeleteOne(ctx,
		bson.M{"_id": itemID, "user_id": userID, "session_id": sessionID})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}

	_, err = s.db.Collection(colSessions).UpdateOne(ctx,
		bson.M{"_id": sessionID, "user_id": userID},
		bson.M{"$inc": bson.M{"item_count": -1}})
	if err != nil {
		return fmt.Errorf("decrement item count: %w", err)
	}
	return nil
}

func (s *Store) ListItems(ctx context.Context, userID, sessionID string) ([]core.BillItem, error) {
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	cur, err := s.db.Collection(colItems).Find(ctx,
		bson.M{"user_id": userID, "session_id": sessionID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	var models []itemModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	out := make([]core.BillItem, len(models))
	for i := range models {
		out[i] = fromItemModel(&models[i])
	}
	return out, nil
}

func (s *Store) SaveSummary(ctx context.Context, userID, sessionID string, sum core.Summary, close bool, at time.Time) error {
	set := bson.D{
		{Key: "item_count", Value: sum.Count},
		{Key: "summary", Value: toSummaryModel(sum)},
	}
	if close {
		// $ifNull keeps an existing closed_at; closedAt is set-once.
		set = append(set, bson.E{Key: "closed_at", Value: bson.M{"$ifNull": bson.A{"$closed_at", at}}})
	}
	res, err := s.db.Collection(colSessions).UpdateOne(ctx,
		bson.M{"_id": sessionID, "user_id": userID},
		mongo.Pipeline{bson.D{{Key: "$set", Value: set}}})
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ConvertSession marks the session converted and inserts the transactions
// inside one multi-document transaction. The converted:false filter is the
// compare-and-swap; only one concurrent conversion can commit.
func (s *Store) ConvertSession(ctx context.Context, userID, sessionID string, txs []core.Transaction, at time.Time) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		res, err := s.db.Collection(colSessions).UpdateOne(ctx,
			bson.M{"_id": sessionID, "user_id": userID, "converted": false},
			mongo.Pipeline{bson.D{{Key: "$set", Value: bson.D{
				{Key: "converted", Value: true},
				{Key: "converted_at", Value: at},
				{Key: "closed_at", Value: bson.M{"$ifNull": bson.A{"$closed_at", at}}},
			}}}})
		if err != nil {
			return nil, fmt.Errorf("mark converted: %w", err)
		}
		if res.MatchedCount == 0 {
			err := s.db.Collection(colSessions).
				FindOne(ctx, bson.M{"_id": sessionID, "user_id": userID}).Err()
			if isNoDocuments(err) {
				return nil, store.ErrNotFound
			}
			if err != nil {
				return nil, fmt.Errorf("check session: %w", err)
			}
			return nil, store.ErrAlreadyConverted
		}

		if len(txs) == 0 {
			return nil, nil
		}
		docs := make([]any, len(txs))
		for i := range txs {
			if txs[i].ID == "" {
				txs[i].ID = uuid.New().String()
			}
			docs[i] = toTransactionModel(userID, &txs[i])
		}
		if _, err := s.db.Collection(colTransactions).InsertMany(ctx, docs); err != nil {
			return nil, fmt.Errorf("insert transactions: %w", err)
		}
		return nil, nil
	})
	return err
}

// Transactions

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
	if _, err := s.db.Collection(colTransactions).InsertOne(ctx, toTransactionModel(userID, tx)); err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}
	return tx.ID, nil
}

func (s *Store) findTransactions(ctx context.Context, filter bson.M, sort bson.D) ([]core.Transaction, error) {
	cur, err := s.db.Collection(colTransactions).Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	var models []transactionModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	out := make([]core.Transaction, len(models))
	for i := range models {
		out[i] = fromTransactionModel(&models[i])
	}
	return out, nil
}

func (s *Store) ListTransactionsForMonth(ctx context.Context, userID, monthKey string) ([]core.Transaction, error) {
	return s.findTransactions(ctx,
		bson.M{"user_id": userID, "month_key": monthKey},
		bson.D{{Key: "date", Value: -1}, {Key: "created_at", Value: -1}})
}

func (s *Store) ListTransactionsBySession(ctx context.Context, userID, sessionID string) ([]core.Transaction, error) {
	return s.findTransactions(ctx,
		bson.M{"user_id": userID, "source.session_id": sessionID},
		bson.D{{Key: "created_at", Value: 1}})
}

func (s *Store) UpdateTransaction(ctx context.Context, userID, txID string, patch core.TransactionPatch, at time.Time) error {
	set := bson.M{"updated_at": at}
	if patch.Type != nil {
		set["type"] = string(*patch.Type)
	}
	if patch.Amount != nil {
		set["amount_cents"] = patch.Amount.Cents
	}
	if patch.CategoryID != nil {
		set["category_id"] = *patch.CategoryID
	}
	if patch.Note != nil {
		set["note"] = *patch.Note
	}
	if patch.Date != nil {
		set["date"] = *patch.Date
		set["month_key"] = core.MonthKey(*patch.Date)
	}
	res, err := s.db.Collection(colTransactions).UpdateOne(ctx,
		bson.M{"_id": txID, "user_id": userID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, txID string) error {
	res, err := s.db.Collection(colTransactions).DeleteOne(ctx, bson.M{"_id": txID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Budgets

func (s *Store) UpsertBudget(ctx context.Context, userID string, b *core.Budget) error {
	if b.ID == "" {
		b.ID = core.BudgetID(b.MonthKey, b.CategoryID)
	}
	now := time.Now()
	_, err := s.db.Collection(colBudgets).UpdateOne(ctx,
		bson.M{"_id": b.ID, "user_id": userID},
		bson.M{
			"$set": bson.M{
				"month_key":   b.MonthKey,
				"category_id": b.CategoryID,
				"limit_cents": b.Limit.Cents,
				"updated_at":  now,
			},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

func (s *Store) ListBudgetsForMonth(ctx context.Context, userID, monthKey string) ([]core.Budget, error) {
	cur, err := s.db.Collection(colBudgets).Find(ctx,
		bson.M{"user_id": userID, "month_key": monthKey},
		options.Find().SetSort(bson.D{{Key: "category_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	var models []budgetModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("decode budgets: %w", err)
	}
	out := make([]core.Budget, len(models))
	for i := range models {
		out[i] = fromBudgetModel(&models[i])
	}
	return out, nil
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
	m := &goalModel{
		ID:           g.ID,
		UserID:       userID,
		Name:         g.Name,
		TargetCents:  g.TargetAmount.Cents,
		CurrentCents: g.CurrentAmount.Cents,
		Deadline:     g.Deadline,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
	if _, err := s.db.Collection(colGoals).InsertOne(ctx, m); err != nil {
		return "", fmt.Errorf("insert goal: %w", err)
	}
	return g.ID, nil
}

func (s *Store) ListGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	cur, err := s.db.Collection(colGoals).Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	var models []goalModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("decode goals: %w", err)
	}
	out := make([]core.Goal, len(models))
	for i := range models {
		out[i] = fromGoalModel(&models[i])
	}
	return out, nil
}

func (s *Store) UpdateGoal(ctx context.Context, userID, goalID string, patch core.GoalPatch, at time.Time) error {
	set := bson.M{"updated_at": at}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.TargetAmount != nil {
		set["target_cents"] = patch.TargetAmount.Cents
	}
	update := bson.M{"$set": set}
	if patch.ClearDeadline {
		update["$unset"] = bson.M{"deadline": ""}
	} else if patch.Deadline != nil {
		set["deadline"] = *patch.Deadline
	}

	res, err := s.db.Collection(colGoals).UpdateOne(ctx,
		bson.M{"_id": goalID, "user_id": userID}, update)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteGoal(ctx context.Context, userID, goalID string) error {
	res, err := s.db.Collection(colGoals).DeleteOne(ctx, bson.M{"_id": goalID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DepositToGoal(ctx context.Context, userID, goalID string, amount core.Money, at time.Time) error {
	res, err := s.db.Collection(colGoals).UpdateOne(ctx,
		bson.M{"_id": goalID, "user_id": userID},
		bson.M{
			"$inc": bson.M{"current_cents": amount.Cents},
			"$set": bson.M{"updated_at": at},
		})
	if err != nil {
		return fmt.Errorf("deposit to goal: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
