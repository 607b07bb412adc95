package mongo

import (
	"time"

	"finanze/internal/core"
)

// BSON documents are kept separate from the domain types so wire layout
// can evolve without touching core.

type profileModel struct {
	UserID      string          `bson:"_id"`
	Email       string          `bson:"email"`
	DisplayName string          `bson:"display_name"`
	Currency    string          `bson:"currency"`
	Categories  []categoryModel `bson:"categories"`
	CreatedAt   time.Time       `bson:"created_at"`
	UpdatedAt   time.Time       `bson:"updated_at"`
}

type categoryModel struct {
	ID   string `bson:"id"`
	Name string `bson:"name"`
}

type sessionModel struct {
	ID          string       `bson:"_id"`
	UserID      string       `bson:"user_id"`
	Title       string       `bson:"title"`
	MonthKey    string       `bson:"month_key"`
	Currency    string       `bson:"currency"`
	ItemCount   int          `bson:"item_count"`
	CreatedAt   time.Time    `bson:"created_at"`
	ClosedAt    *time.Time   `bson:"closed_at,omitempty"`
	Converted   bool         `bson:"converted"`
	ConvertedAt *time.Time   `bson:"converted_at,omitempty"`
	Summary     summaryModel `bson:"summary"`
}

type summaryModel struct {
	TotalCents int64                `bson:"total_cents"`
	Count      int                  `bson:"count"`
	Biggest    *biggestModel        `bson:"biggest,omitempty"`
	ByCategory []categoryTotalModel `bson:"by_category"`
}

type biggestModel struct {
	Merchant    string `bson:"merchant"`
	AmountCents int64  `bson:"amount_cents"`
}

type categoryTotalModel struct {
	CategoryID string `bson:"category_id"`
	TotalCents int64  `bson:"total_cents"`
}

type itemModel struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user_id"`
	SessionID   string    `bson:"session_id"`
	Merchant    string    `bson:"merchant"`
	AmountCents int64     `bson:"amount_cents"`
	CategoryID  string    `bson:"category_id"`
	Note        string    `bson:"note,omitempty"`
	Date        time.Time `bson:"date"`
	CreatedAt   time.Time `bson:"created_at"`
}

type transactionModel struct {
	ID          string       `bson:"_id"`
	UserID      string       `bson:"user_id"`
	Type        string       `bson:"type"`
	AmountCents int64        `bson:"amount_cents"`
	CategoryID  string       `bson:"category_id"`
	Note        string       `bson:"note,omitempty"`
	Date        time.Time    `bson:"date"`
	MonthKey    string       `bson:"month_key"`
	CreatedAt   time.Time    `bson:"created_at"`
	UpdatedAt   time.Time    `bson:"updated_at"`
	Source      *sourceModel `bson:"source,omitempty"`
}

type sourceModel struct {
	Kind      string `bson:"kind"`
	SessionID string `bson:"session_id"`
	ItemID    string `bson:"item_id"`
}

type budgetModel struct {
	ID         string    `bson:"_id"`
	UserID     string    `bson:"user_id"`
	MonthKey   string    `bson:"month_key"`
	CategoryID string    `bson:"category_id"`
	LimitCents int64     `bson:"limit_cents"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

type goalModel struct {
	ID           string     `bson:"_id"`
	UserID       string     `bson:"user_id"`
	Name         string     `bson:"name"`
	TargetCents  int64      `bson:"target_cents"`
	CurrentCents int64      `bson:"current_cents"`
	Deadline     *time.Time `bson:"deadline,omitempty"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
}

func toProfileModel(p *core.Profile) *profileModel {
	return &profileModel{
		UserID:      p.UserID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		Currency:    p.Currency,
		Categories:  toCategoryModels(p.Categories),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromProfileModel(m *profileModel) *core.Profile {
	return &core.Profile{
		UserID:      m.UserID,
		Email:       m.Email,
		DisplayName: m.DisplayName,
		Currency:    m.Currency,
		Categories:  fromCategoryModels(m.Categories),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toCategoryModels(cats []core.Category) []categoryModel {
	out := make([]categoryModel, len(cats))
	for i, c := range cats {
		out[i] = categoryModel{ID: c.ID, Name: c.Name}
	}
	return out
}

func fromCategoryModels(models []categoryModel) []core.Category {
	out := make([]core.Category, len(models))
	for i, m := range models {
		out[i] = core.Category{ID: m.ID, Name: m.Name}
	}
	return out
}

func toSummaryModel(sum core.Summary) summaryModel {
	m := summaryModel{
		TotalCents: sum.Total.Cents,
		Count:      sum.Count,
		ByCategory: make([]categoryTotalModel, len(sum.ByCategory)),
	}
	if sum.Biggest != nil {
		m.Biggest = &biggestModel{
			Merchant:    sum.Biggest.Merchant,
			AmountCents: sum.Biggest.Amount.Cents,
		}
	}
	for i, ct := range sum.ByCategory {
		m.ByCategory[i] = categoryTotalModel{CategoryID: ct.CategoryID, TotalCents: ct.Total.Cents}
	}
	return m
}

func fromSummaryModel(m summaryModel) core.Summary {
	sum := core.Summary{
		Total:      core.Money{Cents: m.TotalCents},
		Count:      m.Count,
		ByCategory: make([]core.CategoryTotal, len(m.ByCategory)),
	}
	if m.Biggest != nil {
		sum.Biggest = &core.BiggestItem{
			Merchant: m.Biggest.Merchant,
			Amount:   core.Money{Cents: m.Biggest.AmountCents},
		}
	}
	for i, ct := range m.ByCategory {
		sum.ByCategory[i] = core.CategoryTotal{CategoryID: ct.CategoryID, Total: core.Money{Cents: ct.TotalCents}}
	}
	return sum
}

func fromSessionModel(m *sessionModel) *core.BillSession {
	return &core.BillSession{
		ID:          m.ID,
		OwnerID:     m.UserID,
		Title:       m.Title,
		MonthKey:    m.MonthKey,
		Currency:    m.Currency,
		ItemCount:   m.ItemCount,
		CreatedAt:   m.CreatedAt,
		ClosedAt:    m.ClosedAt,
		Converted:   m.Converted,
		ConvertedAt: m.ConvertedAt,
		Summary:     fromSummaryModel(m.Summary),
	}
}

func fromItemModel(m *itemModel) core.BillItem {
	return core.BillItem{
		ID:         m.ID,
		Merchant:   m.Merchant,
		Amount:     core.Money{Cents: m.AmountCents},
		CategoryID: m.CategoryID,
		Note:       m.Note,
		Date:       m.Date,
		CreatedAt:  m.CreatedAt,
	}
}

func toTransactionModel(userID string, tx *core.Transaction) *transactionModel {
	m := &transactionModel{
		ID:          tx.ID,
		UserID:      userID,
		Type:        string(tx.Type),
		AmountCents: tx.Amount.Cents,
		CategoryID:  tx.CategoryID,
		Note:        tx.Note,
		Date:        tx.Date,
		MonthKey:    tx.MonthKey,
		CreatedAt:   tx.CreatedAt,
		UpdatedAt:   tx.UpdatedAt,
	}
	if tx.Source != nil {
		m.Source = &sourceModel{Kind: tx.Source.Kind, SessionID: tx.Source.SessionID, ItemID: tx.Source.ItemID}
	}
	return m
}

func fromTransactionModel(m *transactionModel) core.Transaction {
	tx := core.Transaction{
		ID:         m.ID,
		Type:       core.TxType(m.Type),
		Amount:     core.Money{Cents: m.AmountCents},
		CategoryID: m.CategoryID,
		Note:       m.Note,
		Date:       m.Date,
		MonthKey:   m.MonthKey,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.Source != nil {
		tx.Source = &core.TxSource{Kind: m.Source.Kind, SessionID: m.Source.SessionID, ItemID: m.Source.ItemID}
	}
	return tx
}

func fromBudgetModel(m *budgetModel) core.Budget {
	return core.Budget{
		ID:         m.ID,
		MonthKey:   m.MonthKey,
		CategoryID: m.CategoryID,
		Limit:      core.Money{Cents: m.LimitCents},
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func fromGoalModel(m *goalModel) core.Goal {
	return core.Goal{
		ID:            m.ID,
		Name:          m.Name,
		TargetAmount:  core.Money{Cents: m.TargetCents},
		CurrentAmount: core.Money{Cents: m.CurrentCents},
		Deadline:      m.Deadline,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
