package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Expense TxType = "expense"
	Income  TxType = "income"
)

// DefaultCurrency is used when neither the caller nor the profile set one.
const DefaultCurrency = "LKR"

type (
	TxType string

	Money struct {
		Cents int64 `json:"cents"`
	}

	Category struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	Profile struct {
		UserID      string     `json:"uid"`
		Email       string     `json:"email"`
		DisplayName string     `json:"displayName"`
		Currency    string     `json:"currency"`
		Categories  []Category `json:"categories"`
		CreatedAt   time.Time  `json:"createdAt"`
		UpdatedAt   time.Time  `json:"updatedAt"`
	}

	// BillSession is a batch container for receipts entered together,
	// convertible once into permanent transactions.
	BillSession struct {
		ID        string     `json:"id"`
		OwnerID   string     `json:"-"`
		Title     string     `json:"title"`
		MonthKey  string     `json:"monthKey"`
		Currency  string     `json:"currency"`
		ItemCount int        `json:"itemCount"`
		CreatedAt time.Time  `json:"createdAt"`
		ClosedAt  *time.Time `json:"closedAt"`
		Converted bool       `json:"convertedToTransactions"`
		// ConvertedAt is set exactly once, by the conversion batch.
		ConvertedAt *time.Time `json:"convertedAt"`
		Summary     Summary    `json:"summary"`
	}

	// BillItem is one receipt line inside a session. Items are immutable
	// after creation; the only mutations are delete and conversion.
	BillItem struct {
		ID         string    `json:"id"`
		Merchant   string    `json:"merchant"`
		Amount     Money     `json:"amount"`
		CategoryID string    `json:"categoryId"`
		Note       string    `json:"note,omitempty"`
		Date       time.Time `json:"date"`
		CreatedAt  time.Time `json:"createdAt"`
	}

	// TxSource records where a transaction came from, e.g. a bill session.
	TxSource struct {
		Kind      string `json:"kind"`
		SessionID string `json:"sessionId"`
		ItemID    string `json:"itemId"`
	}

	Transaction struct {
		ID         string    `json:"id"`
		Type       TxType    `json:"type"`
		Amount     Money     `json:"amount"`
		CategoryID string    `json:"categoryId"`
		Note       string    `json:"note,omitempty"`
		Date       time.Time `json:"date"`
		MonthKey   string    `json:"monthKey"`
		CreatedAt  time.Time `json:"createdAt"`
		UpdatedAt  time.Time `json:"updatedAt"`
		Source     *TxSource `json:"source,omitempty"`
	}

	// TransactionPatch carries partial updates; nil fields are untouched.
	TransactionPatch struct {
		Type       *TxType
		Amount     *Money
		CategoryID *string
		Note       *string
		Date       *time.Time
	}

	Budget struct {
		ID         string    `json:"id"`
		MonthKey   string    `json:"monthKey"`
		CategoryID string    `json:"categoryId"`
		Limit      Money     `json:"limit"`
		CreatedAt  time.Time `json:"createdAt"`
		UpdatedAt  time.Time `json:"updatedAt"`
	}

	Goal struct {
		ID            string     `json:"id"`
		Name          string     `json:"name"`
		TargetAmount  Money      `json:"targetAmount"`
		CurrentAmount Money      `json:"currentAmount"`
		Deadline      *time.Time `json:"deadline"`
		CreatedAt     time.Time  `json:"createdAt"`
		UpdatedAt     time.Time  `json:"updatedAt"`
	}

	GoalPatch struct {
		Name         *string
		TargetAmount *Money
		Deadline     *time.Time
		// ClearDeadline removes the deadline; wins over Deadline.
		ClearDeadline bool
	}
)

var (
	ErrEmptyMerchant     = errors.New("merchant required")
	ErrInvalidAmount     = errors.New("amount must be > 0")
	ErrEmptyCategory     = errors.New("category required")
	ErrEmptyCategoryName = errors.New("category name required")
	ErrEmptyMonthKey     = errors.New("monthKey required")
	ErrInvalidMonthKey   = errors.New("invalid monthKey")
	ErrInvalidTxType     = errors.New("invalid transaction type")
	ErrInvalidLimit      = errors.New("limit must be >= 0")
	ErrEmptyGoalName     = errors.New("goal name required")
	ErrInvalidTarget     = errors.New("target must be > 0")
	ErrInvalidDeposit    = errors.New("deposit must be > 0")
	ErrZeroDate          = errors.New("date required")
)

// DefaultCategories mirrors the fixed profile seed; custom categories are
// appended after these.
func DefaultCategories() []Category {
	return []Category{
		{ID: "food", Name: "Food"},
		{ID: "transport", Name: "Transport"},
		{ID: "bills", Name: "Bills"},
		{ID: "shopping", Name: "Shopping"},
		{ID: "entertainment", Name: "Entertainment"},
		{ID: "health", Name: "Health"},
		{ID: "education", Name: "Education"},
		{ID: "other", Name: "Other"},
	}
}

func (t TxType) Validate() error {
	switch t {
	case Expense, Income:
		return nil
	default:
		return ErrInvalidTxType
	}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (it BillItem) Validate() error {
	if strings.TrimSpace(it.Merchant) == "" {
		return ErrEmptyMerchant
	}
	if err := it.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(it.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if it.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func (tx Transaction) Validate() error {
	if err := tx.Type.Validate(); err != nil {
		return err
	}
	if err := tx.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(tx.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if tx.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func (b Budget) Validate() error {
	if b.MonthKey == "" {
		return ErrEmptyMonthKey
	}
	if !ValidMonthKey(b.MonthKey) {
		return ErrInvalidMonthKey
	}
	if strings.TrimSpace(b.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if b.Limit.Cents < 0 {
		return ErrInvalidLimit
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyGoalName
	}
	if g.TargetAmount.Cents <= 0 {
		return ErrInvalidTarget
	}
	return nil
}

// BudgetID builds the deterministic budget document id.
func BudgetID(monthKey, categoryID string) string {
	return monthKey + "_" + categoryID
}
