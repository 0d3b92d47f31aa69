package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// UncategorizedLabel buckets expenses that arrive without a category.
const UncategorizedLabel = "Uncategorized"

type (
	TransactionType string

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID              string
		Type            TransactionType
		Amount          decimal.Decimal
		Category        string
		Description     string
		TransactionDate time.Time
		UserID          string
		CreatedAt       time.Time
	}
)

var (
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDate       = errors.New("invalid transaction date")
	ErrEmptyCategory     = errors.New("empty category")
	ErrEmptyUser         = errors.New("empty user id")
	ErrDescriptionLong   = errors.New("description too long (max 200 characters)")
	ErrContractViolation = errors.New("snapshot is not a sequence of transaction records")
)

// Suggested categories offered by the transaction form.
var (
	ExpenseCategories = []string{
		"Food & Dining", "Transportation", "Shopping", "Entertainment",
		"Bills & Utilities", "Healthcare", "Education", "Travel", "Other",
	}
	IncomeCategories = []string{
		"Salary", "Freelance", "Business", "Investment", "Gift", "Other",
	}
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense:
		return true
	default:
		return false
	}
}

func (t TransactionType) String() string {
	return string(t)
}

// ParseTransactionType normalizes case and whitespace. Unknown values are
// returned as-is so the engine can recognise and exclude them.
func ParseTransactionType(s string) TransactionType {
	v := strings.ToLower(strings.TrimSpace(s))
	switch TransactionType(v) {
	case Income, Expense:
		return TransactionType(v)
	}
	return TransactionType(s)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Validate checks a transaction on the write path. The aggregation engine
// never calls it; it sanitizes instead.
func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.TransactionDate.IsZero() {
		return ErrInvalidDate
	}
	if utf8.RuneCountInString(t.Description) > 200 {
		return ErrDescriptionLong
	}
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUser
	}
	return nil
}

// DateOnly truncates a timestamp to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewDate creates a UTC date from year, month, day
func NewDate(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
