package core

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseTransactionType(t *testing.T) {
	cases := []struct {
		in   string
		want TransactionType
		ok   bool
	}{
		{"income", Income, true},
		{"expense", Expense, true},
		{" Expense ", Expense, true},
		{"INCOME", Income, true},
		{"transfer", TransactionType("transfer"), false},
		{"", TransactionType(""), false},
	}
	for _, tc := range cases {
		got := ParseTransactionType(tc.in)
		if got != tc.want || got.Valid() != tc.ok {
			t.Fatalf("%q: got %q valid=%v, want %q valid=%v", tc.in, got, got.Valid(), tc.want, tc.ok)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Type:            Expense,
		Amount:          decimal.RequireFromString("12.50"),
		Category:        "Food & Dining",
		Description:     "lunch",
		TransactionDate: NewDate(2025, 1, 1),
		UserID:          "u1",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	mutate := func(f func(*Transaction)) Transaction {
		c := good
		f(&c)
		return c
	}
	bads := []struct {
		tx   Transaction
		want error
	}{
		{mutate(func(t *Transaction) { t.Type = "transfer" }), ErrInvalidType},
		{mutate(func(t *Transaction) { t.Amount = decimal.Zero }), ErrInvalidAmount},
		{mutate(func(t *Transaction) { t.Amount = decimal.NewFromInt(-3) }), ErrInvalidAmount},
		{mutate(func(t *Transaction) { t.Category = "  " }), ErrEmptyCategory},
		{mutate(func(t *Transaction) { t.TransactionDate = time.Time{} }), ErrInvalidDate},
		{mutate(func(t *Transaction) { t.Description = strings.Repeat("x", 201) }), ErrDescriptionLong},
		{mutate(func(t *Transaction) { t.Description = strings.Repeat("é", 201) }), ErrDescriptionLong},
		{mutate(func(t *Transaction) { t.UserID = "" }), ErrEmptyUser},
	}
	for i, tc := range bads {
		if err := tc.tx.Validate(); err != tc.want {
			t.Fatalf("case %d: expected %v, got %v", i, tc.want, err)
		}
	}

	// The limit counts characters, not bytes.
	for _, desc := range []string{strings.Repeat("é", 200), strings.Repeat("日", 70)} {
		c := mutate(func(t *Transaction) { t.Description = desc })
		if err := c.Validate(); err != nil {
			t.Fatalf("%d-byte description rejected: %v", len(desc), err)
		}
	}
}

func TestDateOnly(t *testing.T) {
	in := time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC)
	if got := DateOnly(in); !got.Equal(NewDate(2024, 3, 1)) {
		t.Fatalf("DateOnly(%v) = %v", in, got)
	}
}
