package core

import (
	"testing"
)

func TestCategoryBreakdown(t *testing.T) {
	day := NewDate(2024, 1, 1)
	in := []Transaction{
		tx("1", Expense, "50", "Food", day),
		tx("2", Expense, "25", "Rent", day),
		tx("3", Income, "500", "Salary", day),
		tx("4", Expense, "25", "Food", day),
	}
	got := CategoryBreakdown(in)
	if len(got) != 2 {
		t.Fatalf("slices = %+v", got)
	}
	if got[0].Label != "Food" || got[0].Percent.String() != "75" || got[0].Color != ChartPalette[0] {
		t.Fatalf("slice 0 = %+v", got[0])
	}
	if got[1].Label != "Rent" || got[1].Percent.String() != "25" || got[1].Color != ChartPalette[1] {
		t.Fatalf("slice 1 = %+v", got[1])
	}
}

func TestCategoryBreakdownPaletteWraps(t *testing.T) {
	var in []Transaction
	for i := 0; i < len(ChartPalette)+2; i++ {
		in = append(in, tx("x", Expense, "1", string(rune('A'+i)), NewDate(2024, 1, 1)))
	}
	got := CategoryBreakdown(in)
	if got[len(ChartPalette)].Color != ChartPalette[0] {
		t.Fatalf("palette did not wrap: %+v", got[len(ChartPalette)])
	}
}

func TestCategoryBreakdownZeroExpenses(t *testing.T) {
	got := CategoryBreakdown([]Transaction{tx("1", Expense, "0", "Food", NewDate(2024, 1, 1))})
	if len(got) != 1 || !got[0].Percent.IsZero() {
		t.Fatalf("zero-total breakdown = %+v", got)
	}
}

func TestIncomeExpenseBars(t *testing.T) {
	in := []Transaction{
		tx("1", Income, "100.10", "Salary", NewDate(2024, 1, 1)),
		tx("2", Expense, "40.05", "Food", NewDate(2024, 1, 1)),
	}
	bars := IncomeExpenseBars(in)
	if len(bars) != 2 || bars[0].Label != "Income" || bars[1].Label != "Expenses" {
		t.Fatalf("bars = %+v", bars)
	}
	assertDecimal(t, "income", bars[0].Amount, "100.10")
	assertDecimal(t, "expense", bars[1].Amount, "40.05")
}
