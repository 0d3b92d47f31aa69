package core

import "github.com/shopspring/decimal"

// ChartPalette assigns colors to pie slices by legend index, wrapping around.
var ChartPalette = []string{
	"#FF6384", "#36A2EB", "#FFCE56", "#4BC0C0", "#9966FF",
	"#FF9F40", "#FF6384", "#C9CBCF", "#4BC0C0",
}

const (
	incomeColor  = "#36A2EB"
	expenseColor = "#FF6384"
)

// CategorySlice is one slice of the expenses-by-category pie.
type CategorySlice struct {
	Label   string
	Amount  decimal.Decimal
	Percent decimal.Decimal // share of total expenses, 2 decimals
	Color   string
}

// ChartBar is one bar of the income vs expenses chart.
type ChartBar struct {
	Label  string
	Amount decimal.Decimal
	Color  string
}

// CategoryBreakdown projects GroupExpensesByCategory into pie slices.
func CategoryBreakdown(txns []Transaction) []CategorySlice {
	totals := GroupExpensesByCategory(txns)
	sum := totals.Sum()
	hundred := decimal.NewFromInt(100)

	slices := make([]CategorySlice, len(totals))
	for i, e := range totals {
		pct := decimal.Zero
		if sum.IsPositive() {
			pct = e.Amount.Mul(hundred).DivRound(sum, 2)
		}
		slices[i] = CategorySlice{
			Label:   e.Category,
			Amount:  e.Amount,
			Percent: pct,
			Color:   ChartPalette[i%len(ChartPalette)],
		}
	}
	return slices
}

// IncomeExpenseBars projects ComputeIncomeVsExpense into the two-bar chart.
func IncomeExpenseBars(txns []Transaction) []ChartBar {
	ie := ComputeIncomeVsExpense(txns)
	return []ChartBar{
		{Label: "Income", Amount: ie.Income, Color: incomeColor},
		{Label: "Expenses", Amount: ie.Expense, Color: expenseColor},
	}
}
