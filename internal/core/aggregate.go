package core

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultRecentWindow is how many transactions ComputeStatistics keeps in
// RecentTransactions.
const DefaultRecentWindow = 5

// CategoryAmount represents an expense amount aggregated by category name.
type CategoryAmount struct {
	Category string
	Amount   decimal.Decimal
}

// CategoryTotals is an ordered category -> amount mapping. Entries keep the
// order in which each category was first seen in the input.
type CategoryTotals []CategoryAmount

// AggregateResult is recomputed from scratch on every call and never shared
// between calls.
type AggregateResult struct {
	TotalIncome        decimal.Decimal
	TotalExpenses      decimal.Decimal
	Balance            decimal.Decimal
	TransactionCount   int
	CategoryTotals     CategoryTotals
	RecentTransactions []Transaction
}

// IncomeVsExpense feeds the income/expense bar chart.
type IncomeVsExpense struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// Sanitize returns a copy of t with the malformed-record policy applied:
// the type is case-normalized, the amount takes its absolute value and a
// blank expense category becomes UncategorizedLabel.
func Sanitize(t Transaction) Transaction {
	t.Type = ParseTransactionType(string(t.Type))
	t.Amount = t.Amount.Abs()
	t.Category = strings.TrimSpace(t.Category)
	if t.Type == Expense && t.Category == "" {
		t.Category = UncategorizedLabel
	}
	return t
}

// ComputeStatistics aggregates txns with the default recent window.
func ComputeStatistics(txns []Transaction) AggregateResult {
	return ComputeStatisticsWindow(txns, DefaultRecentWindow)
}

// ComputeStatisticsWindow aggregates txns, keeping the recent most recent
// records. Records with an unknown type are counted but excluded from every
// sum.
func ComputeStatisticsWindow(txns []Transaction, recent int) AggregateResult {
	clean := sanitizeAll(txns)
	totals := sumByType(clean)

	return AggregateResult{
		TotalIncome:        totals.Income,
		TotalExpenses:      totals.Expense,
		Balance:            totals.Income.Sub(totals.Expense),
		TransactionCount:   len(txns),
		CategoryTotals:     groupByCategory(clean),
		RecentTransactions: SelectRecent(clean, recent),
	}
}

// GroupExpensesByCategory sums expense amounts per category in first-seen order.
func GroupExpensesByCategory(txns []Transaction) CategoryTotals {
	return groupByCategory(sanitizeAll(txns))
}

// ComputeIncomeVsExpense returns the same sums ComputeStatistics reports.
func ComputeIncomeVsExpense(txns []Transaction) IncomeVsExpense {
	return sumByType(sanitizeAll(txns))
}

// SelectRecent returns up to n transactions ordered by TransactionDate
// descending. Equal dates keep their input order. The input is not modified.
func SelectRecent(txns []Transaction, n int) []Transaction {
	if n <= 0 || len(txns) == 0 {
		return []Transaction{}
	}
	sorted := make([]Transaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TransactionDate.After(sorted[j].TransactionDate)
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n:n]
}

func sanitizeAll(txns []Transaction) []Transaction {
	out := make([]Transaction, len(txns))
	for i, t := range txns {
		out[i] = Sanitize(t)
	}
	return out
}

// sumByType expects sanitized input.
func sumByType(txns []Transaction) IncomeVsExpense {
	res := IncomeVsExpense{Income: decimal.Zero, Expense: decimal.Zero}
	for _, t := range txns {
		switch t.Type {
		case Income:
			res.Income = res.Income.Add(t.Amount)
		case Expense:
			res.Expense = res.Expense.Add(t.Amount)
		}
	}
	return res
}

// groupByCategory expects sanitized input.
func groupByCategory(txns []Transaction) CategoryTotals {
	out := CategoryTotals{}
	index := make(map[string]int)
	for _, t := range txns {
		if t.Type != Expense {
			continue
		}
		if i, ok := index[t.Category]; ok {
			out[i].Amount = out[i].Amount.Add(t.Amount)
			continue
		}
		index[t.Category] = len(out)
		out = append(out, CategoryAmount{Category: t.Category, Amount: t.Amount})
	}
	return out
}

// Get returns the total for category.
func (c CategoryTotals) Get(category string) (decimal.Decimal, bool) {
	for _, e := range c {
		if e.Category == category {
			return e.Amount, true
		}
	}
	return decimal.Zero, false
}

// Labels returns the category names in legend order.
func (c CategoryTotals) Labels() []string {
	labels := make([]string, len(c))
	for i, e := range c {
		labels[i] = e.Category
	}
	return labels
}

// Sum adds every category total.
func (c CategoryTotals) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range c {
		sum = sum.Add(e.Amount)
	}
	return sum
}

// MarshalJSON writes a JSON object whose keys keep legend order.
func (c CategoryTotals) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Category)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(FormatAmount(e.Amount))
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
